package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// Job is a stored job document: the three record partitions plus the stamp
// of the last scrape that touched it.
type Job struct {
	record.JobRecord
	LastSlurmUpdate *float64 `json:"last_slurm_update"`
}

// JobKey identifies one job for the stamping pass.
type JobKey struct {
	JobID       string
	ClusterName string
}

const upsertJobSQL = `
INSERT INTO jobs (id, job_id, cluster_name, raw, slurm, cw)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_id, cluster_name)
DO UPDATE SET raw = EXCLUDED.raw, slurm = EXCLUDED.slurm`

// UpsertJobs writes one row per record. On first sight of a (job_id,
// cluster_name) pair the whole record goes in, cw included; on every later
// sight only raw and slurm are replaced, wholesale, so the scrape never
// touches identities or props again. Each record is written independently: a
// bad record is logged and skipped, and the count of applied records is
// returned so the caller can tell a few stragglers from a systemic failure.
func (s *Store) UpsertJobs(ctx context.Context, recs []record.JobRecord) (int, error) {
	applied := 0
	for i := range recs {
		rec := &recs[i]
		raw, slurm, cw, err := marshalPartitions(rec.Raw, rec.Slurm, rec.CW)
		if err != nil {
			s.logger.Warn("skip unmarshalable job record",
				"job_id", rec.Slurm.JobID, "cluster_name", rec.Slurm.ClusterName, "error", err)
			continue
		}
		_, err = s.pool.Exec(ctx, upsertJobSQL,
			uuid.NewString(), rec.Slurm.JobID, rec.Slurm.ClusterName, raw, slurm, cw)
		if err != nil {
			if ctx.Err() != nil {
				return applied, ctx.Err()
			}
			s.logger.Warn("failed to upsert job",
				"job_id", rec.Slurm.JobID, "cluster_name", rec.Slurm.ClusterName, "error", err)
			continue
		}
		applied++
	}
	return applied, nil
}

// StampJobs records when the scrape that produced these jobs ran. The stamp
// is a separate pass on purpose: it marks "this scrape completed", which is
// only true after every upsert has been attempted.
func (s *Store) StampJobs(ctx context.Context, at time.Time, keys []JobKey) error {
	stamp := float64(at.UnixNano()) / float64(time.Second)
	for _, k := range keys {
		_, err := s.pool.Exec(ctx,
			`UPDATE jobs SET last_slurm_update = $1 WHERE job_id = $2 AND cluster_name = $3`,
			stamp, k.JobID, k.ClusterName)
		if err != nil {
			return fmt.Errorf("stamp job %s@%s: %w", k.JobID, k.ClusterName, err)
		}
	}
	return nil
}

// JobFilter narrows a job listing. Username matches any of the identity
// namespaces as well as the raw scheduler username. RelativeTime keeps jobs
// that ended within the window, plus every job still running (end_time
// null).
type JobFilter struct {
	Username     string
	ClusterName  string
	RelativeTime *time.Duration
	Now          time.Time
}

// ListJobs returns the jobs matching the filter.
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]Job, error) {
	sql := `SELECT raw, slurm, cw, last_slurm_update FROM jobs WHERE true`
	var args []any

	if f.ClusterName != "" {
		args = append(args, f.ClusterName)
		sql += fmt.Sprintf(` AND cluster_name = $%d`, len(args))
	}
	if f.Username != "" {
		args = append(args, f.Username)
		n := len(args)
		sql += fmt.Sprintf(` AND (slurm->>'username' = $%d
			OR cw->>'mila_email_username' = $%d
			OR cw->>'mila_cluster_username' = $%d
			OR cw->>'cc_account_username' = $%d)`, n, n, n, n)
	}
	if f.RelativeTime != nil {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		args = append(args, now.Add(-*f.RelativeTime).Unix())
		sql += fmt.Sprintf(` AND (slurm->>'end_time' IS NULL OR (slurm->>'end_time')::bigint > $%d)`, len(args))
	}
	sql += ` ORDER BY cluster_name, job_id`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var raw, slurm, cw []byte
		if err := rows.Scan(&raw, &slurm, &cw, &j.LastSlurmUpdate); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if err := unmarshalPartitions(raw, slurm, cw, &j.JobRecord.Raw, &j.JobRecord.Slurm, &j.JobRecord.CW); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetJobs returns every stored job with the given id. Without a cluster name
// the id may legitimately match on several clusters; the caller decides
// whether that ambiguity is acceptable.
func (s *Store) GetJobs(ctx context.Context, jobID, clusterName string) ([]Job, error) {
	sql := `SELECT raw, slurm, cw, last_slurm_update FROM jobs WHERE job_id = $1`
	args := []any{jobID}
	if clusterName != "" {
		args = append(args, clusterName)
		sql += ` AND cluster_name = $2`
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var raw, slurm, cw []byte
		if err := rows.Scan(&raw, &slurm, &cw, &j.LastSlurmUpdate); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if err := unmarshalPartitions(raw, slurm, cw, &j.JobRecord.Raw, &j.JobRecord.Slurm, &j.JobRecord.CW); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func marshalPartitions(raw, slurm, cw any) (rawB, slurmB, cwB []byte, err error) {
	if rawB, err = json.Marshal(raw); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal raw partition: %w", err)
	}
	if slurmB, err = json.Marshal(slurm); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal slurm partition: %w", err)
	}
	if cwB, err = json.Marshal(cw); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal cw partition: %w", err)
	}
	return rawB, slurmB, cwB, nil
}

func unmarshalPartitions(rawB, slurmB, cwB []byte, raw, slurm, cw any) error {
	if len(rawB) > 0 {
		if err := json.Unmarshal(rawB, raw); err != nil {
			return fmt.Errorf("unmarshal raw partition: %w", err)
		}
	}
	if len(slurmB) > 0 {
		if err := json.Unmarshal(slurmB, slurm); err != nil {
			return fmt.Errorf("unmarshal slurm partition: %w", err)
		}
	}
	if len(cwB) > 0 {
		if err := json.Unmarshal(cwB, cw); err != nil {
			return fmt.Errorf("unmarshal cw partition: %w", err)
		}
	}
	return nil
}
