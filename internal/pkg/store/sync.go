package store

import (
	"context"
	"fmt"
	"time"
)

// The row id is the sync identifier: it is opaque, stable across instances,
// and means nothing to the business key, so two deployments can exchange
// rows without ever renumbering.

const syncUpsertJobSQL = `
INSERT INTO jobs (id, job_id, cluster_name, raw, slurm, cw, last_slurm_update)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET job_id = EXCLUDED.job_id, cluster_name = EXCLUDED.cluster_name,
	raw = EXCLUDED.raw, slurm = EXCLUDED.slurm, cw = EXCLUDED.cw,
	last_slurm_update = EXCLUDED.last_slurm_update`

// SyncJobsTo copies jobs from this store to dst, row for row, cw included;
// sync replicates a source of truth, unlike a scrape it has no user data to
// protect on the destination.
//
// window narrows the copy to jobs that ended within the window or are still
// running, and expires destination jobs that ended before the window start.
// The expiry is a filter evaluated on the destination, never "rows the copy
// did not touch": running jobs and recently ended jobs stay on the
// destination even when the source never sent them, and an empty source
// cannot empty the destination. A nil window copies everything and deletes
// nothing.
func (s *Store) SyncJobsTo(ctx context.Context, dst *Store, window *time.Duration, now time.Time) (copied, deleted int64, err error) {
	sql := `SELECT id, job_id, cluster_name, raw, slurm, cw, last_slurm_update FROM jobs`
	var args []any
	var cutoff int64
	if window != nil {
		if now.IsZero() {
			now = time.Now()
		}
		cutoff = now.Add(-*window).Unix()
		args = append(args, cutoff)
		sql += ` WHERE slurm->>'end_time' IS NULL OR (slurm->>'end_time')::bigint > $1`
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("sync jobs: read source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, jobID, clusterName string
		var raw, slurm, cw []byte
		var stamp *float64
		if err := rows.Scan(&id, &jobID, &clusterName, &raw, &slurm, &cw, &stamp); err != nil {
			return copied, 0, fmt.Errorf("sync jobs: scan source: %w", err)
		}
		if _, err := dst.pool.Exec(ctx, syncUpsertJobSQL, id, jobID, clusterName, raw, slurm, cw, stamp); err != nil {
			return copied, 0, fmt.Errorf("sync jobs: write %s@%s: %w", jobID, clusterName, err)
		}
		copied++
	}
	if err := rows.Err(); err != nil {
		return copied, 0, fmt.Errorf("sync jobs: read source: %w", err)
	}

	if window != nil {
		tag, err := dst.pool.Exec(ctx,
			`DELETE FROM jobs WHERE slurm->>'end_time' IS NOT NULL AND (slurm->>'end_time')::bigint < $1`, cutoff)
		if err != nil {
			return copied, 0, fmt.Errorf("sync jobs: expire old destination rows: %w", err)
		}
		deleted = tag.RowsAffected()
	}
	return copied, deleted, nil
}

const syncUpsertNodeSQL = `
INSERT INTO nodes (id, name, cluster_name, raw, slurm, cw, last_slurm_update)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, cluster_name = EXCLUDED.cluster_name,
	raw = EXCLUDED.raw, slurm = EXCLUDED.slurm, cw = EXCLUDED.cw,
	last_slurm_update = EXCLUDED.last_slurm_update`

// SyncNodesTo copies the whole nodes table to dst. Node sync never deletes:
// destination nodes the source no longer has are left for the operator, the
// same way job sync without a window leaves the destination alone.
func (s *Store) SyncNodesTo(ctx context.Context, dst *Store) (copied int64, err error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, cluster_name, raw, slurm, cw, last_slurm_update FROM nodes`)
	if err != nil {
		return 0, fmt.Errorf("sync nodes: read source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, clusterName string
		var raw, slurm, cw []byte
		var stamp *float64
		if err := rows.Scan(&id, &name, &clusterName, &raw, &slurm, &cw, &stamp); err != nil {
			return copied, fmt.Errorf("sync nodes: scan source: %w", err)
		}
		if _, err := dst.pool.Exec(ctx, syncUpsertNodeSQL, id, name, clusterName, raw, slurm, cw, stamp); err != nil {
			return copied, fmt.Errorf("sync nodes: write %s@%s: %w", name, clusterName, err)
		}
		copied++
	}
	if err := rows.Err(); err != nil {
		return copied, fmt.Errorf("sync nodes: read source: %w", err)
	}
	return copied, nil
}
