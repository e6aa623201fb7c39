package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetUserProps returns the props of one job. ErrNotFound when the job does
// not exist; a job without props yields an empty map.
func (s *Store) GetUserProps(ctx context.Context, jobID, clusterName string) (map[string]string, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT cw->'props' FROM jobs WHERE job_id = $1 AND cluster_name = $2`,
		jobID, clusterName).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get props of job %s@%s: %w", jobID, clusterName, err)
	}

	props := map[string]string{}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &props); err != nil {
			return nil, fmt.Errorf("decode props of job %s@%s: %w", jobID, clusterName, err)
		}
	}
	return props, nil
}

const setPropsSQL = `
UPDATE jobs
SET cw = jsonb_set(cw, '{props}', COALESCE(cw->'props', '{}'::jsonb) || $1::jsonb)
WHERE job_id = $2 AND cluster_name = $3`

// SetUserProps merges updates into the job's props, key by key: keys absent
// from updates keep their stored value, so two writers touching different
// keys both survive. The merged result is size-checked against MaxPropsBytes
// before anything is written; an oversized update changes nothing.
func (s *Store) SetUserProps(ctx context.Context, jobID, clusterName string, updates map[string]string) (map[string]string, error) {
	current, err := s.GetUserProps(ctx, jobID, clusterName)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(current)+len(updates))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}

	blob, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode props of job %s@%s: %w", jobID, clusterName, err)
	}
	if len(blob) > MaxPropsBytes {
		return nil, &PropsTooLargeError{Size: len(blob), Limit: MaxPropsBytes}
	}

	patch, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("encode props update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, setPropsSQL, patch, jobID, clusterName); err != nil {
		return nil, fmt.Errorf("set props of job %s@%s: %w", jobID, clusterName, err)
	}
	return merged, nil
}

const deletePropsSQL = `
UPDATE jobs
SET cw = jsonb_set(cw, '{props}', COALESCE(cw->'props', '{}'::jsonb) - $1::text[])
WHERE job_id = $2 AND cluster_name = $3`

// DeleteUserProps removes the named keys from the job's props. Keys that do
// not exist, and jobs that do not exist, are a no-op: deletion is expressed
// as a desired absence, which already holds.
func (s *Store) DeleteUserProps(ctx context.Context, jobID, clusterName string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, deletePropsSQL, keys, jobID, clusterName); err != nil {
		return fmt.Errorf("delete props of job %s@%s: %w", jobID, clusterName, err)
	}
	return nil
}
