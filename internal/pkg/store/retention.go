package store

import (
	"context"
	"fmt"
	"time"
)

const pruneJobsSQL = `
DELETE FROM jobs
WHERE slurm->>'end_time' IS NOT NULL
  AND (slurm->>'end_time')::bigint < $1`

// PruneJobs deletes jobs that ended more than olderThan ago. Jobs with a
// null end time are still running as far as we know and are always kept, no
// matter how old their submission is. Props vanish with the job row they
// live on.
func (s *Store) PruneJobs(ctx context.Context, olderThan time.Duration, now time.Time) (int64, error) {
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-olderThan).Unix()
	tag, err := s.pool.Exec(ctx, pruneJobsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
