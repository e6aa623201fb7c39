// Package store persists job and node records and the supporting users and
// gpus tables in Postgres. The three record partitions live in separate
// jsonb columns so that a scrape can replace raw and slurm atomically while
// leaving the user-owned cw partition alone.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/client/postgres"
)

// MaxPropsBytes caps the serialized size of one job's props. The props exist
// for small annotations; without a ceiling a buggy client could grow a
// document without bound.
const MaxPropsBytes = 2 * 1024 * 1024

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// PropsTooLargeError rejects a props update whose merged result would exceed
// MaxPropsBytes. The write is refused entirely; the stored props keep their
// previous value.
type PropsTooLargeError struct {
	Size  int
	Limit int
}

func (e *PropsTooLargeError) Error() string {
	return fmt.Sprintf("props would grow to %d bytes, limit is %d", e.Size, e.Limit)
}

// Store gives typed access to the cluster-state tables.
type Store struct {
	pool   postgres.Pool
	logger *slog.Logger
}

// New creates a store backed by the given Postgres client.
func New(client *postgres.Client, logger *slog.Logger) *Store {
	return NewWithPool(client.Pool(), logger)
}

// NewWithPool creates a store on a raw pool, mainly for tests.
func NewWithPool(pool postgres.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id uuid PRIMARY KEY,
		job_id text NOT NULL,
		cluster_name text NOT NULL,
		raw jsonb NOT NULL DEFAULT '{}'::jsonb,
		slurm jsonb NOT NULL,
		cw jsonb NOT NULL DEFAULT '{}'::jsonb,
		last_slurm_update double precision,
		UNIQUE (job_id, cluster_name)
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_cluster_name_idx ON jobs (cluster_name)`,
	`CREATE INDEX IF NOT EXISTS jobs_username_idx ON jobs ((slurm->>'username'))`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id uuid PRIMARY KEY,
		name text NOT NULL,
		cluster_name text NOT NULL,
		raw jsonb NOT NULL DEFAULT '{}'::jsonb,
		slurm jsonb NOT NULL,
		cw jsonb NOT NULL DEFAULT '{}'::jsonb,
		last_slurm_update double precision,
		UNIQUE (name, cluster_name)
	)`,
	`CREATE INDEX IF NOT EXISTS nodes_cluster_name_idx ON nodes (cluster_name)`,
	`CREATE TABLE IF NOT EXISTS users (
		mila_email_username text PRIMARY KEY,
		api_key text NOT NULL,
		status text NOT NULL DEFAULT 'enabled',
		mila_cluster_username text,
		cc_account_username text
	)`,
	`CREATE TABLE IF NOT EXISTS gpus (
		name text PRIMARY KEY,
		vendor text NOT NULL,
		vram_gb integer NOT NULL,
		cuda_cores integer NOT NULL,
		tensor_cores integer NOT NULL,
		tflops_fp32 double precision NOT NULL
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
