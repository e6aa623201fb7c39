package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// Node is a stored node document.
type Node struct {
	record.NodeRecord
	LastSlurmUpdate *float64 `json:"last_slurm_update"`
}

// NodeKey identifies one node for the stamping pass.
type NodeKey struct {
	Name        string
	ClusterName string
}

const upsertNodeSQL = `
INSERT INTO nodes (id, name, cluster_name, raw, slurm, cw)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name, cluster_name)
DO UPDATE SET raw = EXCLUDED.raw, slurm = EXCLUDED.slurm`

// UpsertNodes mirrors UpsertJobs for nodes: raw and slurm replaced on every
// scrape, cw (the GPU descriptor) written on first insert only.
func (s *Store) UpsertNodes(ctx context.Context, recs []record.NodeRecord) (int, error) {
	applied := 0
	for i := range recs {
		rec := &recs[i]
		raw, slurm, cw, err := marshalPartitions(rec.Raw, rec.Slurm, rec.CW)
		if err != nil {
			s.logger.Warn("skip unmarshalable node record",
				"name", rec.Slurm.Name, "cluster_name", rec.Slurm.ClusterName, "error", err)
			continue
		}
		_, err = s.pool.Exec(ctx, upsertNodeSQL,
			uuid.NewString(), rec.Slurm.Name, rec.Slurm.ClusterName, raw, slurm, cw)
		if err != nil {
			if ctx.Err() != nil {
				return applied, ctx.Err()
			}
			s.logger.Warn("failed to upsert node",
				"name", rec.Slurm.Name, "cluster_name", rec.Slurm.ClusterName, "error", err)
			continue
		}
		applied++
	}
	return applied, nil
}

// StampNodes records the completion time of the scrape for these nodes.
func (s *Store) StampNodes(ctx context.Context, at time.Time, keys []NodeKey) error {
	stamp := float64(at.UnixNano()) / float64(time.Second)
	for _, k := range keys {
		_, err := s.pool.Exec(ctx,
			`UPDATE nodes SET last_slurm_update = $1 WHERE name = $2 AND cluster_name = $3`,
			stamp, k.Name, k.ClusterName)
		if err != nil {
			return fmt.Errorf("stamp node %s@%s: %w", k.Name, k.ClusterName, err)
		}
	}
	return nil
}

// ListNodes returns the nodes of one cluster, or of all clusters when
// clusterName is empty.
func (s *Store) ListNodes(ctx context.Context, clusterName string) ([]Node, error) {
	sql := `SELECT raw, slurm, cw, last_slurm_update FROM nodes`
	var args []any
	if clusterName != "" {
		sql += ` WHERE cluster_name = $1`
		args = append(args, clusterName)
	}
	sql += ` ORDER BY cluster_name, name`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var raw, slurm, cw []byte
		if err := rows.Scan(&raw, &slurm, &cw, &n.LastSlurmUpdate); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if err := unmarshalPartitions(raw, slurm, cw, &n.NodeRecord.Raw, &n.NodeRecord.Slurm, &n.NodeRecord.CW); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// GetNode returns one node, ErrNotFound when it does not exist.
func (s *Store) GetNode(ctx context.Context, name, clusterName string) (*Node, error) {
	sql := `SELECT raw, slurm, cw, last_slurm_update FROM nodes WHERE name = $1`
	args := []any{name}
	if clusterName != "" {
		args = append(args, clusterName)
		sql += ` AND cluster_name = $2`
	}
	sql += ` LIMIT 1`

	var n Node
	var raw, slurm, cw []byte
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&raw, &slurm, &cw, &n.LastSlurmUpdate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", name, err)
	}
	if err := unmarshalPartitions(raw, slurm, cw, &n.NodeRecord.Raw, &n.NodeRecord.Slurm, &n.NodeRecord.CW); err != nil {
		return nil, err
	}
	return &n, nil
}
