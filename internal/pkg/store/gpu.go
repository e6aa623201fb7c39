package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GPU is one entry of the GPU reference table, keyed by the disambiguated
// name the node records use (cw_name).
type GPU struct {
	Name        string  `json:"name"`
	Vendor      string  `json:"vendor"`
	VramGB      int     `json:"vram"`
	CudaCores   int     `json:"cuda_cores"`
	TensorCores int     `json:"tensor_cores"`
	TflopsFP32  float64 `json:"tflops_fp32"`
}

// defaultGPUCatalog seeds the reference table with the models deployed on
// the clusters we scrape.
var defaultGPUCatalog = []GPU{
	{Name: "p100", Vendor: "nvidia", VramGB: 12, CudaCores: 3584, TensorCores: 0, TflopsFP32: 9.3},
	{Name: "p100l", Vendor: "nvidia", VramGB: 16, CudaCores: 3584, TensorCores: 0, TflopsFP32: 9.3},
	{Name: "v100", Vendor: "nvidia", VramGB: 16, CudaCores: 5120, TensorCores: 640, TflopsFP32: 14.1},
	{Name: "v100l", Vendor: "nvidia", VramGB: 32, CudaCores: 5120, TensorCores: 640, TflopsFP32: 14.1},
	{Name: "rtx8000", Vendor: "nvidia", VramGB: 48, CudaCores: 4608, TensorCores: 576, TflopsFP32: 16.3},
	{Name: "a100", Vendor: "nvidia", VramGB: 40, CudaCores: 6912, TensorCores: 432, TflopsFP32: 19.5},
}

// ListGPUs returns the whole reference table.
func (s *Store) ListGPUs(ctx context.Context) ([]GPU, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, vendor, vram_gb, cuda_cores, tensor_cores, tflops_fp32 FROM gpus ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list gpus: %w", err)
	}
	defer rows.Close()

	var gpus []GPU
	for rows.Next() {
		var g GPU
		if err := rows.Scan(&g.Name, &g.Vendor, &g.VramGB, &g.CudaCores, &g.TensorCores, &g.TflopsFP32); err != nil {
			return nil, fmt.Errorf("scan gpu: %w", err)
		}
		gpus = append(gpus, g)
	}
	return gpus, rows.Err()
}

// GetGPU returns one GPU by name, ErrNotFound when it is not in the table.
func (s *Store) GetGPU(ctx context.Context, name string) (*GPU, error) {
	var g GPU
	err := s.pool.QueryRow(ctx,
		`SELECT name, vendor, vram_gb, cuda_cores, tensor_cores, tflops_fp32 FROM gpus WHERE name = $1`,
		name).Scan(&g.Name, &g.Vendor, &g.VramGB, &g.CudaCores, &g.TensorCores, &g.TflopsFP32)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get gpu %s: %w", name, err)
	}
	return &g, nil
}

// SeedGPUs inserts the default catalog, leaving rows an operator edited
// untouched. Returns how many rows were inserted.
func (s *Store) SeedGPUs(ctx context.Context) (int, error) {
	inserted := 0
	for _, g := range defaultGPUCatalog {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO gpus (name, vendor, vram_gb, cuda_cores, tensor_cores, tflops_fp32)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name) DO NOTHING`,
			g.Name, g.Vendor, g.VramGB, g.CudaCores, g.TensorCores, g.TflopsFP32)
		if err != nil {
			return inserted, fmt.Errorf("seed gpu %s: %w", g.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
