// Package scrape orchestrates the ingestion pipeline: run the report
// commands on each cluster, parse and translate the output, and reconcile
// the records into the store.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/clusterconf"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/translate"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

// Runner executes a command on a cluster's login node.
type Runner interface {
	Run(ctx context.Context, cluster *clusterconf.Cluster, command string) ([]byte, error)
}

// Storer is the slice of the store the scraper writes through.
type Storer interface {
	UpsertJobs(ctx context.Context, recs []record.JobRecord) (int, error)
	StampJobs(ctx context.Context, at time.Time, keys []store.JobKey) error
	AssociateUsers(ctx context.Context, clusterName, accountField string) (int64, error)
	UpsertNodes(ctx context.Context, recs []record.NodeRecord) (int, error)
	StampNodes(ctx context.Context, at time.Time, keys []store.NodeKey) error
}

// Scraper runs the pipeline.
type Scraper struct {
	runner Runner
	store  Storer
	logger *slog.Logger
	now    func() time.Time
}

// New creates a scraper.
func New(runner Runner, st Storer, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{runner: runner, store: st, logger: logger, now: time.Now}
}

// ScrapeAll scrapes every cluster concurrently. A failing cluster is logged
// and skipped so the healthy ones still get fresh data; only when every
// cluster fails does the run itself count as failed.
func (s *Scraper) ScrapeAll(ctx context.Context, clusters map[string]*clusterconf.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}
	var failures atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, cluster := range clusters {
		cluster := cluster
		g.Go(func() error {
			if err := s.ScrapeCluster(ctx, cluster); err != nil {
				failures.Add(1)
				s.logger.Error("cluster scrape failed", "cluster", cluster.Name, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if int(failures.Load()) == len(clusters) {
		return fmt.Errorf("all %d clusters failed to scrape", len(clusters))
	}
	return nil
}

// ScrapeCluster runs one full scrape of one cluster: jobs, user
// association, then nodes.
func (s *Scraper) ScrapeCluster(ctx context.Context, cluster *clusterconf.Cluster) error {
	if cluster.SkipsJobs() {
		s.logger.Info("no allocations configured, skipping jobs", "cluster", cluster.Name)
	} else if err := s.scrapeJobs(ctx, cluster); err != nil {
		return fmt.Errorf("jobs: %w", err)
	}
	if err := s.scrapeNodes(ctx, cluster); err != nil {
		return fmt.Errorf("nodes: %w", err)
	}
	return nil
}

func (s *Scraper) scrapeJobs(ctx context.Context, cluster *clusterconf.Cluster) error {
	out, err := s.runner.Run(ctx, cluster, SacctCommand(cluster))
	if err != nil {
		return err
	}

	var recs []record.JobRecord
	if cluster.ReportFormat == clusterconf.FormatFlat {
		rows, err := report.ParseFlat(string(out))
		if err != nil {
			return err
		}
		for _, row := range rows {
			slurm, err := translate.JobFromFlat(row, cluster)
			if err != nil {
				return err
			}
			raw := make(record.RawFields, len(row))
			for k, v := range row {
				raw[k] = v
			}
			recs = append(recs, record.NewJobRecord(raw, slurm, cluster.AccountField))
		}
	} else {
		entries, err := report.ParseStructuredJobs(out)
		if err != nil {
			return err
		}
		for _, e := range entries {
			slurm := translate.JobFromStructured(e, cluster.Name)
			recs = append(recs, record.NewJobRecord(e.Raw, slurm, cluster.AccountField))
		}
	}

	applied, err := s.store.UpsertJobs(ctx, recs)
	if err != nil {
		return err
	}
	s.logger.Info("jobs upserted", "cluster", cluster.Name, "scraped", len(recs), "applied", applied)
	if applied == 0 && len(recs) > 0 {
		// A few rejected records are routine; all of them is a broken
		// database or schema.
		return fmt.Errorf("none of %d scraped jobs could be applied", len(recs))
	}

	keys := make([]store.JobKey, 0, len(recs))
	for i := range recs {
		jobID, clusterName := recs[i].Key()
		keys = append(keys, store.JobKey{JobID: jobID, ClusterName: clusterName})
	}
	if err := s.store.StampJobs(ctx, s.now(), keys); err != nil {
		return err
	}

	associated, err := s.store.AssociateUsers(ctx, cluster.Name, cluster.AccountField)
	if err != nil {
		return err
	}
	if associated > 0 {
		s.logger.Info("users associated", "cluster", cluster.Name, "count", associated)
	}
	return nil
}

func (s *Scraper) scrapeNodes(ctx context.Context, cluster *clusterconf.Cluster) error {
	out, err := s.runner.Run(ctx, cluster, SinfoCommand(cluster))
	if err != nil {
		return err
	}
	entries, err := report.ParseStructuredNodes(out)
	if err != nil {
		return err
	}

	recs := make([]record.NodeRecord, 0, len(entries))
	for _, e := range entries {
		slurm := translate.NodeFromStructured(e, cluster.Name)
		gres := ""
		if slurm.Gres != nil {
			gres = *slurm.Gres
		}
		gpu := translate.GresDescription(gres, slurm.Features)
		recs = append(recs, record.NewNodeRecord(e.Raw, slurm, gpu))
	}

	applied, err := s.store.UpsertNodes(ctx, recs)
	if err != nil {
		return err
	}
	s.logger.Info("nodes upserted", "cluster", cluster.Name, "scraped", len(recs), "applied", applied)
	if applied == 0 && len(recs) > 0 {
		return fmt.Errorf("none of %d scraped nodes could be applied", len(recs))
	}

	keys := make([]store.NodeKey, 0, len(recs))
	for i := range recs {
		name, clusterName := recs[i].Key()
		keys = append(keys, store.NodeKey{Name: name, ClusterName: clusterName})
	}
	return s.store.StampNodes(ctx, s.now(), keys)
}
