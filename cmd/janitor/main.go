package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/client/postgres"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/log"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/anonymize"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

// janitor bundles the maintenance chores that run out of band: pruning old
// jobs, syncing one database into another, seeding the GPU table and
// anonymizing scraped reports into fixtures.
func main() {
	var (
		logOutput string
		logFormat string
		logFile   string
		logLevel  string

		pruneDSN  string
		pruneDays int

		syncSrcDSN string
		syncDstDSN string
		syncEntity string
		syncDays   int

		seedDSN string

		anonIn     string
		anonOut    string
		anonEntity string
	)
	app := kingpin.New(filepath.Base(os.Args[0]), "Maintenance chores for the cluster store.")
	app.HelpFlag.Short('h')
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.PreAction(func(*kingpin.ParseContext) error {
		if strings.EqualFold(logOutput, "file") && strings.TrimSpace(logFile) == "" {
			return fmt.Errorf("--log.file is required with --log.output=file")
		}
		return nil
	})
	app.Version(version.Print("clockwork-janitor"))

	prune := app.Command("prune", "Delete jobs that ended more than the retention period ago. Running jobs are always kept.")
	prune.Flag("db.dsn", "Postgres DSN.").Envar("CLOCKWORK_DB_DSN").Required().StringVar(&pruneDSN)
	prune.Flag("days", "Retention period in days.").Default("365").IntVar(&pruneDays)

	sync := app.Command("sync", "Copy jobs or nodes from one database to another.")
	sync.Flag("src.dsn", "Source Postgres DSN.").Required().StringVar(&syncSrcDSN)
	sync.Flag("dst.dsn", "Destination Postgres DSN.").Required().StringVar(&syncDstDSN)
	sync.Flag("entity", "What to sync, one of [jobs, nodes].").Default("jobs").EnumVar(&syncEntity, "jobs", "nodes")
	sync.Flag("days", "Only sync jobs that ended within this many days (plus running jobs), and expire destination jobs that ended earlier. Without it everything is copied and nothing is deleted. Ignored for nodes, which never delete.").Default("-1").IntVar(&syncDays)

	seed := app.Command("seed-gpus", "Insert the default GPU catalog, keeping operator edits.")
	seed.Flag("db.dsn", "Postgres DSN.").Envar("CLOCKWORK_DB_DSN").Required().StringVar(&seedDSN)

	anon := app.Command("anonymize", "Rewrite a scraped report into a shareable fixture.")
	anon.Flag("in", "Report file to read.").Required().ExistingFileVar(&anonIn)
	anon.Flag("out", "File to write, stdout when omitted.").StringVar(&anonOut)
	anon.Flag("entity", "Report kind, one of [jobs, nodes, flat-jobs].").Default("jobs").EnumVar(&anonEntity, "jobs", "nodes", "flat-jobs")

	command, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to parse commandline arguments: %w", err))
		app.Usage(os.Args[1:])
		os.Exit(2)
	}

	logger, logClose, err := log.NewLogger(logOutput, logFormat, logFile, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	ctx := context.Background()
	switch command {
	case prune.FullCommand():
		st := mustStore(ctx, pruneDSN, logger)
		deleted, err := st.PruneJobs(ctx, time.Duration(pruneDays)*24*time.Hour, time.Now())
		if err != nil {
			logger.Error("prune failed", slog.Any("err", err))
			os.Exit(1)
		}
		logger.Info("prune finished", slog.Int64("deleted", deleted), slog.Int("days", pruneDays))

	case sync.FullCommand():
		src := mustStore(ctx, syncSrcDSN, logger)
		dst := mustStore(ctx, syncDstDSN, logger)
		var copied, deleted int64
		if syncEntity == "nodes" {
			copied, err = src.SyncNodesTo(ctx, dst)
		} else {
			// An explicit --days=0 means "keep only running jobs", which is
			// distinct from omitting the flag (default -1, no deletion).
			var window *time.Duration
			if syncDays >= 0 {
				w := time.Duration(syncDays) * 24 * time.Hour
				window = &w
			}
			copied, deleted, err = src.SyncJobsTo(ctx, dst, window, time.Now())
		}
		if err != nil {
			logger.Error("sync failed", slog.Any("err", err))
			os.Exit(1)
		}
		logger.Info("sync finished", slog.String("entity", syncEntity),
			slog.Int64("copied", copied), slog.Int64("deleted", deleted))

	case seed.FullCommand():
		st := mustStore(ctx, seedDSN, logger)
		inserted, err := st.SeedGPUs(ctx)
		if err != nil {
			logger.Error("seed failed", slog.Any("err", err))
			os.Exit(1)
		}
		logger.Info("seed finished", slog.Int("inserted", inserted))

	case anon.FullCommand():
		if err := runAnonymize(anonIn, anonOut, anonEntity); err != nil {
			logger.Error("anonymize failed", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func mustStore(ctx context.Context, dsn string, logger *slog.Logger) *store.Store {
	dbctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := postgres.New(dbctx, dsn)
	if err != nil {
		logger.Error("unable to connect to postgres", slog.Any("err", err))
		os.Exit(1)
	}
	st := store.New(db, logger)
	if err := st.EnsureSchema(dbctx); err != nil {
		logger.Error("unable to ensure schema", slog.Any("err", err))
		os.Exit(1)
	}
	return st
}

func runAnonymize(in, out, entity string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	a := anonymize.New()
	var result []byte
	switch entity {
	case "nodes":
		result, err = a.NodesReport(data)
	case "flat-jobs":
		var text string
		text, err = a.FlatJobsReport(string(data))
		result = []byte(text)
	default:
		result, err = a.JobsReport(data)
	}
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(result)
		return err
	}
	return os.WriteFile(out, result, 0o644)
}
