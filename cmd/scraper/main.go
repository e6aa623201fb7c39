package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/client/postgres"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/log"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/clusterconf"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/remote"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

func main() {
	var (
		logOutput     string
		logFormat     string
		logFile       string
		logLevel      string
		dbDSN         string
		clustersFile  string
		sshKeyDir     string
		remoteTimeout time.Duration
		interval      time.Duration
	)
	app := kingpin.New(filepath.Base(os.Args[0]), "Cluster scraper: pulls sacct/sinfo reports and reconciles them into the store.")
	app.HelpFlag.Short('h')
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.Flag("db.dsn", "Postgres DSN.").Envar("CLOCKWORK_DB_DSN").Default("postgres://clockwork@localhost:5432/clockwork?sslmode=disable").StringVar(&dbDSN)
	app.Flag("clusters.file", "TOML file describing the clusters to scrape.").Required().ExistingFileVar(&clustersFile)
	app.Flag("remote.ssh-key-dir", "Directory holding the per-cluster ssh keys.").Default(filepath.Join(os.Getenv("HOME"), ".ssh")).StringVar(&sshKeyDir)
	app.Flag("remote.timeout", "Timeout for one remote command (Go duration, e.g. 2m).").Default("2m").DurationVar(&remoteTimeout)
	app.Flag("scrape.interval", "Time between scrapes; 0 scrapes once and exits.").Default("0").DurationVar(&interval)
	app.PreAction(func(*kingpin.ParseContext) error {
		if strings.EqualFold(logOutput, "file") && strings.TrimSpace(logFile) == "" {
			return fmt.Errorf("--log.file is required with --log.output=file")
		}
		return nil
	})
	app.Version(version.Print("clockwork-scraper"))

	if _, err := app.Parse(os.Args[1:]); err != nil {
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

	cfg, err := clusterconf.Load(clustersFile)
	if err != nil {
		logger.Error("unable to load clusters file", slog.Any("err", err))
		os.Exit(1)
	}

	dbctx, dbcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dbcancel()
	db, err := postgres.New(dbctx, dbDSN)
	if err != nil {
		logger.Error("unable to connect to postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db, logger)
	if err := st.EnsureSchema(dbctx); err != nil {
		logger.Error("unable to ensure schema", slog.Any("err", err))
		os.Exit(1)
	}

	scraper := scrape.New(remote.New(remoteTimeout, sshKeyDir, logger), st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func() {
		start := time.Now()
		if err := scraper.ScrapeAll(ctx, cfg.Clusters); err != nil {
			logger.Error("scrape run failed", slog.Any("err", err))
			if interval == 0 {
				os.Exit(1)
			}
			return
		}
		logger.Info("scrape run finished", slog.Duration("took", time.Since(start)))
	}

	run()
	if interval == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scraper exiting")
			return
		case <-ticker.C:
			run()
		}
	}
}
