package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/common/version"

	"github.com/mila-iqia/clockwork-sub001/internal/app/docs"
	"github.com/mila-iqia/clockwork-sub001/internal/app/router"
	"github.com/mila-iqia/clockwork-sub001/internal/module/gpu"
	"github.com/mila-iqia/clockwork-sub001/internal/module/jobs"
	"github.com/mila-iqia/clockwork-sub001/internal/module/nodes"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/auth"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/client/postgres"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/log"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

// @title           clockwork cluster API
// @version         1.0
// @description     Jobs, nodes and GPU inventory scraped from Slurm clusters.
// @BasePath        /api/v1
func main() {
	var (
		logOutput          string
		logFormat          string
		logFile            string
		logLevel           string
		dbDSN              string
		ginMode            string
		srvListenAddr      string
		srvShutdownTimeout time.Duration
	)
	app := kingpin.New(filepath.Base(os.Args[0]), "Cluster API server.")
	app.HelpFlag.Short('h')
	// Logging related flags
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.Flag("db.dsn", "Postgres DSN.").Envar("CLOCKWORK_DB_DSN").Default("postgres://clockwork@localhost:5432/clockwork?sslmode=disable").StringVar(&dbDSN)
	app.Flag("server.listen-addr", "Server listen address (e.g. :8080 or 127.0.0.1:8080).").Default(":8080").StringVar(&srvListenAddr)
	app.Flag("server.shutdown-timeout", "Graceful shutdown timeout (e.g. 10s).").Default("10s").DurationVar(&srvShutdownTimeout)
	app.Flag("server.gin-mode", "Gin mode, one of [debug, release, test].").Default("release").EnumVar(&ginMode, "debug", "release", "test")
	app.PreAction(func(*kingpin.ParseContext) error {
		if strings.EqualFold(logOutput, "file") && strings.TrimSpace(logFile) == "" {
			return fmt.Errorf("--log.file is required with --log.output=file")
		}
		return nil
	})
	app.Version(version.Print("clockwork-server"))

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

	docs.SwaggerInfo.BasePath = "/api/v1"
	r := router.New(ginMode, logger)
	router.RegisterAll(r, "/api/v1/cluster",
		[]gin.HandlerFunc{auth.Middleware(st, logger)},
		jobs.NewRouter(st, logger),
		nodes.NewRouter(st, logger),
		gpu.NewRouter(st, logger),
	)

	srv := &http.Server{
		Addr:              srvListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srvListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	case <-quit:
	}
	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), srvShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
}
