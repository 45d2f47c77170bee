package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bcnfacilities/sentiflow/internal/api"
	"github.com/bcnfacilities/sentiflow/internal/config"
	"github.com/bcnfacilities/sentiflow/internal/database"
	"github.com/bcnfacilities/sentiflow/internal/pipeline"
	"github.com/bcnfacilities/sentiflow/internal/scheduler"
	"github.com/bcnfacilities/sentiflow/internal/series"
	"github.com/bcnfacilities/sentiflow/internal/sheet"
	"github.com/bcnfacilities/sentiflow/internal/storage"
	"github.com/bcnfacilities/sentiflow/internal/web"
)

// Command sentiflow downloads sensor telemetry from a Sentilo platform
// and publishes normalized per-sensor series plus a catalogue for the
// building dashboard.
//
// Usage:
//
//	sentiflow [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-once
//	      run one download pass and exit
//	-cron string
//	      cron spec for scheduled runs (default "*/5 * * * *")
//	-workers int
//	      parallel sensor fetches (default 4)
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one download pass and exit")
	cronSpec := flag.String("cron", "*/5 * * * *", "cron spec for scheduled runs")
	workers := flag.Int("workers", 4, "parallel sensor fetches")
	flag.Parse()

	// Tokens typically live in a local .env during development; in CI
	// they come from the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)

	descriptors, err := sheet.Load(cfg.Sensors.File, sheet.Defaults{
		Provider: cfg.Sensors.DefaultProvider,
		TokenEnv: cfg.Sensors.DefaultTokenEnv,
	})
	if err != nil {
		logger.Fatalf("Failed to load sensor sheet: %v", err)
	}

	store, err := storage.NewStore(cfg.Output.DataDir, cfg.Output.IndexFile)
	if err != nil {
		logger.Fatalf("Failed to create artifact store: %v", err)
	}

	var archive pipeline.Archiver
	if cfg.Database.Enabled {
		pg, err := database.NewPostgresArchive(cfg.Database.ConnString())
		if err != nil {
			logger.Fatalf("Failed to connect archive database: %v", err)
		}
		defer pg.Close()
		archive = pg
	}

	classifier := series.NewClassifier(cfg.Classifier)
	fetcher := api.NewFetcher(cfg.Sentilo, api.EnvTokenSource(os.Getenv), logger)

	pipe := pipeline.New(pipeline.Options{
		Fetcher:    fetcher,
		Classifier: classifier,
		Policy:     cfg.Alignment.Policy(),
		Store:      store,
		Archive:    archive,
		Derived:    cfg.Derived,
		Workers:    *workers,
		Metrics:    pipeline.NewMetrics(prometheus.DefaultRegisterer),
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.WithFields(logrus.Fields{
		"sensors": len(descriptors),
		"derived": len(cfg.Derived),
	}).Info("Starting sentiflow")

	result, err := pipe.Run(ctx, descriptors)
	if err != nil {
		logger.Fatalf("Initial run failed: %v", err)
	}
	logger.WithField("published", result.Published).Info("Initial run done")

	if *once {
		return
	}

	sched := scheduler.NewScheduler(ctx, pipe, descriptors, *cronSpec, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv, err := web.NewServer(store, 1000, logger)
	if err != nil {
		logger.Fatalf("Failed to create HTTP server: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe(web.ServerConfig{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		})
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		logger.Printf("Received signal %v, shutting down", sig)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", cfg.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
