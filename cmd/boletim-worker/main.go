package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"boletim/internal/amqp"
	"boletim/internal/config"
	"boletim/internal/export/google"
	"boletim/internal/export/xlsx"
	applog "boletim/internal/log"
	"boletim/internal/provider"
	"boletim/internal/provider/memory"
	"boletim/internal/storage"
	"boletim/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentWorker, Output: os.Stdout})
	applog.SetDefault(logger)

	logger.Info("Starting boletim-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The worker may start before the server ever ran against this database.
	if structure, err := provider.LoadStructure(filepath.Join(cfg.DataDir, memory.SeedFile)); err == nil {
		if _, err := repo.SeedStructure(ctx, structure); err != nil {
			logger.Error("Failed to seed structure", applog.FieldError, err)
			os.Exit(1)
		}
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err, "target", cfg.ExportTarget)
		os.Exit(1)
	}
	logger.Info("Exporter initialized", "target", cfg.ExportTarget)

	syncWorker := worker.NewSyncWorker(repo, exporter, cfg.SyncBatchSize)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Don't exit - the scheduled sweep retries
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeDaySync(gctx, syncWorker.HandleSyncMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on scheduled sweeps")
	}

	scheduler, err := syncWorker.Schedule(gctx, cfg.SyncSchedule)
	if err != nil {
		logger.Error("Failed to schedule sync sweep", applog.FieldError, err)
		os.Exit(1)
	}
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func newExporter(ctx context.Context, cfg *config.Config) (provider.DayExporter, error) {
	if cfg.ExportTarget == "xlsx" {
		if err := os.MkdirAll(cfg.ExportDir, 0755); err != nil {
			return nil, err
		}
		return &xlsx.FileExporter{Dir: cfg.ExportDir}, nil
	}
	return google.New(ctx, cfg.GoogleSpreadsheetID, google.Credentials{
		File: cfg.GoogleServiceAccountFile,
		JSON: cfg.GoogleServiceAccountJSON,
	})
}
