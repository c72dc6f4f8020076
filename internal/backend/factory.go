package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"boletim/internal/amqp"
	"boletim/internal/cache"
	"boletim/internal/provider"
	"boletim/internal/provider/memory"
	"boletim/internal/services"
	"boletim/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	seedPath := filepath.Join(config.DataDirectory, memory.SeedFile)
	structure, err := provider.LoadStructure(seedPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.logger.Warn("Structure seed not found, using stored structure", "path", seedPath)
	case err != nil:
		repo.Close()
		return nil, fmt.Errorf("load structure seed: %w", err)
	default:
		if _, err := repo.SeedStructure(ctx, structure); err != nil {
			repo.Close()
			return nil, fmt.Errorf("seed structure: %w", err)
		}
	}

	opts := []services.Option{}

	// AMQP is optional; without it the worker's cron sweep picks days up.
	var amqpClient *amqp.Client
	if config.Sync.Enabled() {
		amqpClient, err = amqp.NewClient(config.Sync.URL, config.Sync.Exchange, config.Sync.Queue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.Sync.Exchange,
				"queue", config.Sync.Queue)
			opts = append(opts, services.WithPublisher(amqpClient))
		}
	}

	records, stopCache := f.newRecordCache(config)
	if records != nil {
		opts = append(opts, services.WithRecordCache(records))
	}

	svc := services.NewAttendanceService(repo, opts...)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil,
		"cache_enabled", records != nil)

	return &BackendResult{
		Backend: svc,
		Ready:   repo,
		Cleanup: func() error {
			stopCache()
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, repo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	// the memory store is the source of truth already; no cache in front
	return &BackendResult{
		Backend: services.NewAttendanceService(store),
	}, nil
}

// newRecordCache returns nil when caching is disabled by a non-positive size
// or TTL.
func (f *DefaultFactory) newRecordCache(config Config) (*cache.RecordCache, func()) {
	if !config.Cache.Enabled() {
		return nil, func() {}
	}
	records := cache.NewRecordCache(config.Cache.Size, config.Cache.TTL)
	janitor := cache.NewJanitor(max(config.Cache.TTL, time.Minute), f.logger, records)
	janitor.Start()
	return records, janitor.Stop
}
