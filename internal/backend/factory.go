package backend

import (
	"context"
	"errors"
	"fmt"

	"spendplan/internal/amqp"
	"spendplan/internal/cache"
	"spendplan/internal/jobs"
	"spendplan/internal/jobs/inmemory"
	"spendplan/internal/log"
	"spendplan/internal/models"
	"spendplan/internal/models/gcs"
	"spendplan/internal/records"
	"spendplan/internal/records/google"
	"spendplan/internal/records/memory"
	"spendplan/internal/storage"
)

// Backends is the set of opened stores. Close releases all of them.
type Backends struct {
	Records   records.Store
	Models    models.Store
	JobStore  jobs.JobStore
	Publisher jobs.Publisher
	Consumer  jobs.Consumer
	Caches    *cache.Manager

	sqlite  *storage.SQLiteRepository
	closers []func() error
}

// Ping checks the backends that can be reached cheaply.
func (b *Backends) Ping(ctx context.Context) error {
	if b.sqlite != nil {
		return b.sqlite.Ping(ctx)
	}
	return nil
}

// Close releases resources in reverse opening order.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentApp)}
}

// Open creates every store named in cfg. On error anything already opened
// is closed.
func (f *Factory) Open(ctx context.Context, cfg Config) (_ *Backends, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backends{Caches: cache.NewManager(f.logger)}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	if cfg.needsSQLite() {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		b.sqlite = repo
		b.closers = append(b.closers, repo.Close)
	}

	if err := f.openRecords(ctx, cfg, b); err != nil {
		return nil, err
	}
	if err := f.openModels(ctx, cfg, b); err != nil {
		return nil, err
	}
	if err := f.openJobs(cfg, b); err != nil {
		return nil, err
	}

	f.logger.Info("Backends initialized",
		"data", cfg.Data,
		"models", cfg.Models,
		"jobs", cfg.Jobs,
		"model_cache", cfg.ModelCacheSize)
	return b, nil
}

func (f *Factory) openRecords(ctx context.Context, cfg Config, b *Backends) error {
	switch cfg.Data {
	case DataSQLite:
		b.Records = b.sqlite
	case DataSheets:
		cli, err := google.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleRecordsSheet, cfg.GoogleGoalsSheet)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		b.Records = cli
	default:
		if cfg.SeedFile == "" {
			b.Records = memory.New()
			break
		}
		store, err := memory.NewFromFile(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		b.Records = store
		f.logger.Info("Loaded seed file", "path", cfg.SeedFile)
	}
	return nil
}

func (f *Factory) openModels(ctx context.Context, cfg Config, b *Backends) error {
	var inner models.Store
	switch cfg.Models {
	case ModelsSQLite:
		inner = b.sqlite
	case ModelsGCS:
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS model store: %w", err)
		}
		b.closers = append(b.closers, store.Close)
		inner = store
	default:
		inner = models.NewMemoryStore()
	}

	if cfg.ModelCacheSize > 0 {
		cached := models.NewCachedStore(inner, cfg.ModelCacheSize, cfg.ModelCacheTTL, f.logger)
		cached.Register(b.Caches)
		b.Models = cached
		return nil
	}
	b.Models = inner
	return nil
}

func (f *Factory) openJobs(cfg Config, b *Backends) error {
	if b.sqlite != nil {
		b.JobStore = b.sqlite
	} else {
		b.JobStore = inmemory.NewStore()
	}

	switch cfg.Jobs {
	case JobsAMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, b.JobStore, f.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Publisher, b.Consumer = client, client
		f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	default:
		q := inmemory.NewQueue(64, b.JobStore,
			inmemory.WithWorkers(cfg.JobWorkers),
			inmemory.WithLogger(f.logger))
		b.closers = append(b.closers, q.Close)
		b.Publisher, b.Consumer = q, q
	}
	return nil
}
