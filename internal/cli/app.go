package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendplan/internal/backend"
	"spendplan/internal/config"
	"spendplan/internal/forecast"
	"spendplan/internal/log"
	"spendplan/internal/services"
	"spendplan/internal/training"
	"spendplan/internal/worker"
)

// startupBatchSize bounds how many stale jobs one startup check republishes.
const startupBatchSize = 100

// App is the fully wired object graph every binary starts from.
type App struct {
	Config   *config.Config
	Policy   config.Policy
	Backends *backend.Backends

	Forecaster *forecast.Aggregator
	Planning   *services.PlanningService
	Training   *services.TrainingService
	Trainer    *training.Trainer
	Worker     *worker.TrainingWorker

	logger        *log.Logger
	cachesStarted bool
}

// OpenApp opens the configured backends and builds the services on top.
func OpenApp(ctx context.Context, cfg *config.Config, policy config.Policy, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	b, err := backend.NewFactory(logger).Open(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open backends: %w", err)
	}

	fc := forecast.NewForecaster(b.Models, policy.Forecast, logger)
	agg := forecast.NewAggregator(b.Records, fc, cfg.Categories, cfg.ForecastConcurrency, logger)
	trainer := training.NewTrainer(b.Records, b.Models, cfg.Categories, policy, cfg.ForecastConcurrency, logger)
	planning := services.NewPlanningService(b.Records, agg, policy.Allocation, logger)
	planning.UseSeries(forecast.NewFetcher(b.Records, cfg.Categories))

	return &App{
		Config:     cfg,
		Policy:     policy,
		Backends:   b,
		Forecaster: agg,
		Planning:   planning,
		Training:   services.NewTrainingService(b.Publisher, b.JobStore, b.Models, cfg.JobMaxRetries, logger),
		Trainer:    trainer,
		Worker:     worker.NewTrainingWorker(trainer, b.JobStore, b.Publisher, startupBatchSize, logger),
		logger:     logger,
	}, nil
}

// StartCaches begins periodic eviction of expired model cache entries.
func (a *App) StartCaches(interval time.Duration) {
	if a.cachesStarted {
		return
	}
	a.Backends.Caches.StartCleanup(interval)
	a.cachesStarted = true
}

// StartConsumer hands queued training jobs to the worker.
func (a *App) StartConsumer(ctx context.Context) error {
	if err := a.Backends.Consumer.Start(ctx, a.Worker.HandleJob); err != nil {
		return fmt.Errorf("start job consumer: %w", err)
	}
	a.logger.Info("Job consumer started", log.FieldBackend, a.Config.JobBackend, "workers", a.Config.JobWorkers)
	return nil
}

// Close stops the consumer and cache cleanup, then releases the backends.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Backends.Consumer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop consumer: %w", err))
	}
	if a.cachesStarted {
		a.Backends.Caches.Stop()
		a.cachesStarted = false
	}
	if err := a.Backends.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
