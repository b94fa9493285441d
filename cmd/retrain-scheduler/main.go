package main

import (
	"context"
	"os"
	"time"

	"spendplan/internal/cli"
	"spendplan/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting retrain-scheduler")

	cfg := cli.LoadAndValidateConfig(logger)
	policy := cli.LoadPolicy(logger, cfg)

	app, err := cli.OpenApp(context.Background(), cfg, policy, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := app.Close(ctx); err != nil {
			logger.Error("Backend shutdown error", log.FieldError, err)
		}
	})

	// With a queue the scheduler only publishes jobs; whoever consumes the
	// queue does the training. The in-memory queue has no consumer outside
	// this process, so it is started here.
	app.Worker.EnqueueUsers(app.Backends.Records)
	if cfg.JobBackend == "inmemory" {
		app.StartCaches(max(cfg.ModelCacheTTL, time.Minute))
		if err := app.StartConsumer(ctx); err != nil {
			logger.Error("Failed to start job consumer", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Retraining scheduled",
		"interval", cfg.RetrainInterval,
		"job_backend", cfg.JobBackend)
	go app.Worker.RunPeriodic(ctx, cfg.RetrainInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Retrain scheduler stopped")
}
