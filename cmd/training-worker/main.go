package main

import (
	"context"
	"os"
	"time"

	"spendplan/internal/cli"
	"spendplan/internal/log"
)

// staleJobAge is how long a job may sit pending or running before the
// startup check republishes it.
const staleJobAge = 10 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting training-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.JobBackend != "amqp" {
		logger.Error("training-worker needs JOB_BACKEND=amqp; the in-memory queue is consumed by spendplan itself",
			"job_backend", cfg.JobBackend)
		os.Exit(1)
	}
	policy := cli.LoadPolicy(logger, cfg)

	app, err := cli.OpenApp(context.Background(), cfg, policy, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	app.StartCaches(max(cfg.ModelCacheTTL, time.Minute))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := app.Close(ctx); err != nil {
			logger.Error("Backend shutdown error", log.FieldError, err)
		}
	})

	if n, err := app.Worker.StartupCheck(ctx, staleJobAge); err != nil {
		logger.Warn("Startup job check failed", log.FieldError, err)
	} else if n > 0 {
		logger.Info("Requeued stale training jobs", "count", n)
	}

	if err := app.StartConsumer(ctx); err != nil {
		logger.Error("Failed to start job consumer", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Training worker ready",
		"queue", cfg.AMQPQueue,
		"exchange", cfg.AMQPExchange,
		"model_backend", cfg.ModelBackend)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Training worker stopped")
}
