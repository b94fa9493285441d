package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendplan/internal/cli"
	apphttp "spendplan/internal/http"
	"spendplan/internal/log"
	"spendplan/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)
	policy := cli.LoadPolicy(logger, cfg)

	app, err := cli.OpenApp(context.Background(), cfg, policy, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	app.StartCaches(max(cfg.ModelCacheTTL, time.Minute))

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = cfg.RateLimitPerMinute
	srv := apphttp.NewServer(":"+cfg.Port, app.Planning, app.Training, app.Backends.Ping, logger, apphttp.Options{
		RateLimit:       rl,
		BlockSuspicious: cfg.BlockSuspicious,
		TrustedProxies:  cfg.TrustedProxies,
		RequestTimeout:  cfg.RequestTimeout,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := app.Close(ctx); err != nil {
			logger.Error("Backend shutdown error", log.FieldError, err)
		}
	})

	// The in-memory queue only lives in this process, so jobs are
	// consumed here. With AMQP the training-worker consumes them.
	if cfg.JobBackend == "inmemory" {
		if err := app.StartConsumer(ctx); err != nil {
			logger.Error("Failed to start job consumer", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Starting spendplan server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"model_backend", cfg.ModelBackend,
		"job_backend", cfg.JobBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
