package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/jobs"
	"spendplan/internal/log"
)

func memoryConfig() *config.Config {
	return &config.Config{
		DataBackend:         "memory",
		ModelBackend:        "memory",
		ModelCacheSize:      16,
		ModelCacheTTL:       time.Minute,
		JobBackend:          "inmemory",
		JobWorkers:          1,
		JobMaxRetries:       1,
		Categories:          []string{"Food"},
		ForecastConcurrency: 2,
	}
}

func TestOpenAppTrainsThroughQueue(t *testing.T) {
	ctx := context.Background()
	app, err := OpenApp(ctx, memoryConfig(), config.DefaultPolicy(), log.Discard())
	if err != nil {
		t.Fatalf("OpenApp: %v", err)
	}
	app.StartCaches(time.Minute)
	t.Cleanup(func() {
		if err := app.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		rec := core.MonthlyRecord{
			Month:            core.MonthOf(start.AddDate(0, i, 0)),
			TotalIncome:      3000,
			SpentAmount:      1000,
			CategoryExpenses: map[string]float64{"Food": 300 + float64(i*10)},
		}
		if err := app.Planning.PutRecord(ctx, "u1", rec); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
	}

	series, err := app.Planning.Series(ctx, "u1", "Food", 3)
	if err != nil || len(series) > 3 {
		t.Fatalf("Series = %v, %v", series, err)
	}
	bad := core.MonthlyRecord{Month: "2026-03", TotalIncome: 1, CategoryExpenses: map[string]float64{"Travel": 5}}
	if err := app.Planning.PutRecord(ctx, "u1", bad); !errors.Is(err, core.ErrUnknownCategory) {
		t.Errorf("record outside CATEGORIES: %v", err)
	}

	if err := app.StartConsumer(ctx); err != nil {
		t.Fatal(err)
	}
	job, err := app.Training.SubmitTraining(ctx, "u1")
	if err != nil {
		t.Fatalf("SubmitTraining: %v", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	var got *jobs.TrainingJob
	for time.Now().Before(deadline) {
		got, err = app.Training.Job(ctx, job.JobID)
		if err != nil {
			t.Fatalf("Job: %v", err)
		}
		if got.Status.Terminal() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got.Status != jobs.JobStatusCompleted {
		t.Fatalf("job status = %s (%s)", got.Status, got.Error)
	}
	if got.RunID == "" {
		t.Error("job should link to its run log")
	}

	status, err := app.Training.ModelStatus(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if food := status.Category("Food"); !food.HasSeasonal || !food.HasSequence {
		t.Errorf("food status = %+v", food)
	}

	summary, err := app.Planning.Forecast(ctx, "u1")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if summary.Empty() || summary.Strategy != core.StrategyDualModel {
		t.Errorf("summary = %+v", summary)
	}
}

func TestOpenAppRejectsBadBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.DataBackend = "csv"
	if _, err := OpenApp(context.Background(), cfg, config.DefaultPolicy(), nil); err == nil {
		t.Fatal("expected error")
	}
}
