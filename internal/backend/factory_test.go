package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/models"
	"spendplan/internal/storage"
)

func TestConfigValidate(t *testing.T) {
	base := Config{Data: DataMemory, Models: ModelsMemory, Jobs: JobsInMemory}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"memory only", func(*Config) {}, ""},
		{"bad data backend", func(c *Config) { c.Data = "csv" }, "invalid data backend"},
		{"bad model backend", func(c *Config) { c.Models = "s3" }, "invalid model backend"},
		{"bad job backend", func(c *Config) { c.Jobs = "kafka" }, "invalid job backend"},
		{"sqlite without path", func(c *Config) { c.Data = DataSQLite }, "SQLite database path"},
		{"amqp needs sqlite job store", func(c *Config) {
			c.Jobs = JobsAMQP
			c.AMQPURL, c.AMQPExchange, c.AMQPQueue = "amqp://x", "e", "q"
		}, "SQLite database path"},
		{"amqp without queue", func(c *Config) {
			c.Jobs = JobsAMQP
			c.SQLiteDBPath = "x.db"
			c.AMQPURL = "amqp://x"
		}, "AMQP URL, exchange and queue"},
		{"gcs without bucket", func(c *Config) { c.Models = ModelsGCS }, "GCS bucket"},
		{"sheets without id", func(c *Config) { c.Data = DataSheets }, "Spreadsheet ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}
	app := &config.Config{
		DataBackend:    "memory",
		ModelBackend:   "memory",
		JobBackend:     "inmemory",
		ModelCacheSize: 10,
		ModelCacheTTL:  time.Minute,
		JobWorkers:     3,
	}
	c, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if c.Data != DataMemory || c.Jobs != JobsInMemory || c.JobWorkers != 3 || c.ModelCacheSize != 10 {
		t.Errorf("config = %+v", c)
	}
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	b, err := NewFactory(nil).Open(ctx, Config{Data: DataMemory, Models: ModelsMemory, Jobs: JobsInMemory, ModelCacheSize: 8, JobWorkers: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if _, ok := b.Models.(*models.CachedStore); !ok {
		t.Errorf("models = %T, want cached store", b.Models)
	}
	if b.Publisher == nil || b.Consumer == nil || b.JobStore == nil || b.Records == nil {
		t.Fatalf("backends = %+v", b)
	}
	if err := b.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpenSQLiteSharesRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plan.db")
	b, err := NewFactory(nil).Open(ctx, Config{Data: DataSQLite, Models: ModelsSQLite, Jobs: JobsInMemory, SQLiteDBPath: path, JobWorkers: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	repo, ok := b.Records.(*storage.SQLiteRepository)
	if !ok {
		t.Fatalf("records = %T", b.Records)
	}
	if b.Models != models.Store(repo) || b.JobStore == nil {
		t.Errorf("model and job stores should share the sqlite repository")
	}
	if err := b.Records.PutRecord(ctx, "u1", core.MonthlyRecord{Month: "2026-01", TotalIncome: 100}); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	if err := b.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
