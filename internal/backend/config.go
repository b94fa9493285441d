// Package backend selects and opens the record, model and job stores
// named in the application config.
package backend

import (
	"fmt"
	"strings"
	"time"

	"spendplan/internal/config"
)

type (
	DataBackend  string
	ModelBackend string
	JobBackend   string
)

const (
	DataMemory DataBackend = "memory"
	DataSQLite DataBackend = "sqlite"
	DataSheets DataBackend = "sheets"

	ModelsSQLite ModelBackend = "sqlite"
	ModelsGCS    ModelBackend = "gcs"
	ModelsMemory ModelBackend = "memory"

	JobsInMemory JobBackend = "inmemory"
	JobsAMQP     JobBackend = "amqp"
)

func (b DataBackend) IsValid() bool {
	return b == DataMemory || b == DataSQLite || b == DataSheets
}

func (b ModelBackend) IsValid() bool {
	return b == ModelsSQLite || b == ModelsGCS || b == ModelsMemory
}

func (b JobBackend) IsValid() bool {
	return b == JobsInMemory || b == JobsAMQP
}

// Config holds everything needed to open the stores.
type Config struct {
	Data   DataBackend
	Models ModelBackend
	Jobs   JobBackend

	SeedFile     string
	SQLiteDBPath string

	GCSBucket      string
	GCSPrefix      string
	ModelCacheSize int
	ModelCacheTTL  time.Duration

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	JobWorkers   int

	GoogleSpreadsheetID string
	GoogleRecordsSheet  string
	GoogleGoalsSheet    string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Data:   DataBackend(appConfig.DataBackend),
		Models: ModelBackend(appConfig.ModelBackend),
		Jobs:   JobBackend(appConfig.JobBackend),

		SeedFile:     appConfig.SeedFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		GCSBucket:      appConfig.GCSBucket,
		GCSPrefix:      appConfig.GCSPrefix,
		ModelCacheSize: appConfig.ModelCacheSize,
		ModelCacheTTL:  appConfig.ModelCacheTTL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		JobWorkers:   appConfig.JobWorkers,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleRecordsSheet:  appConfig.GoogleRecordsSheet,
		GoogleGoalsSheet:    appConfig.GoogleGoalsSheet,
	}
	return c, c.Validate()
}

// needsSQLite reports whether any store lives in the sqlite database. The
// AMQP job backend keeps job state there so API and worker processes share
// it.
func (c Config) needsSQLite() bool {
	return c.Data == DataSQLite || c.Models == ModelsSQLite || c.Jobs == JobsAMQP
}

func (c Config) Validate() error {
	var errs []string
	if !c.Data.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid data backend: %q", c.Data))
	}
	if !c.Models.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid model backend: %q", c.Models))
	}
	if !c.Jobs.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid job backend: %q", c.Jobs))
	}
	if c.needsSQLite() && c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path is required for the selected backends")
	}
	if c.Data == DataSheets && c.GoogleSpreadsheetID == "" {
		errs = append(errs, "Google Spreadsheet ID is required for sheets backend")
	}
	if c.Models == ModelsGCS && c.GCSBucket == "" {
		errs = append(errs, "GCS bucket is required for gcs model backend")
	}
	if c.Jobs == JobsAMQP && (c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "") {
		errs = append(errs, "AMQP URL, exchange and queue are required for amqp job backend")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid backend config: %s", strings.Join(errs, "; "))
	}
	return nil
}
