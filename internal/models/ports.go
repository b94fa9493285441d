package models

import (
	"context"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/tsmodel"
)

// Ports for persisted model state. The forecaster only needs Reader.
type (
	// Reader loads artifacts. A missing artifact is core.ErrModelNotFound;
	// an undecodable one is core.ErrCorruptArtifact.
	Reader interface {
		LoadSeasonal(ctx context.Context, userID, category string) (*tsmodel.SeasonalArtifact, error)
		LoadSequence(ctx context.Context, userID, category string) (*tsmodel.SequenceArtifact, error)
	}

	Writer interface {
		SaveSeasonal(ctx context.Context, userID, category string, a *tsmodel.SeasonalArtifact) error
		SaveSequence(ctx context.Context, userID, category string, a *tsmodel.SequenceArtifact) error
		MarkTrained(ctx context.Context, userID string, at time.Time) error
	}

	StatusReader interface {
		Status(ctx context.Context, userID string) (UserStatus, error)
		ListTrained(ctx context.Context) ([]core.User, error)
	}

	RunLogStore interface {
		SaveRunLog(ctx context.Context, log RunLog) error
		ListRunLogs(ctx context.Context, userID string, limit int) ([]RunLog, error)
	}

	Store interface {
		Reader
		Writer
		StatusReader
		RunLogStore
	}
)

// Artifact kinds as stored by the backends.
const (
	KindSeasonal = "seasonal"
	KindSequence = "sequence"
)

type CategoryStatus struct {
	Category          string    `json:"category"`
	HasSeasonal       bool      `json:"has_seasonal"`
	HasSequence       bool      `json:"has_sequence"`
	SeasonalTrainedAt time.Time `json:"seasonal_trained_at,omitempty"`
	SequenceTrainedAt time.Time `json:"sequence_trained_at,omitempty"`
}

type UserStatus struct {
	UserID      string           `json:"user_id"`
	LastTrained time.Time        `json:"last_trained,omitempty"`
	Categories  []CategoryStatus `json:"categories"`
	RecentLogs  []RunLog         `json:"recent_logs,omitempty"`
}

// Category returns the status entry for category, creating it if needed.
func (s *UserStatus) Category(category string) *CategoryStatus {
	for i := range s.Categories {
		if s.Categories[i].Category == category {
			return &s.Categories[i]
		}
	}
	s.Categories = append(s.Categories, CategoryStatus{Category: category})
	return &s.Categories[len(s.Categories)-1]
}

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// RunLog records one training run and its log transcript.
type RunLog struct {
	RunID      string    `json:"run_id"`
	UserID     string    `json:"user_id"`
	JobID      string    `json:"job_id,omitempty"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Trained    []string  `json:"trained,omitempty"`
	Skipped    []string  `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
}
