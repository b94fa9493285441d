// Package jobs defines asynchronous model training jobs and the queue and
// store abstractions that carry them.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// TrainingJob asks for every category model of one user to be retrained.
type TrainingJob struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`

	// RunID links the job to the run log of its latest attempt.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Prepare fills in defaults before a job is first stored.
func (j *TrainingJob) Prepare(newID func() string, now time.Time) {
	if j.JobID == "" {
		j.JobID = newID()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.MaxRetries == 0 {
		j.MaxRetries = DefaultMaxRetries
	}
}

// Publisher hands training jobs to a queue.
type Publisher interface {
	PublishTraining(ctx context.Context, job *TrainingJob) error
	Close() error
}

// Consumer delivers queued jobs to a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A non-nil error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job *TrainingJob) error

// JobStore persists job state so callers can poll it.
// GetJob returns an error wrapping core.ErrJobNotFound for unknown IDs.
type JobStore interface {
	SaveJob(ctx context.Context, job *TrainingJob) error
	GetJob(ctx context.Context, jobID string) (*TrainingJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*TrainingJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Results are newest first.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}

// Page applies the filter's offset and limit to an already filtered slice.
func (f JobFilter) Page(result []*TrainingJob) []*TrainingJob {
	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return []*TrainingJob{}
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result
}
