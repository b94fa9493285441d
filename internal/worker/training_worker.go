// Package worker runs training jobs taken off the job queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"spendplan/internal/jobs"
	"spendplan/internal/log"
	"spendplan/internal/models"
	"spendplan/internal/records"
)

// Trainer is satisfied by *training.Trainer.
type Trainer interface {
	NewSink() *log.RunSink
	TrainUserForJob(ctx context.Context, userID, jobID string, sink *log.RunSink) (models.RunLog, error)
	TrainAll(ctx context.Context) ([]models.RunLog, error)
}

// TrainingWorker handles training jobs from a jobs.Consumer.
type TrainingWorker struct {
	trainer   Trainer
	store     jobs.JobStore
	publisher jobs.Publisher
	batchSize int
	users     records.UserLister
	logger    *log.Logger
	now       func() time.Time
}

func NewTrainingWorker(trainer Trainer, store jobs.JobStore, publisher jobs.Publisher, batchSize int, logger *log.Logger) *TrainingWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &TrainingWorker{
		trainer:   trainer,
		store:     store,
		publisher: publisher,
		batchSize: max(batchSize, 1),
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleJob trains the job's user. The run ID is recorded on the job so
// its transcript can be looked up from the job status.
func (w *TrainingWorker) HandleJob(ctx context.Context, job *jobs.TrainingJob) error {
	sink := w.trainer.NewSink()
	job.RunID = sink.RunID()

	w.logger.InfoContext(ctx, "Processing training job",
		log.FieldJobID, job.JobID,
		log.FieldUserID, job.UserID,
		log.FieldRunID, job.RunID,
		"attempt", job.RetryCount+1)

	run, err := w.trainer.TrainUserForJob(ctx, job.UserID, job.JobID, sink)
	if err != nil {
		return fmt.Errorf("train user %s: %w", job.UserID, err)
	}

	w.logger.InfoContext(ctx, "Training job done",
		log.FieldJobID, job.JobID,
		"status", run.Status,
		"trained", len(run.Trained),
		"skipped", len(run.Skipped))
	return nil
}

// StartupCheck republishes jobs left pending or running for longer than
// staleAfter, which happens when a worker died mid-job or a message was
// lost.
func (w *TrainingWorker) StartupCheck(ctx context.Context, staleAfter time.Duration) (int, error) {
	if w.store == nil || w.publisher == nil {
		return 0, nil
	}
	cutoff := w.now().Add(-staleAfter)

	var stale []*jobs.TrainingJob
	for _, status := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning} {
		list, err := w.store.ListJobs(ctx, jobs.JobFilter{Status: status, Limit: w.batchSize * 5})
		if err != nil {
			return 0, fmt.Errorf("list %s jobs: %w", status, err)
		}
		for _, j := range list {
			if j.CreatedAt.Before(cutoff) {
				stale = append(stale, j)
			}
		}
	}
	if len(stale) == 0 {
		w.logger.InfoContext(ctx, "No stale training jobs found on startup")
		return 0, nil
	}

	requeued, failed := 0, 0
	for _, j := range stale {
		j.Status = jobs.JobStatusPending
		j.StartedAt = nil
		if err := w.publisher.PublishTraining(ctx, j); err != nil {
			w.logger.ErrorContext(ctx, "Failed to requeue training job", log.FieldJobID, j.JobID, log.FieldError, err)
			failed++
			continue
		}
		requeued++
	}

	w.logger.InfoContext(ctx, "Startup job check completed",
		"total", len(stale),
		"requeued", requeued,
		"errors", failed)
	return requeued, nil
}

// RunPeriodic retrains every user once immediately and then every
// interval until ctx is done.
func (w *TrainingWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	w.retrainAll(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.retrainAll(ctx)
			w.logger.InfoContext(ctx, "Next retraining scheduled", "at", now.Add(interval).Format(time.RFC3339))
		}
	}
}

// EnqueueUsers switches periodic retraining from in-process training to
// publishing one job per user listed by users.
func (w *TrainingWorker) EnqueueUsers(users records.UserLister) {
	w.users = users
}

func (w *TrainingWorker) retrainAll(ctx context.Context) {
	if w.users != nil && w.publisher != nil {
		if _, err := w.EnqueueAll(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Enqueueing retraining failed", log.FieldError, err)
		}
		return
	}

	start := w.now()
	w.logger.InfoContext(ctx, "Retraining all users")

	runs, err := w.trainer.TrainAll(ctx)
	failed := 0
	for _, r := range runs {
		if r.Status == models.RunFailed {
			failed++
		}
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Retraining finished with errors",
			"runs", len(runs), "failed", failed, log.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Retraining complete",
		"runs", len(runs), "duration", w.now().Sub(start).Round(time.Millisecond))
}

// EnqueueAll publishes a training job for every user. Publish failures are
// logged and counted; the first one is returned after all users were tried.
func (w *TrainingWorker) EnqueueAll(ctx context.Context) (int, error) {
	if w.users == nil || w.publisher == nil {
		return 0, fmt.Errorf("enqueue all: no user lister or publisher configured")
	}
	ids, err := w.users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var firstErr error
	published := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		job := &jobs.TrainingJob{UserID: id}
		if err := w.publisher.PublishTraining(ctx, job); err != nil {
			w.logger.ErrorContext(ctx, "Failed to enqueue training job", log.FieldUserID, id, log.FieldError, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("enqueue %s: %w", id, err)
			}
			continue
		}
		published++
	}

	w.logger.InfoContext(ctx, "Retraining jobs enqueued",
		"users", len(ids),
		"published", published)
	return published, firstErr
}
