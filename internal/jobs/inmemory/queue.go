package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendplan/internal/jobs"
	"spendplan/internal/log"
)

var ErrQueueClosed = errors.New("queue is closed")

// Queue is a channel-backed Publisher and Consumer for single-instance
// deployments. Failed jobs are re-published after a linear backoff until
// MaxRetries is exhausted.
type Queue struct {
	jobChan   chan *jobs.TrainingJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	backoff   func(attempt int) time.Duration
	logger    *log.Logger
	closed    bool
}

type Option func(*Queue)

// WithWorkers sets the number of concurrent handlers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff replaces the default one second per attempt retry delay.
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(q *Queue) { q.backoff = f }
}

func WithLogger(l *log.Logger) Option {
	return func(q *Queue) { q.logger = l.WithComponent(log.ComponentJobs) }
}

// NewQueue creates a queue holding up to bufferSize pending jobs.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.TrainingJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   2,
		backoff:   func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishTraining stores the job as pending and enqueues it.
func (q *Queue) PublishTraining(ctx context.Context, job *jobs.TrainingJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	job.Prepare(uuid.NewString, time.Now())

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return err
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the worker goroutines. It returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *jobs.TrainingJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		q.logger.Error("Training job failed", log.FieldJobID, job.JobID, log.FieldUserID, job.UserID, "error", err)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)
	q.logger.Warn("Training job will be retried",
		log.FieldJobID, job.JobID, "attempt", job.RetryCount, "error", err)

	retry := *job
	time.AfterFunc(q.backoff(job.RetryCount), func() {
		retry.Status = jobs.JobStatusPending
		if err := q.PublishTraining(ctx, &retry); err != nil {
			q.logger.Warn("Could not requeue training job", log.FieldJobID, retry.JobID, "error", err)
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.TrainingJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.logger.Warn("Failed to save job state", log.FieldJobID, job.JobID, "error", err)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
