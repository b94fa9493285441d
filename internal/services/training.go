package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"spendplan/internal/core"
	"spendplan/internal/jobs"
	"spendplan/internal/log"
	"spendplan/internal/models"
)

// AdminStore is the model store surface used by the admin endpoints.
type AdminStore interface {
	models.StatusReader
	models.RunLogStore
}

// TrainingService submits training jobs and reports model state.
type TrainingService struct {
	publisher  jobs.Publisher
	jobStore   jobs.JobStore
	admin      AdminStore
	maxRetries int
	logger     *log.Logger
}

func NewTrainingService(p jobs.Publisher, js jobs.JobStore, admin AdminStore, maxRetries int, logger *log.Logger) *TrainingService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TrainingService{
		publisher:  p,
		jobStore:   js,
		admin:      admin,
		maxRetries: maxRetries,
		logger:     logger.WithComponent(log.ComponentJobs),
	}
}

// SubmitTraining queues a retraining job for userID. The returned job
// carries its ID for polling.
func (s *TrainingService) SubmitTraining(ctx context.Context, userID string) (*jobs.TrainingJob, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	job := &jobs.TrainingJob{UserID: userID, MaxRetries: s.maxRetries}
	if err := s.publisher.PublishTraining(ctx, job); err != nil {
		return nil, fmt.Errorf("publish training job: %w", err)
	}
	s.logger.InfoContext(ctx, "Training job submitted", log.FieldUserID, userID, log.FieldJobID, job.JobID)
	return job, nil
}

// Job returns the current state of a job. Unknown IDs wrap
// core.ErrJobNotFound.
func (s *TrainingService) Job(ctx context.Context, jobID string) (*jobs.TrainingJob, error) {
	return s.jobStore.GetJob(ctx, jobID)
}

// Jobs lists a user's jobs, newest first.
func (s *TrainingService) Jobs(ctx context.Context, userID string, limit int) ([]*jobs.TrainingJob, error) {
	return s.jobStore.ListJobs(ctx, jobs.JobFilter{UserID: userID, Limit: limit})
}

// ModelStatus reports per-category model availability and recent runs.
func (s *TrainingService) ModelStatus(ctx context.Context, userID string) (models.UserStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return models.UserStatus{}, core.ErrEmptyUser
	}
	return s.admin.Status(ctx, userID)
}

// RunLogs returns up to limit run logs for userID, newest first.
func (s *TrainingService) RunLogs(ctx context.Context, userID string, limit int) ([]models.RunLog, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	return s.admin.ListRunLogs(ctx, userID, limit)
}

// TrainedUsers lists users with at least one finished training run,
// sorted by ID.
func (s *TrainingService) TrainedUsers(ctx context.Context) ([]core.User, error) {
	users, err := s.admin.ListTrained(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b core.User) int { return strings.Compare(a.ID, b.ID) })
	return users, nil
}

// Close releases the publisher.
func (s *TrainingService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close training service: %w", err)
	}
	return nil
}
