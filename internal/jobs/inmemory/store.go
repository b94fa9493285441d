package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spendplan/internal/core"
	"spendplan/internal/jobs"
)

// Store keeps job state in memory. Data is lost on restart; the sqlite
// repository provides a persistent JobStore.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.TrainingJob
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.TrainingJob),
	}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.TrainingJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.TrainingJob
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})
	return filter.Page(result), nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
