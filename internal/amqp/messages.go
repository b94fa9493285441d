package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"spendplan/internal/jobs"
)

// TrainingMessage asks a worker to run a stored training job. The job
// itself lives in the job store; the message only carries its identity.
type TrainingMessage struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTrainingMessage(job *jobs.TrainingJob) *TrainingMessage {
	return &TrainingMessage{
		JobID:     job.JobID,
		UserID:    job.UserID,
		Attempt:   job.RetryCount,
		Timestamp: time.Now(),
	}
}

func (m *TrainingMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TrainingMessageFromJSON decodes a message and rejects ones without a
// job or user.
func TrainingMessageFromJSON(data []byte) (*TrainingMessage, error) {
	var msg TrainingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" || msg.UserID == "" {
		return nil, errors.New("training message without job or user id")
	}
	return &msg, nil
}

// job rebuilds a pending job from the message when no store is available.
func (m *TrainingMessage) job() *jobs.TrainingJob {
	return &jobs.TrainingJob{
		JobID:      m.JobID,
		UserID:     m.UserID,
		Status:     jobs.JobStatusPending,
		CreatedAt:  m.Timestamp,
		RetryCount: m.Attempt,
		MaxRetries: jobs.DefaultMaxRetries,
	}
}
