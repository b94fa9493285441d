package storage

import "database/sql"

type MonthlyRecord struct {
	UserID           string
	Month            string
	TotalIncomeCents int64
	SpentCents       int64
	UpdatedAt        string
}

type CategoryExpense struct {
	UserID      string
	Month       string
	Category    string
	AmountCents int64
}

type SavingsGoal struct {
	UserID      string
	ID          string
	Name        string
	TargetCents int64
	SavedCents  int64
	EndDate     string
	Position    int64
}

type ModelArtifact struct {
	UserID    string
	Category  string
	Kind      string
	Payload   string
	TrainedAt string
}

type UserTraining struct {
	UserID      string
	LastTrained string
}

type RunLog struct {
	RunID      string
	UserID     string
	JobID      string
	Status     string
	StartedAt  string
	FinishedAt string
	Trained    string
	Skipped    string
	Error      string
	Transcript string
}

type TrainingJob struct {
	JobID       string
	UserID      string
	RunID       string
	Status      string
	CreatedAt   string
	StartedAt   sql.NullString
	CompletedAt sql.NullString
	Error       string
	RetryCount  int64
	MaxRetries  int64
}
