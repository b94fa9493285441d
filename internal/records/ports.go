package records

import (
	"context"

	"spendplan/internal/core"
)

// Ports for the record store. The forecasting and allocation core only
// reads; writers serve the API and the operator CLI.
type (
	// RecordReader returns a user's monthly records in chronological order.
	// Empty from or to leave that side of the range open.
	RecordReader interface {
		ListRecords(ctx context.Context, userID string, from, to core.MonthKey) ([]core.MonthlyRecord, error)
	}

	RecordWriter interface {
		PutRecord(ctx context.Context, userID string, r core.MonthlyRecord) error
	}

	// GoalReader returns goals in their stored enumeration order.
	GoalReader interface {
		ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error)
		GetGoal(ctx context.Context, userID, goalID string) (core.SavingsGoal, error)
	}

	GoalWriter interface {
		SaveGoal(ctx context.Context, userID string, g core.SavingsGoal) error
	}

	UserLister interface {
		ListUsers(ctx context.Context) ([]string, error)
	}

	// Store is the full capability set every backend provides.
	Store interface {
		RecordReader
		RecordWriter
		GoalReader
		GoalWriter
		UserLister
	}
)

// InRange reports whether m falls within [from, to], treating empty bounds
// as open.
func InRange(m, from, to core.MonthKey) bool {
	if from != "" && m < from {
		return false
	}
	if to != "" && m > to {
		return false
	}
	return true
}
