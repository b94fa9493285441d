package core

import "errors"

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyUser       = errors.New("empty user id")
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidGoal marks goals that cannot be stored at all.
	ErrInvalidGoal  = errors.New("invalid goal")
	ErrGoalNotFound = errors.New("goal not found")

	// ErrNoData means the user has no monthly records.
	ErrNoData = errors.New("no financial records found")

	// ErrModelPending means a category has enough history but no trained
	// sequence model yet.
	ErrModelPending = errors.New("model pending")

	// ErrModelFit is raised when the seasonal model cannot be estimated.
	ErrModelFit = errors.New("model fit failed")

	ErrModelNotFound   = errors.New("model artifact not found")
	ErrCorruptArtifact = errors.New("corrupt model artifact")

	ErrJobNotFound = errors.New("job not found")
)
