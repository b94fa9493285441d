package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendplan/internal/budget"
	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/goals"
	"spendplan/internal/log"
	"spendplan/internal/records"
)

// Forecaster is satisfied by *forecast.Aggregator.
type Forecaster interface {
	ForecastRecords(ctx context.Context, userID string, recs []core.MonthlyRecord) (core.ForecastSummary, error)
}

// SeriesFetcher is satisfied by *forecast.Fetcher.
type SeriesFetcher interface {
	CheckCategory(category string) error
	Fetch(ctx context.Context, userID, category string, monthsBack int) (core.CategorySeries, error)
}

// PlanningService answers forecast, budget and goal requests for a user.
type PlanningService struct {
	records    records.Store
	forecaster Forecaster
	series     SeriesFetcher
	policy     config.AllocationPolicy
	logger     *log.Logger
	now        func() time.Time
}

func NewPlanningService(r records.Store, f Forecaster, policy config.AllocationPolicy, logger *log.Logger) *PlanningService {
	if logger == nil {
		logger = log.Discard()
	}
	return &PlanningService{
		records:    r,
		forecaster: f,
		policy:     policy,
		logger:     logger.WithComponent(log.ComponentAllocation),
		now:        time.Now,
	}
}

// UseSeries enables category history lookups and restricts stored records
// to the categories the fetcher accepts.
func (s *PlanningService) UseSeries(f SeriesFetcher) {
	s.series = f
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	return nil
}

// Forecast returns next month's per-category forecast or core.ErrNoData.
func (s *PlanningService) Forecast(ctx context.Context, userID string) (core.ForecastSummary, error) {
	if err := checkUser(userID); err != nil {
		return core.ForecastSummary{}, err
	}
	recs, err := s.records.ListRecords(ctx, userID, "", "")
	if err != nil {
		return core.ForecastSummary{UserID: userID}, fmt.Errorf("list records: %w", err)
	}
	return s.forecaster.ForecastRecords(ctx, userID, recs)
}

// Allocate builds the budget plan from the latest record. A user without
// records gets a goal-only plan with status no_data.
func (s *PlanningService) Allocate(ctx context.Context, userID string) (core.AllocationPlan, error) {
	if err := checkUser(userID); err != nil {
		return core.AllocationPlan{}, err
	}
	logger := s.logger.With(log.FieldUserID, userID)

	recs, err := s.records.ListRecords(ctx, userID, "", "")
	if err != nil {
		return core.AllocationPlan{}, fmt.Errorf("list records: %w", err)
	}
	gs, err := s.records.ListGoals(ctx, userID)
	if err != nil {
		return core.AllocationPlan{}, fmt.Errorf("list goals: %w", err)
	}

	current, hasRecord := core.LatestRecord(recs)
	goalResult := goals.Process(gs, current.TotalIncome, current.SpentAmount, s.now(), s.policy)

	var summary core.ForecastSummary
	if hasRecord {
		summary, err = s.forecaster.ForecastRecords(ctx, userID, recs)
		if err != nil && !errors.Is(err, core.ErrNoData) {
			return core.AllocationPlan{}, fmt.Errorf("forecast: %w", err)
		}
	}

	plan := budget.Allocate(budget.Input{
		UserID:    userID,
		Current:   current,
		HasRecord: hasRecord,
		Goals:     goalResult,
		Forecast:  summary,
		History:   recs,
		Policy:    s.policy,
	})
	if !hasRecord {
		plan.Status = core.PlanStatusNoData
		plan.Suggestions = append([]core.Advisory{{
			Level:   core.LevelInfo,
			Code:    core.AdviceNoData,
			Message: "No financial records found. Add a monthly record to get a spending plan.",
		}}, plan.Suggestions...)
	}

	logger.InfoContext(ctx, "Budget plan built",
		"status", plan.Status,
		"month", plan.Month,
		"committed", plan.Totals.TotalCommitted,
		"suggestions", len(plan.Suggestions),
		log.FieldStrategy, plan.ForecastStrategy)
	return plan, nil
}

// ListGoals returns the user's goals in stored order.
func (s *PlanningService) ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	return s.records.ListGoals(ctx, userID)
}

// SaveGoal validates and stores a goal.
func (s *PlanningService) SaveGoal(ctx context.Context, userID string, g core.SavingsGoal) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	return s.records.SaveGoal(ctx, userID, g)
}

// GoalProgress reports one goal's progress towards its target.
func (s *PlanningService) GoalProgress(ctx context.Context, userID, goalID string) (goals.GoalProgress, error) {
	if err := checkUser(userID); err != nil {
		return goals.GoalProgress{}, err
	}
	g, err := s.records.GetGoal(ctx, userID, goalID)
	if err != nil {
		return goals.GoalProgress{}, err
	}
	return goals.Progress(g), nil
}

// PutRecord validates and stores a monthly record.
func (s *PlanningService) PutRecord(ctx context.Context, userID string, r core.MonthlyRecord) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if s.series != nil {
		for cat := range r.CategoryExpenses {
			if err := s.series.CheckCategory(cat); err != nil {
				return err
			}
		}
	}
	return s.records.PutRecord(ctx, userID, r)
}

// Series returns one category's history, limited to the last monthsBack
// months when monthsBack > 0.
func (s *PlanningService) Series(ctx context.Context, userID, category string, monthsBack int) (core.CategorySeries, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if s.series == nil {
		return nil, errors.New("series: no fetcher configured")
	}
	return s.series.Fetch(ctx, userID, category, monthsBack)
}

// ListUsers returns every user with records or goals.
func (s *PlanningService) ListUsers(ctx context.Context) ([]string, error) {
	return s.records.ListUsers(ctx)
}
