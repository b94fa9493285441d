package budget

import (
	"testing"
	"time"

	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/goals"
)

var now = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func policy() config.AllocationPolicy { return config.DefaultPolicy().Allocation }

func forecastOf(amounts map[string]float64, strategy core.Strategy) core.ForecastSummary {
	s := core.ForecastSummary{UserID: "u1", Categories: map[string]core.ForecastResult{}, Strategy: strategy, MonthsOfHistory: 12}
	var vals []float64
	for cat, v := range amounts {
		s.Categories[cat] = core.ForecastResult{Category: cat, PredictedAmount: v, Strategy: strategy}
		vals = append(vals, v)
	}
	s.Total = core.Sum(vals...)
	return s
}

func record(income, spent float64, cats map[string]float64) core.MonthlyRecord {
	return core.MonthlyRecord{Month: "2026-03", TotalIncome: income, SpentAmount: spent, CategoryExpenses: cats}
}

func TestOverspend(t *testing.T) {
	cur := record(50000, 52000, map[string]float64{"Food": 30000, "Travel": 22000})
	g := goals.Process([]core.SavingsGoal{{ID: "g", Name: "Car", TargetAmount: 6000, EndDate: "2026-09-01"}},
		cur.TotalIncome, cur.SpentAmount, now, policy())

	plan := Allocate(Input{
		UserID:    "u1",
		Current:   cur,
		HasRecord: true,
		Goals:     g,
		Forecast:  forecastOf(map[string]float64{"Food": 25000, "Travel": 20000}, core.StrategyDualModel),
		History:   []core.MonthlyRecord{cur},
		Policy:    policy(),
	})

	if plan.Totals.IncomeLeft != -2000 {
		t.Errorf("income_left = %v, want -2000", plan.Totals.IncomeLeft)
	}
	if !plan.HasAdvice(core.AdviceOverspend) {
		t.Error("missing overspend advisory")
	}
	if !plan.HasAdvice(core.AdviceSavingsTip) {
		t.Error("missing savings tip")
	}
	if n := core.CountAdvice(plan.Suggestions, core.AdviceNextMonthReduce); n != 2 {
		t.Errorf("next month reduce lines = %d, want 2", n)
	}
	if !plan.HasAdvice(core.AdviceLowBalance) {
		t.Error("missing low balance warning")
	}
	if plan.HasAdvice(core.AdviceCategoryCut) || plan.HasAdvice(core.AdviceCategoryReduce) {
		t.Error("overspend plan should not carry cut or reduce lines")
	}
	if plan.Totals.TotalCommitted != 0 {
		t.Errorf("committed = %v, want 0 with nothing disposable", plan.Totals.TotalCommitted)
	}
}

func TestRecommendedBudgetScaling(t *testing.T) {
	tests := []struct {
		name      string
		income    float64
		committed float64
		forecast  map[string]float64
		want      map[string]float64
	}{
		{
			name: "fits", income: 40000, committed: 5000,
			forecast: map[string]float64{"Food": 10000, "Travel": 5000},
			want:     map[string]float64{"Food": 10000, "Travel": 5000},
		},
		{
			name: "scaled", income: 40000, committed: 10000,
			forecast: map[string]float64{"Food": 30000, "Travel": 20000},
			want:     map[string]float64{"Food": 18000, "Travel": 12000},
		},
		{
			name: "floored to cents", income: 150, committed: 50,
			forecast: map[string]float64{"A": 100, "B": 100, "C": 100},
			want:     map[string]float64{"A": 33.33, "B": 33.33, "C": 33.33},
		},
		{
			name: "nothing left", income: 1000, committed: 1000,
			forecast: map[string]float64{"Food": 300},
			want:     map[string]float64{"Food": 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Allocate(Input{
				UserID:    "u1",
				Current:   record(tt.income, 0, nil),
				HasRecord: true,
				Goals:     goals.Result{TotalCommitted: tt.committed},
				Forecast:  forecastOf(tt.forecast, core.StrategyDualModel),
				Policy:    policy(),
			})
			var sum float64
			for cat, want := range tt.want {
				if got := plan.RecommendedBudget[cat]; got != want {
					t.Errorf("%s = %v, want %v", cat, got, want)
				}
				sum += plan.RecommendedBudget[cat]
			}
			if remaining := max(tt.income-tt.committed, 0); sum > remaining+1e-9 {
				t.Errorf("recommended sum %v exceeds %v", sum, remaining)
			}
			if plan.Totals.LeftoverBudget != core.Round2(tt.income-tt.committed) {
				t.Errorf("leftover = %v", plan.Totals.LeftoverBudget)
			}
		})
	}
}

func TestCutsWhenSavingsExceedIncomeLeft(t *testing.T) {
	cur := record(10000, 8000, map[string]float64{"Food": 5000, "Travel": 3000})
	plan := Allocate(Input{
		UserID:    "u1",
		Current:   cur,
		HasRecord: true,
		Goals:     goals.Result{TotalMonthlyNeed: 3000, TotalCommitted: 0},
		Forecast:  forecastOf(map[string]float64{"Food": 6000, "Travel": 2000}, core.StrategyDualModel),
		Policy:    policy(),
	})

	// extra = 3000 - 2000 = 1000, split 6000:2000
	var cuts []core.Advisory
	for _, a := range plan.Suggestions {
		if a.Code == core.AdviceCategoryCut {
			cuts = append(cuts, a)
		}
	}
	if len(cuts) != 2 {
		t.Fatalf("cuts = %+v", cuts)
	}
	if cuts[0].Subject != "Food" || cuts[0].Message != "Cut 750.00 from Food to help fund savings due soon." {
		t.Errorf("first cut = %+v", cuts[0])
	}
	if cuts[1].Message != "Cut 250.00 from Travel to help fund savings due soon." {
		t.Errorf("second cut = %+v", cuts[1])
	}
	if plan.RecommendedBudget["Food"] != 6000 {
		t.Errorf("cuts must not change the recommended budget: %v", plan.RecommendedBudget)
	}
	if plan.Totals.SavingsPossible != -6000 {
		t.Errorf("savings_possible = %v, want 2000-8000", plan.Totals.SavingsPossible)
	}
}

func TestAdjustmentsAgainstLastMonth(t *testing.T) {
	cur := record(10000, 4000, map[string]float64{"Food": 2500, "Travel": 1000, "Health": 500})
	plan := Allocate(Input{
		UserID:    "u1",
		Current:   cur,
		HasRecord: true,
		Forecast:  forecastOf(map[string]float64{"Food": 2000, "Travel": 1200.5, "Health": 500}, core.StrategyDualModel),
		Policy:    policy(),
	})

	if n := core.CountAdvice(plan.Suggestions, core.AdviceCategoryReduce); n != 1 {
		t.Errorf("reduce lines = %d, want 1", n)
	}
	if n := core.CountAdvice(plan.Suggestions, core.AdviceCategoryIncrease); n != 1 {
		t.Errorf("increase lines = %d, want 1", n)
	}
	for _, a := range plan.Suggestions {
		if a.Code == core.AdviceCategoryIncrease && a.Message != "You can increase Travel by 200.50 if savings are on track." {
			t.Errorf("increase = %q", a.Message)
		}
	}
	if plan.HasAdvice(core.AdviceLowBalance) || plan.HasAdvice(core.AdviceOverspend) {
		t.Errorf("unexpected warnings: %+v", plan.Suggestions)
	}
}

func TestEmptyInputsStillPlan(t *testing.T) {
	plan := Allocate(Input{UserID: "u1", Policy: policy()})

	if plan.Status != core.PlanStatusOK {
		t.Errorf("status = %q", plan.Status)
	}
	if plan.RecommendedBudget == nil || plan.GoalContributions == nil || plan.Suggestions == nil {
		t.Error("plan collections must be non-nil")
	}
	if plan.HasAdvice(core.AdviceOverspend) {
		t.Error("overspend requires a current record")
	}
	if !plan.HasAdvice(core.AdviceNoCategoryData) {
		t.Error("missing no-category advisory")
	}
	if plan.HasAdvice(core.AdviceTopSpending) {
		t.Error("top spending needs history")
	}
}

func TestFallsBackToLastMonthWithoutForecast(t *testing.T) {
	cur := record(10000, 3000, map[string]float64{"Food": 2000, "Travel": 1000})
	plan := Allocate(Input{UserID: "u1", Current: cur, HasRecord: true, Policy: policy()})

	if plan.RecommendedBudget["Food"] != 2000 || plan.RecommendedBudget["Travel"] != 1000 {
		t.Errorf("recommended = %v", plan.RecommendedBudget)
	}
	if plan.HasAdvice(core.AdviceCategoryReduce) || plan.HasAdvice(core.AdviceCategoryIncrease) {
		t.Error("no adjustment expected when recommended equals last month")
	}
}

func TestTopSpendingAndForecastNotes(t *testing.T) {
	history := []core.MonthlyRecord{
		record(5000, 1000, map[string]float64{"Food": 400, "Travel": 300, "Health": 300}),
		record(5000, 1000, map[string]float64{"Food": 400, "Travel": 100, "Health": 500}),
	}
	f := forecastOf(map[string]float64{"Food": 400}, core.StrategyNaiveAverage)
	f.Pending = []string{"Travel"}

	plan := Allocate(Input{UserID: "u1", Current: history[1], HasRecord: true, History: history, Forecast: f, Policy: policy()})

	var top core.Advisory
	for _, a := range plan.Suggestions {
		if a.Code == core.AdviceTopSpending {
			top = a
		}
	}
	if top.Subject != "Food, Health" {
		t.Errorf("top spending subject = %q, want Food, Health", top.Subject)
	}
	if top.Message != "Your highest spending so far: Food (800.00), Health (800.00)." {
		t.Errorf("top spending = %q", top.Message)
	}
	if !plan.HasAdvice(core.AdviceForecastQuality) || !plan.HasAdvice(core.AdviceModelPending) {
		t.Errorf("missing forecast notes: %+v", plan.Suggestions)
	}
	if plan.ForecastStrategy != core.StrategyNaiveAverage || len(plan.Pending) != 1 {
		t.Errorf("plan forecast = %s %v", plan.ForecastStrategy, plan.Pending)
	}
}

func TestGoalAdvisoriesCarriedOver(t *testing.T) {
	cur := record(10000, 5000, nil)
	g := goals.Process([]core.SavingsGoal{
		{ID: "a", Name: "A", TargetAmount: 3000, EndDate: "2026-03-20"},
		{ID: "b", Name: "B", TargetAmount: 3000, EndDate: "2026-03-25"},
	}, cur.TotalIncome, cur.SpentAmount, now, policy())

	plan := Allocate(Input{UserID: "u1", Current: cur, HasRecord: true, Goals: g, Policy: policy()})

	if core.CountAdvice(plan.Suggestions, core.AdviceUrgentConflict) != 1 {
		t.Errorf("suggestions = %+v", plan.Suggestions)
	}
	if got, _ := plan.Contribution("a"); got != 2500 {
		t.Errorf("contribution a = %v, want the whole safe budget of 2500", got)
	}
	if plan.Totals.TotalSavingsNeeded != 6000 || plan.SafeSavingBudget != 2500 {
		t.Errorf("totals = %+v safe = %v", plan.Totals, plan.SafeSavingBudget)
	}
}
