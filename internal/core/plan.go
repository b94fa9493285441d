package core

type AdvisoryLevel string

const (
	LevelInfo     AdvisoryLevel = "info"
	LevelWarning  AdvisoryLevel = "warning"
	LevelCritical AdvisoryLevel = "critical"
)

// Advisory is a human-readable suggestion attached to a plan. Advisories
// never signal failure.
type Advisory struct {
	Level   AdvisoryLevel `json:"level"`
	Code    string        `json:"code"`
	Subject string        `json:"subject,omitempty"`
	Message string        `json:"message"`
}

// Advisory codes.
const (
	AdviceOverspend        = "overspend"
	AdviceSavingsTip       = "savings_tip"
	AdviceNextMonthReduce  = "next_month_reduce"
	AdviceCategoryCut      = "category_cut"
	AdviceCategoryReduce   = "category_reduce"
	AdviceCategoryIncrease = "category_increase"
	AdviceLowBalance       = "low_balance"
	AdviceTopSpending      = "top_spending"
	AdviceNoCategoryData   = "no_category_data"
	AdviceForecastQuality  = "forecast_confidence"
	AdviceModelPending     = "model_pending"
	AdviceNoData           = "no_data"

	AdviceGoalComplete     = "goal_complete"
	AdviceGoalUrgent       = "goal_urgent"
	AdviceGoalDeadlineRisk = "goal_deadline_risk"
	AdviceGoalNearTerm     = "goal_near_term"
	AdviceGoalNearTermRisk = "goal_near_term_risk"
	AdviceGoalPlan         = "goal_plan"
	AdviceGoalUnrealistic  = "goal_unrealistic"
	AdviceUrgentConflict   = "urgent_conflict"
)

// GoalState is the urgency class of a goal for the current month.
type GoalState string

const (
	GoalComplete GoalState = "complete"
	GoalUrgent   GoalState = "urgent"
	GoalNearTerm GoalState = "near_term"
	GoalNormal   GoalState = "normal"
)

// GoalContribution is what one goal receives from this month's safe saving
// budget.
type GoalContribution struct {
	GoalID      string    `json:"goal_id"`
	Name        string    `json:"name"`
	State       GoalState `json:"state"`
	MonthsLeft  int       `json:"months_left"`
	Remaining   float64   `json:"remaining"`
	MonthlyNeed float64   `json:"monthly_need"`
	Amount      float64   `json:"amount"`
}

// PlanTotals summarises the month the plan was built for.
type PlanTotals struct {
	Income             float64 `json:"income"`
	Spent              float64 `json:"spent"`
	IncomeLeft         float64 `json:"income_left"`
	TotalSavingsNeeded float64 `json:"total_savings_needed"`
	TotalCommitted     float64 `json:"total_committed"`
	LeftoverBudget     float64 `json:"leftover_budget"`
	SavingsPossible    float64 `json:"savings_possible"`
}

const (
	PlanStatusOK     = "ok"
	PlanStatusNoData = "no_data"
)

// AllocationPlan is the result of the allocate operation: a budget per
// category, goal contributions and ordered advisories.
type AllocationPlan struct {
	UserID            string             `json:"user_id"`
	Status            string             `json:"status"`
	Month             MonthKey           `json:"month,omitempty"`
	RecommendedBudget map[string]float64 `json:"recommended_budget"`
	GoalContributions []GoalContribution `json:"goal_contributions"`
	Suggestions       []Advisory         `json:"suggestions"`
	Totals            PlanTotals         `json:"totals"`
	ForecastStrategy  Strategy           `json:"forecast_strategy,omitempty"`
	Pending           []string           `json:"pending,omitempty"`
	SafeSavingBudget  float64            `json:"safe_saving_budget"`
}

// Contribution returns the amount planned for the given goal.
func (p AllocationPlan) Contribution(goalID string) (float64, bool) {
	for _, c := range p.GoalContributions {
		if c.GoalID == goalID {
			return c.Amount, true
		}
	}
	return 0, false
}

// HasAdvice reports whether any suggestion carries the code.
func (p AllocationPlan) HasAdvice(code string) bool {
	return CountAdvice(p.Suggestions, code) > 0
}

// CountAdvice counts advisories with the given code.
func CountAdvice(advs []Advisory, code string) int {
	n := 0
	for _, a := range advs {
		if a.Code == code {
			n++
		}
	}
	return n
}
