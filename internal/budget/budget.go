// Package budget turns a forecast and a goal allocation into a monthly
// spending plan with advisories.
package budget

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/goals"
)

// Input is everything Allocate needs for one user and month.
type Input struct {
	UserID string
	// Current is the latest monthly record. HasRecord is false when the
	// user has none, in which case Current is zero.
	Current   core.MonthlyRecord
	HasRecord bool
	Goals     goals.Result
	Forecast  core.ForecastSummary
	History   []core.MonthlyRecord
	Policy    config.AllocationPolicy
}

// Allocate builds the spending plan. It never fails: missing goals,
// forecasts or history only narrow what the plan can say.
func Allocate(in Input) core.AllocationPlan {
	income := in.Current.TotalIncome
	spent := in.Current.SpentAmount
	incomeLeft := core.Round2(income - spent)
	committed := in.Goals.TotalCommitted
	needed := in.Goals.TotalMonthlyNeed

	plan := core.AllocationPlan{
		UserID:            in.UserID,
		Status:            core.PlanStatusOK,
		Month:             in.Current.Month,
		RecommendedBudget: recommend(in, max(income-committed, 0)),
		GoalContributions: in.Goals.Contributions,
		Suggestions:       []core.Advisory{},
		ForecastStrategy:  in.Forecast.Strategy,
		Pending:           in.Forecast.Pending,
		SafeSavingBudget:  in.Goals.SafeSavingBudget,
	}
	if plan.GoalContributions == nil {
		plan.GoalContributions = []core.GoalContribution{}
	}

	b := &builder{plan: &plan}
	cats := slices.Sorted(maps.Keys(plan.RecommendedBudget))

	if in.HasRecord {
		if spent >= income {
			b.overspend(spent, income, needed, cats)
		} else if extra := core.Round2(needed - incomeLeft); extra > 0 {
			b.cuts(plan.RecommendedBudget, in.Current.CategoryExpenses, extra)
		} else {
			b.adjustments(plan.RecommendedBudget, in.Current.CategoryExpenses, cats)
		}
	}

	plan.Suggestions = append(plan.Suggestions, in.Goals.Advisories...)

	if income > 0 && incomeLeft/income < in.Policy.LowBalanceRatio {
		b.add(core.LevelWarning, core.AdviceLowBalance, "",
			fmt.Sprintf("Only %.2f (less than %.0f%%) of income remains. Avoid non-essential expenses.",
				incomeLeft, in.Policy.LowBalanceRatio*100))
	}
	if len(plan.RecommendedBudget) == 0 {
		b.add(core.LevelInfo, core.AdviceNoCategoryData, "",
			"No category expense data found. Add expenses to see insights.")
	}
	b.topSpending(in.History, in.Policy.TopSpendingCount)
	b.forecastNotes(in.Forecast)

	recommended := slices.Collect(maps.Values(plan.RecommendedBudget))
	plan.Totals = core.PlanTotals{
		Income:             income,
		Spent:              spent,
		IncomeLeft:         incomeLeft,
		TotalSavingsNeeded: needed,
		TotalCommitted:     committed,
		LeftoverBudget:     core.Round2(income - committed),
		SavingsPossible:    core.Round2(incomeLeft - core.Sum(recommended...)),
	}
	return plan
}

// recommend takes the forecast per category, or last month's actual spend
// when nothing was forecast, and scales it down to fit remaining.
// Categories with too little history to forecast also fall back to last
// month's actual spend.
func recommend(in Input, remaining float64) map[string]float64 {
	out := make(map[string]float64)
	if !in.Forecast.Empty() {
		for cat, r := range in.Forecast.Categories {
			out[cat] = core.NonNegative(r.PredictedAmount)
		}
		for _, cat := range in.Forecast.Insufficient {
			if v, ok := in.Current.CategoryExpenses[cat]; ok {
				out[cat] = core.NonNegative(v)
			}
		}
	} else {
		for cat, v := range in.Current.CategoryExpenses {
			out[cat] = core.NonNegative(v)
		}
	}

	total := core.Sum(slices.Collect(maps.Values(out))...)
	if total > remaining && total > 0 {
		scale := remaining / total
		for cat, v := range out {
			out[cat] = core.FloorCents(v * scale)
		}
	}
	return out
}

type builder struct {
	plan *core.AllocationPlan
}

func (b *builder) add(level core.AdvisoryLevel, code, subject, msg string) {
	b.plan.Suggestions = append(b.plan.Suggestions, core.Advisory{Level: level, Code: code, Subject: subject, Message: msg})
}

func (b *builder) overspend(spent, income, needed float64, cats []string) {
	b.add(core.LevelCritical, core.AdviceOverspend, "",
		fmt.Sprintf("You've already spent %.2f out of %.2f. You've crossed your income limit this month.", spent, income))
	if needed > 0 {
		b.add(core.LevelInfo, core.AdviceSavingsTip, "",
			fmt.Sprintf("Try saving for goals next month. Total savings needed: %.2f.", needed))
	}
	for _, cat := range cats {
		b.add(core.LevelWarning, core.AdviceNextMonthReduce, cat,
			fmt.Sprintf("Reduce spending in %s next month to support your savings.", cat))
	}
}

// cuts proposes trimming each category in proportion to its share of the
// recommended budget. The recommended amounts themselves stay unchanged.
func (b *builder) cuts(recommended, actual map[string]float64, extra float64) {
	total := core.Sum(slices.Collect(maps.Values(recommended))...)
	if total <= 0 {
		return
	}
	cats := slices.SortedFunc(maps.Keys(recommended), func(x, y string) int {
		return cmp.Or(cmp.Compare(actual[y], actual[x]), strings.Compare(x, y))
	})
	for _, cat := range cats {
		cut := core.Round2(recommended[cat] / total * extra)
		if cut <= 0 {
			continue
		}
		b.add(core.LevelWarning, core.AdviceCategoryCut, cat,
			fmt.Sprintf("Cut %.2f from %s to help fund savings due soon.", cut, cat))
	}
}

func (b *builder) adjustments(recommended, actual map[string]float64, cats []string) {
	for _, cat := range cats {
		diff := core.Round2(recommended[cat] - actual[cat])
		switch {
		case diff < 0:
			b.add(core.LevelInfo, core.AdviceCategoryReduce, cat,
				fmt.Sprintf("Reduce %s by %.2f to increase your savings.", cat, -diff))
		case diff > 0:
			b.add(core.LevelInfo, core.AdviceCategoryIncrease, cat,
				fmt.Sprintf("You can increase %s by %.2f if savings are on track.", cat, diff))
		}
	}
}

// topSpending names the n categories with the highest summed history.
func (b *builder) topSpending(history []core.MonthlyRecord, n int) {
	if n <= 0 {
		return
	}
	totals := make(map[string]float64)
	for _, r := range history {
		for cat, v := range r.CategoryExpenses {
			totals[cat] = core.Sum(totals[cat], v)
		}
	}
	if len(totals) == 0 {
		return
	}
	cats := slices.SortedFunc(maps.Keys(totals), func(x, y string) int {
		return cmp.Or(cmp.Compare(totals[y], totals[x]), strings.Compare(x, y))
	})
	cats = cats[:min(n, len(cats))]

	parts := make([]string, len(cats))
	for i, cat := range cats {
		parts[i] = fmt.Sprintf("%s (%.2f)", cat, totals[cat])
	}
	b.add(core.LevelInfo, core.AdviceTopSpending, strings.Join(cats, ", "),
		fmt.Sprintf("Your highest spending so far: %s.", strings.Join(parts, ", ")))
}

func (b *builder) forecastNotes(f core.ForecastSummary) {
	switch f.Strategy {
	case core.StrategyInsufficientData, core.StrategyNaiveAverage:
		b.add(core.LevelInfo, core.AdviceForecastQuality, string(f.Strategy),
			fmt.Sprintf("Forecast is based on %d month(s) of history and may be rough.", f.MonthsOfHistory))
	}
	if len(f.Pending) > 0 {
		b.add(core.LevelInfo, core.AdviceModelPending, strings.Join(f.Pending, ", "),
			fmt.Sprintf("Models for %s are still training. Their spending is not forecast yet.", strings.Join(f.Pending, ", ")))
	}
}
