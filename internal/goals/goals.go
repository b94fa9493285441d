// Package goals splits a month's safe saving budget across savings goals.
//
// Goals are visited in ascending months_left order (stable, so ties keep
// their stored order). Each goal claims from a running balance, so the
// visit order decides who is funded when money runs short.
package goals

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"spendplan/internal/config"
	"spendplan/internal/core"
)

// Result is the outcome of processing one user's goals for one month.
type Result struct {
	Contributions []core.GoalContribution
	Advisories    []core.Advisory

	// TotalCommitted is the sum of contributions.
	TotalCommitted float64
	// TotalMonthlyNeed is what the open goals ask for this month before
	// the safety envelope is applied.
	TotalMonthlyNeed float64

	SafeSavingBudget float64
	Disposable       float64
	MaxSafe          float64
}

// Envelope returns the safe saving budget for the month:
// min(max(disposable - buffer*income, 0), maxSafe*income), floored to cents.
func Envelope(income, disposable float64, policy config.AllocationPolicy) (safe, maxSafe float64) {
	buffer := policy.EssentialBufferRatio * income
	maxSafe = core.FloorCents(max(policy.MaxSafeSaveRatio*income, 0))
	available := max(disposable-buffer, 0)
	return core.FloorCents(min(available, maxSafe)), maxSafe
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

func parseDeadline(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if len(s) > 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MonthsLeft counts the months available to fund a goal due on endDate.
// A deadline this month gives 1, next month gives nearTerm, anything
// later the whole-month difference plus one if the deadline's day has not
// yet come this month. Missing or unreadable dates give 1.
func MonthsLeft(endDate string, now time.Time, nearTerm int) int {
	due, ok := parseDeadline(endDate)
	if !ok {
		return 1
	}
	ny, nm, nd := now.Date()
	dy, dm, dd := due.Date()
	diff := (dy-ny)*12 + int(dm) - int(nm)
	switch {
	case diff <= 0:
		return 1
	case diff == 1:
		return nearTerm
	}
	if dd > nd {
		diff++
	}
	return max(diff, 1)
}

// StateFor classifies a goal by its remaining amount and months left.
// Near-term follows months_left, not the calendar: a deadline two months
// out whose day has already passed this month also counts as near-term.
func StateFor(remaining float64, monthsLeft, nearTerm int) core.GoalState {
	switch {
	case remaining <= 0:
		return core.GoalComplete
	case monthsLeft <= 1:
		return core.GoalUrgent
	case monthsLeft <= nearTerm:
		return core.GoalNearTerm
	default:
		return core.GoalNormal
	}
}

// Process allocates this month's safe saving budget across goals.
// Disposable income is income minus spent, floored at zero.
func Process(goals []core.SavingsGoal, income, spent float64, now time.Time, policy config.AllocationPolicy) Result {
	disposable := max(income-spent, 0)
	safe, maxSafe := Envelope(income, disposable, policy)
	res := Result{
		Contributions:    make([]core.GoalContribution, 0, len(goals)),
		Advisories:       []core.Advisory{},
		SafeSavingBudget: safe,
		Disposable:       core.Round2(disposable),
		MaxSafe:          maxSafe,
	}

	type pending struct {
		goal       core.SavingsGoal
		monthsLeft int
		remaining  float64
	}
	queue := make([]pending, len(goals))
	for i, g := range goals {
		queue[i] = pending{
			goal:       g,
			monthsLeft: MonthsLeft(g.EndDate, now, policy.NearTermMonthsLeft),
			remaining:  core.Round2(max(g.TargetAmount-g.AmountSaved, 0)),
		}
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].monthsLeft < queue[j].monthsLeft })

	balance := safe
	var amounts, needs []float64
	var urgentNames []string
	var urgentRemaining float64

	for _, p := range queue {
		name := p.goal.DisplayName()
		c := core.GoalContribution{
			GoalID:     p.goal.ID,
			Name:       name,
			State:      StateFor(p.remaining, p.monthsLeft, policy.NearTermMonthsLeft),
			MonthsLeft: p.monthsLeft,
			Remaining:  p.remaining,
		}

		switch c.State {
		case core.GoalComplete:
			res.advise(core.LevelInfo, core.AdviceGoalComplete, name,
				fmt.Sprintf("Goal '%s' is fully funded. Nothing more to save.", name))

		case core.GoalUrgent:
			c.MonthlyNeed = p.remaining
			c.Amount = min(p.remaining, balance)
			urgentNames = append(urgentNames, name)
			urgentRemaining += p.remaining
			if p.remaining > disposable {
				res.advise(core.LevelCritical, core.AdviceGoalDeadlineRisk, name,
					fmt.Sprintf("Not enough income left to save %.2f for '%s' this month. Try adjusting the target or continue next month.", p.remaining, name))
			} else {
				res.advise(core.LevelInfo, core.AdviceGoalUrgent, name,
					fmt.Sprintf("Goal '%s' ends this month. Save %.2f now to complete it.", name, c.Amount))
			}

		case core.GoalNearTerm:
			half := core.Round2(p.remaining / 2)
			c.MonthlyNeed = half
			if half > maxSafe {
				c.Amount = min(p.remaining, balance)
				res.advise(core.LevelWarning, core.AdviceGoalNearTermRisk, name,
					fmt.Sprintf("Next month's half of '%s' (%.2f) exceeds the safe monthly limit of %.2f. Saving %.2f now; the rest is not covered.", name, half, maxSafe, c.Amount))
			} else {
				c.Amount = min(half, balance)
				res.advise(core.LevelInfo, core.AdviceGoalNearTerm, name,
					fmt.Sprintf("Goal '%s' is due next month. Save %.2f now and %.2f next month.", name, half, core.Round2(p.remaining-half)))
			}

		case core.GoalNormal:
			need := core.Round2(p.remaining / float64(p.monthsLeft))
			c.MonthlyNeed = need
			c.Amount = min(need, balance)
			res.advise(core.LevelInfo, core.AdviceGoalPlan, name,
				fmt.Sprintf("Save %.2f/month for %d month(s) to reach '%s'.", need, p.monthsLeft, name))
			if need > maxSafe {
				res.advise(core.LevelWarning, core.AdviceGoalUnrealistic, name,
					fmt.Sprintf("'%s' needs %.2f a month, more than the safe limit of %.2f. The deadline may be unrealistic.", name, need, maxSafe))
			}
		}

		balance = core.Round2(balance - c.Amount)
		amounts = append(amounts, c.Amount)
		needs = append(needs, c.MonthlyNeed)
		res.Contributions = append(res.Contributions, c)
	}

	if len(urgentNames) > 1 && urgentRemaining > disposable {
		res.advise(core.LevelCritical, core.AdviceUrgentConflict, strings.Join(urgentNames, ", "),
			fmt.Sprintf("Goals %s are all due this month and need %.2f together, but only %.2f is left. Prioritise or move a deadline.",
				quoteList(urgentNames), core.Round2(urgentRemaining), core.Round2(disposable)))
	}

	res.TotalCommitted = core.Sum(amounts...)
	res.TotalMonthlyNeed = core.Sum(needs...)
	return res
}

func (r *Result) advise(level core.AdvisoryLevel, code, subject, msg string) {
	r.Advisories = append(r.Advisories, core.Advisory{Level: level, Code: code, Subject: subject, Message: msg})
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}
