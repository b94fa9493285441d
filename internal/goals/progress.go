package goals

import "spendplan/internal/core"

// GoalProgress reports how far a goal is from its target.
type GoalProgress struct {
	GoalID    string  `json:"goal_id"`
	Name      string  `json:"name"`
	Target    float64 `json:"target_amount"`
	Saved     float64 `json:"amount_saved"`
	Remaining float64 `json:"remaining"`
	Percent   float64 `json:"progress_percentage"`
	Message   string  `json:"suggestion"`
}

// Progress computes saved/target as a percentage rounded to cents. A zero
// target reports 0%.
func Progress(g core.SavingsGoal) GoalProgress {
	var pct float64
	if g.TargetAmount != 0 {
		pct = g.AmountSaved / g.TargetAmount * 100
	}
	p := GoalProgress{
		GoalID:    g.ID,
		Name:      g.DisplayName(),
		Target:    g.TargetAmount,
		Saved:     g.AmountSaved,
		Remaining: core.Round2(max(g.TargetAmount-g.AmountSaved, 0)),
		Percent:   core.Round2(pct),
	}
	switch {
	case pct >= 100:
		p.Message = "Congratulations, you've reached your goal!"
	case pct >= 75:
		p.Message = "You're almost there! Keep it up!"
	case pct >= 50:
		p.Message = "You're halfway to your goal. Stay on track!"
	default:
		p.Message = "You can do it! Stay focused and save regularly."
	}
	return p
}
