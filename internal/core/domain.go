package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []string{"Food", "Utilities", "Travel", "Shopping", "Health"}

type (
	// MonthKey identifies a calendar month as "YYYY-MM".
	MonthKey string

	MonthlyRecord struct {
		Month            MonthKey           `json:"month" yaml:"month"`
		TotalIncome      float64            `json:"total_income" yaml:"total_income"`
		SpentAmount      float64            `json:"spent_amount" yaml:"spent_amount"`
		CategoryExpenses map[string]float64 `json:"category_expenses" yaml:"category_expenses"`
	}

	SeriesPoint struct {
		Month  MonthKey `json:"month"`
		Amount float64  `json:"amount"`
	}

	// CategorySeries is the chronological history of one category.
	// Months without data are absent, never zero-filled.
	CategorySeries []SeriesPoint

	SavingsGoal struct {
		ID           string  `json:"id" yaml:"id"`
		Name         string  `json:"name" yaml:"name"`
		TargetAmount float64 `json:"target_amount" yaml:"target_amount"`
		AmountSaved  float64 `json:"amount_saved" yaml:"amount_saved"`
		EndDate      string  `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	}

	User struct {
		ID          string    `json:"id"`
		LastTrained time.Time `json:"last_trained,omitempty"`
	}
)

const monthLayout = "2006-01"

// ParseMonthKey accepts "YYYY-MM" or a full "YYYY-MM-DD" date and
// normalizes it to a month key.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len("2006-01-02") {
		t, err := time.Parse("2006-01-02", s[:10])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
		}
		return MonthOf(t), nil
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// MonthOf returns the month key containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthLayout))
}

// Time returns the first day of the month in UTC.
func (m MonthKey) Time() time.Time {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddMonths shifts the key by n calendar months.
func (m MonthKey) AddMonths(n int) MonthKey {
	return MonthOf(m.Time().AddDate(0, n, 0))
}

func (m MonthKey) Validate() error {
	if _, err := time.Parse(monthLayout, string(m)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, string(m))
	}
	return nil
}

func (m MonthKey) String() string { return string(m) }

func (r MonthlyRecord) Validate() error {
	if err := r.Month.Validate(); err != nil {
		return err
	}
	if r.TotalIncome < 0 || r.SpentAmount < 0 {
		return ErrInvalidAmount
	}
	for cat, amt := range r.CategoryExpenses {
		if strings.TrimSpace(cat) == "" {
			return ErrEmptyCategory
		}
		if amt < 0 {
			return fmt.Errorf("%w: category %s", ErrInvalidAmount, cat)
		}
	}
	return nil
}

// Validate only rejects goals that cannot be stored. Odd targets or dates
// are tolerated and handled best-effort by the goal processor.
func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidGoal)
	}
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidGoal)
	}
	return nil
}

// DisplayName falls back to the goal ID when the name is blank.
func (g SavingsGoal) DisplayName() string {
	if strings.TrimSpace(g.Name) != "" {
		return g.Name
	}
	return g.ID
}

// SortRecords orders records chronologically in place.
func SortRecords(records []MonthlyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Month < records[j].Month
	})
}

// LatestRecord returns the record with the greatest month key.
func LatestRecord(records []MonthlyRecord) (MonthlyRecord, bool) {
	if len(records) == 0 {
		return MonthlyRecord{}, false
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Month > latest.Month {
			latest = r
		}
	}
	return latest, true
}

// Values returns the amounts of the series in order.
func (s CategorySeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Amount
	}
	return out
}

