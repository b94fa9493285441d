package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Policy holds the tunable product constants of forecasting and
// allocation. Values come from DefaultPolicy, then an optional TOML file,
// then environment overrides.
type Policy struct {
	Allocation AllocationPolicy `toml:"allocation"`
	Forecast   ForecastPolicy   `toml:"forecast"`
	Training   TrainingPolicy   `toml:"training"`
}

type AllocationPolicy struct {
	// Share of income reserved for non-discretionary spending.
	EssentialBufferRatio float64 `toml:"essential_buffer_ratio"`
	// Ceiling on the share of one month's income redirected to savings.
	MaxSafeSaveRatio float64 `toml:"max_safe_save_ratio"`
	// months_left assigned to deadlines in the next calendar month.
	NearTermMonthsLeft int     `toml:"near_term_months_left"`
	LowBalanceRatio    float64 `toml:"low_balance_ratio"`
	TopSpendingCount   int     `toml:"top_spending_count"`
}

type ForecastPolicy struct {
	MinHistory     int `toml:"min_history"`
	RichHistory    int `toml:"rich_history"`
	NaiveWindow    int `toml:"naive_window"`
	SeasonalPeriod int `toml:"seasonal_period"`
	SequenceWindow int `toml:"sequence_window"`
}

type TrainingPolicy struct {
	Epochs       int     `toml:"epochs"`
	LearningRate float64 `toml:"learning_rate"`
}

func DefaultPolicy() Policy {
	return Policy{
		Allocation: AllocationPolicy{
			EssentialBufferRatio: 0.25,
			MaxSafeSaveRatio:     0.40,
			NearTermMonthsLeft:   2,
			LowBalanceRatio:      0.10,
			TopSpendingCount:     2,
		},
		Forecast: ForecastPolicy{
			MinHistory:     3,
			RichHistory:    12,
			NaiveWindow:    3,
			SeasonalPeriod: 12,
			SequenceWindow: 12,
		},
		Training: TrainingPolicy{
			Epochs:       2000,
			LearningRate: 0.05,
		},
	}
}

// LoadPolicy reads path on top of the defaults. An empty path returns the
// defaults with environment overrides applied.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("read policy file: %w", err)
		}
		if _, err := toml.Decode(string(data), &p); err != nil {
			return p, fmt.Errorf("decode policy file: %w", err)
		}
	}
	p.applyEnv()
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (p *Policy) applyEnv() {
	p.Allocation.EssentialBufferRatio = getEnvFloat("ESSENTIAL_BUFFER_RATIO", p.Allocation.EssentialBufferRatio)
	p.Allocation.MaxSafeSaveRatio = getEnvFloat("MAX_SAFE_SAVE_RATIO", p.Allocation.MaxSafeSaveRatio)
	p.Allocation.LowBalanceRatio = getEnvFloat("LOW_BALANCE_RATIO", p.Allocation.LowBalanceRatio)
	p.Allocation.NearTermMonthsLeft = getEnvInt("NEAR_TERM_MONTHS_LEFT", p.Allocation.NearTermMonthsLeft)
}

// Write encodes the policy as TOML, used by `spendctl policy` to dump the
// effective values.
func (p Policy) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(p)
}

func (p Policy) Validate() error {
	var errors []string

	a := p.Allocation
	if a.EssentialBufferRatio < 0 || a.EssentialBufferRatio >= 1 {
		errors = append(errors, fmt.Sprintf("invalid essential buffer ratio %v: must be in [0, 1)", a.EssentialBufferRatio))
	}
	if a.MaxSafeSaveRatio <= 0 || a.MaxSafeSaveRatio > 1 {
		errors = append(errors, fmt.Sprintf("invalid max safe save ratio %v: must be in (0, 1]", a.MaxSafeSaveRatio))
	}
	if a.NearTermMonthsLeft < 2 {
		errors = append(errors, fmt.Sprintf("invalid near term months left %d: must be at least 2", a.NearTermMonthsLeft))
	}
	if a.LowBalanceRatio < 0 || a.LowBalanceRatio > 1 {
		errors = append(errors, fmt.Sprintf("invalid low balance ratio %v: must be in [0, 1]", a.LowBalanceRatio))
	}
	if a.TopSpendingCount < 0 {
		errors = append(errors, fmt.Sprintf("invalid top spending count %d: must not be negative", a.TopSpendingCount))
	}

	f := p.Forecast
	if f.MinHistory < 1 {
		errors = append(errors, fmt.Sprintf("invalid min history %d: must be at least 1", f.MinHistory))
	}
	if f.RichHistory <= f.MinHistory {
		errors = append(errors, fmt.Sprintf("invalid rich history %d: must exceed min history %d", f.RichHistory, f.MinHistory))
	}
	if f.NaiveWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid naive window %d: must be at least 1", f.NaiveWindow))
	}
	if f.SeasonalPeriod < 2 {
		errors = append(errors, fmt.Sprintf("invalid seasonal period %d: must be at least 2", f.SeasonalPeriod))
	}
	if f.SequenceWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid sequence window %d: must be at least 1", f.SequenceWindow))
	}

	if p.Training.Epochs < 1 {
		errors = append(errors, fmt.Sprintf("invalid training epochs %d: must be at least 1", p.Training.Epochs))
	}
	if p.Training.LearningRate <= 0 {
		errors = append(errors, fmt.Sprintf("invalid learning rate %v: must be positive", p.Training.LearningRate))
	}

	if len(errors) > 0 {
		return fmt.Errorf("policy validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
