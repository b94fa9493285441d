package core

// Strategy names how a category forecast was produced.
type Strategy string

const (
	StrategyDualModel           Strategy = "dual-model"
	StrategySingleModelFallback Strategy = "single-model-fallback"
	StrategyNaiveAverage        Strategy = "naive-average"
	StrategyInsufficientData    Strategy = "insufficient-data"
)

// rank orders strategies by confidence, lowest first.
func (s Strategy) rank() int {
	switch s {
	case StrategyInsufficientData:
		return 0
	case StrategyNaiveAverage:
		return 1
	case StrategySingleModelFallback:
		return 2
	case StrategyDualModel:
		return 3
	default:
		return -1
	}
}

func (s Strategy) IsValid() bool { return s.rank() >= 0 }

func (s Strategy) String() string { return string(s) }

// WorseOf returns the lower-confidence strategy of a and b. An empty
// strategy is treated as absent.
func WorseOf(a, b Strategy) Strategy {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b.rank() < a.rank() {
		return b
	}
	return a
}

// ForecastResult is one category's next-month prediction and the strategy
// that produced it.
type ForecastResult struct {
	Category        string   `json:"category"`
	PredictedAmount float64  `json:"predicted_amount"`
	Strategy        Strategy `json:"strategy"`
	HistoryLength   int      `json:"history_length"`
}

// ForecastSummary is the per-user output of the forecast operation.
type ForecastSummary struct {
	UserID          string                    `json:"user_id"`
	Categories      map[string]ForecastResult `json:"categories"`
	Total           float64                   `json:"total"`
	Strategy        Strategy                  `json:"strategy,omitempty"`
	Pending         []string                  `json:"pending,omitempty"`
	Insufficient    []string                  `json:"insufficient,omitempty"`
	MonthsOfHistory int                       `json:"months_of_history"`
}

// Empty reports whether no category produced a forecast. Categories with
// too little history are listed under Insufficient and do not count.
func (s ForecastSummary) Empty() bool { return len(s.Categories) == 0 }
