package tsmodel

import (
	"fmt"
	"math"
	"time"

	"spendplan/internal/core"
)

// SeasonalSpec selects the lags of the autoregression:
// y[t] = c + sum_i a_i*y[t-i] (i=1..Order) + sum_j s_j*y[t-j*Period] (j=1..SeasonalOrder).
type SeasonalSpec struct {
	Order         int `json:"order"`
	SeasonalOrder int `json:"seasonal_order"`
	Period        int `json:"period"`
}

func (s SeasonalSpec) maxLag() int {
	return max(s.Order, s.SeasonalOrder*s.Period)
}

func (s SeasonalSpec) params() int {
	return 1 + s.Order + s.SeasonalOrder
}

func (s SeasonalSpec) Validate() error {
	if s.Period < 2 || s.Order < 0 || s.SeasonalOrder < 0 {
		return fmt.Errorf("%w: seasonal spec %+v", core.ErrCorruptArtifact, s)
	}
	return nil
}

// Feasible reports whether n observations leave more rows than parameters.
func (s SeasonalSpec) Feasible(n int) bool {
	return n-s.maxLag() > s.params()
}

func (s SeasonalSpec) regressors(values []float64, t int) []float64 {
	row := make([]float64, 0, s.params())
	row = append(row, 1)
	for i := 1; i <= s.Order; i++ {
		row = append(row, values[t-i])
	}
	for j := 1; j <= s.SeasonalOrder; j++ {
		row = append(row, values[t-j*s.Period])
	}
	return row
}

// SeasonalFit is an estimated seasonal autoregression.
type SeasonalFit struct {
	Spec         SeasonalSpec `json:"spec"`
	Coefficients []float64    `json:"coefficients"`
	SSE          float64      `json:"sse"`
	Rows         int          `json:"rows"`
}

// FitSeasonal estimates spec over values. Errors wrap core.ErrModelFit.
func FitSeasonal(values []float64, spec SeasonalSpec) (*SeasonalFit, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if !spec.Feasible(len(values)) {
		return nil, fmt.Errorf("%w: %d observations too few for %+v", core.ErrModelFit, len(values), spec)
	}
	var x [][]float64
	var y []float64
	for t := spec.maxLag(); t < len(values); t++ {
		x = append(x, spec.regressors(values, t))
		y = append(y, values[t])
	}
	coef, sse, err := leastSquares(x, y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrModelFit, err)
	}
	if !finite(coef...) {
		return nil, fmt.Errorf("%w: non-finite coefficients", core.ErrModelFit)
	}
	return &SeasonalFit{Spec: spec, Coefficients: coef, SSE: sse, Rows: len(y)}, nil
}

// PredictNext returns the one-step-ahead prediction following values.
func (f *SeasonalFit) PredictNext(values []float64) (float64, error) {
	n := len(values)
	if n < f.Spec.maxLag() {
		return 0, fmt.Errorf("%w: need %d observations to predict", core.ErrModelFit, f.Spec.maxLag())
	}
	next := make([]float64, n+1)
	copy(next, values)
	v := dot(f.Spec.regressors(next, n), f.Coefficients)
	if !finite(v) {
		return 0, fmt.Errorf("%w: non-finite prediction", core.ErrModelFit)
	}
	return v, nil
}

// AIC is the Gaussian Akaike criterion of the fit.
func (f *SeasonalFit) AIC() float64 {
	n := float64(f.Rows)
	sigma := f.SSE/n + 1e-12
	return n*math.Log(sigma) + 2*float64(f.Spec.params())
}

// SelectSeasonal fits every feasible (order, seasonal order) candidate up
// to the given maxima and returns the one with the lowest AIC. Candidates
// with seasonal terms are tried first so they win ties.
func SelectSeasonal(values []float64, period, maxOrder, maxSeasonal int) (*SeasonalFit, error) {
	var best *SeasonalFit
	var lastErr error
	for sp := maxSeasonal; sp >= 0; sp-- {
		for p := 0; p <= maxOrder; p++ {
			spec := SeasonalSpec{Order: p, SeasonalOrder: sp, Period: period}
			if !spec.Feasible(len(values)) {
				continue
			}
			fit, err := FitSeasonal(values, spec)
			if err != nil {
				lastErr = err
				continue
			}
			if best == nil || fit.AIC() < best.AIC() {
				best = fit
			}
		}
	}
	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: no feasible seasonal candidate for %d observations", core.ErrModelFit, len(values))
	}
	return best, nil
}

// SeasonalArtifact is the persisted state of the seasonal model. Only the
// selected lag structure is stored; coefficients are re-estimated on the
// full series at forecast time.
type SeasonalArtifact struct {
	Spec         SeasonalSpec `json:"spec"`
	AIC          float64      `json:"aic"`
	Observations int          `json:"observations"`
	TrainedAt    time.Time    `json:"trained_at"`
}

func (a *SeasonalArtifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil seasonal artifact", core.ErrCorruptArtifact)
	}
	return a.Spec.Validate()
}

// Forecast refits the stored spec on values and predicts one step ahead.
func (a *SeasonalArtifact) Forecast(values []float64) (float64, error) {
	fit, err := FitSeasonal(values, a.Spec)
	if err != nil {
		return 0, err
	}
	return fit.PredictNext(values)
}

// TrainSeasonal selects the best seasonal spec for values and wraps it in
// an artifact.
func TrainSeasonal(values []float64, period, maxOrder, maxSeasonal int, now time.Time) (*SeasonalArtifact, error) {
	fit, err := SelectSeasonal(values, period, maxOrder, maxSeasonal)
	if err != nil {
		return nil, err
	}
	return &SeasonalArtifact{
		Spec:         fit.Spec,
		AIC:          fit.AIC(),
		Observations: len(values),
		TrainedAt:    now,
	}, nil
}
