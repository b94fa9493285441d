package tsmodel

import (
	"fmt"
	"time"

	"spendplan/internal/core"
)

// WindowRegressor predicts the next scaled value from the previous
// len(Weights) scaled values, oldest first.
type WindowRegressor struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (r WindowRegressor) Predict(window []float64) (float64, error) {
	if len(window) != len(r.Weights) {
		return 0, fmt.Errorf("%w: window of %d for %d weights", core.ErrCorruptArtifact, len(window), len(r.Weights))
	}
	return dot(window, r.Weights) + r.Bias, nil
}

// Window returns the last size values, left-padded with zeros when fewer
// are available.
func Window(values []float64, size int) []float64 {
	w := make([]float64, size)
	if len(values) >= size {
		copy(w, values[len(values)-size:])
		return w
	}
	copy(w[size-len(values):], values)
	return w
}

// TrainingConfig controls gradient descent for the window regressor.
type TrainingConfig struct {
	Window       int
	Epochs       int
	LearningRate float64
}

// TrainWindowRegressor fits weights on every complete sliding window of the
// scaled series by full-batch gradient descent on mean squared error. It
// returns the final loss. At least one complete window plus target is
// required.
func TrainWindowRegressor(scaled []float64, cfg TrainingConfig) (WindowRegressor, float64, error) {
	samples := len(scaled) - cfg.Window
	if cfg.Window < 1 || samples < 1 {
		return WindowRegressor{}, 0, fmt.Errorf("%w: %d observations for window %d", core.ErrModelFit, len(scaled), cfg.Window)
	}

	reg := WindowRegressor{Weights: make([]float64, cfg.Window)}
	grad := make([]float64, cfg.Window)
	n := float64(samples)
	var loss float64

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		clear(grad)
		var gradBias float64
		loss = 0
		for t := cfg.Window; t < len(scaled); t++ {
			x := scaled[t-cfg.Window : t]
			err := dot(x, reg.Weights) + reg.Bias - scaled[t]
			loss += err * err
			for i := range grad {
				grad[i] += 2 * err * x[i]
			}
			gradBias += 2 * err
		}
		loss /= n
		for i := range reg.Weights {
			reg.Weights[i] -= cfg.LearningRate * grad[i] / n
		}
		reg.Bias -= cfg.LearningRate * gradBias / n
	}

	if !finite(append([]float64{reg.Bias, loss}, reg.Weights...)...) {
		return WindowRegressor{}, 0, fmt.Errorf("%w: training diverged", core.ErrModelFit)
	}
	return reg, loss, nil
}

// SequenceArtifact is the persisted sequence model: scaler, window size
// and regressor weights.
type SequenceArtifact struct {
	Scaler       MinMaxScaler    `json:"scaler"`
	Window       int             `json:"window"`
	Regressor    WindowRegressor `json:"regressor"`
	Loss         float64         `json:"loss"`
	Observations int             `json:"observations"`
	TrainedAt    time.Time       `json:"trained_at"`
}

func (a *SequenceArtifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil sequence artifact", core.ErrCorruptArtifact)
	}
	if a.Window < 1 || len(a.Regressor.Weights) != a.Window {
		return fmt.Errorf("%w: window %d with %d weights", core.ErrCorruptArtifact, a.Window, len(a.Regressor.Weights))
	}
	if !finite(append([]float64{a.Regressor.Bias}, a.Regressor.Weights...)...) {
		return fmt.Errorf("%w: non-finite weights", core.ErrCorruptArtifact)
	}
	return a.Scaler.Validate()
}

// Forecast scales values, predicts the next scaled value from the most
// recent window and maps it back to original units.
func (a *SequenceArtifact) Forecast(values []float64) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	w := Window(a.Scaler.TransformAll(values), a.Window)
	v, err := a.Regressor.Predict(w)
	if err != nil {
		return 0, err
	}
	return a.Scaler.Inverse(v), nil
}

// TrainSequence fits a scaler and regressor on values.
func TrainSequence(values []float64, cfg TrainingConfig, now time.Time) (*SequenceArtifact, error) {
	scaler := FitMinMax(values)
	reg, loss, err := TrainWindowRegressor(scaler.TransformAll(values), cfg)
	if err != nil {
		return nil, err
	}
	return &SequenceArtifact{
		Scaler:       scaler,
		Window:       cfg.Window,
		Regressor:    reg,
		Loss:         loss,
		Observations: len(values),
		TrainedAt:    now,
	}, nil
}
