package tsmodel

import (
	"fmt"

	"spendplan/internal/core"
)

// MinMaxScaler maps [Min, Max] onto [0, 1]. A constant series has a zero
// range and is only shifted.
type MinMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func FitMinMax(values []float64) MinMaxScaler {
	if len(values) == 0 {
		return MinMaxScaler{}
	}
	s := MinMaxScaler{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	return s
}

func (s MinMaxScaler) scale() float64 {
	if r := s.Max - s.Min; r > 0 {
		return r
	}
	return 1
}

func (s MinMaxScaler) Transform(v float64) float64 {
	return (v - s.Min) / s.scale()
}

func (s MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

func (s MinMaxScaler) Inverse(v float64) float64 {
	return v*s.scale() + s.Min
}

func (s MinMaxScaler) Validate() error {
	if !finite(s.Min, s.Max) || s.Max < s.Min {
		return fmt.Errorf("%w: scaler %+v", core.ErrCorruptArtifact, s)
	}
	return nil
}
