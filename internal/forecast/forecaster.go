package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/log"
	"spendplan/internal/models"
)

// Forecaster picks a strategy from the length of a category's history.
//
//	n < MinHistory            insufficient-data, amount 0
//	MinHistory <= n < Rich    mean of the last NaiveWindow points
//	n >= RichHistory          seasonal and sequence models, averaged
type Forecaster struct {
	models models.Reader
	policy config.ForecastPolicy
	logger *log.Logger
}

func NewForecaster(m models.Reader, policy config.ForecastPolicy, logger *log.Logger) *Forecaster {
	if logger == nil {
		logger = log.Discard()
	}
	return &Forecaster{
		models: m,
		policy: policy,
		logger: logger.WithComponent(log.ComponentForecast),
	}
}

// Forecast predicts next month's amount for one category. It returns
// core.ErrModelPending when a rich series has no trained sequence model.
// Corrupt artifacts and store failures are returned as errors; seasonal
// model problems only degrade the strategy.
func (f *Forecaster) Forecast(ctx context.Context, userID, category string, series core.CategorySeries) (core.ForecastResult, error) {
	res := core.ForecastResult{Category: category, HistoryLength: len(series)}
	values := series.Values()

	switch {
	case len(values) < f.policy.MinHistory:
		res.Strategy = core.StrategyInsufficientData
		return res, nil
	case len(values) < f.policy.RichHistory:
		res.Strategy = core.StrategyNaiveAverage
		res.PredictedAmount = core.NonNegative(naiveAverage(values, f.policy.NaiveWindow))
		return res, nil
	}

	seqPred, err := f.predictSequence(ctx, userID, category, values)
	if err != nil {
		return res, err
	}

	seasonalPred, ok, err := f.predictSeasonal(ctx, userID, category, values)
	if err != nil {
		return res, err
	}
	if ok {
		res.Strategy = core.StrategyDualModel
		res.PredictedAmount = core.NonNegative((seqPred + seasonalPred) / 2)
	} else {
		res.Strategy = core.StrategySingleModelFallback
		res.PredictedAmount = core.NonNegative(seqPred)
	}
	return res, nil
}

func naiveAverage(values []float64, window int) float64 {
	if window < 1 {
		window = 1
	}
	tail := values[max(len(values)-window, 0):]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	return sum / float64(len(tail))
}

func (f *Forecaster) predictSequence(ctx context.Context, userID, category string, values []float64) (float64, error) {
	art, err := f.models.LoadSequence(ctx, userID, category)
	if errors.Is(err, core.ErrModelNotFound) {
		return 0, fmt.Errorf("%w: %s", core.ErrModelPending, category)
	}
	if err != nil {
		return 0, fmt.Errorf("load sequence model for %s: %w", category, err)
	}
	v, err := art.Forecast(values)
	if err != nil {
		return 0, fmt.Errorf("sequence forecast for %s: %w", category, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: sequence forecast for %s is not finite", core.ErrCorruptArtifact, category)
	}
	return v, nil
}

// predictSeasonal reports ok=false when the seasonal model is unavailable
// or cannot be fitted; only store and corruption errors are returned.
func (f *Forecaster) predictSeasonal(ctx context.Context, userID, category string, values []float64) (float64, bool, error) {
	art, err := f.models.LoadSeasonal(ctx, userID, category)
	if errors.Is(err, core.ErrModelNotFound) {
		f.logger.WarnContext(ctx, "Seasonal model missing, using sequence model only",
			log.FieldUserID, userID, log.FieldCategory, category)
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load seasonal model for %s: %w", category, err)
	}

	v, err := art.Forecast(values)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("%w: non-finite prediction", core.ErrModelFit)
	}
	if err != nil {
		f.logger.WarnContext(ctx, "Seasonal model failed, using sequence model only",
			log.FieldUserID, userID, log.FieldCategory, category, "error", err)
		return 0, false, nil
	}
	return v, true, nil
}
