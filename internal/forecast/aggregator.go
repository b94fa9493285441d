package forecast

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"spendplan/internal/core"
	"spendplan/internal/log"
	"spendplan/internal/records"
)

// CategoryForecaster is satisfied by *Forecaster.
type CategoryForecaster interface {
	Forecast(ctx context.Context, userID, category string, series core.CategorySeries) (core.ForecastResult, error)
}

// Aggregator runs the forecaster over a user's category set.
type Aggregator struct {
	records     records.RecordReader
	forecaster  CategoryForecaster
	categories  []string
	concurrency int
	logger      *log.Logger
}

// NewAggregator forecasts the given categories, or every category found in
// the history when the list is empty.
func NewAggregator(r records.RecordReader, f CategoryForecaster, categories []string, concurrency int, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Aggregator{
		records:     r,
		forecaster:  f,
		categories:  categories,
		concurrency: max(concurrency, 1),
		logger:      logger.WithComponent(log.ComponentForecast),
	}
}

// ForecastUser reads the user's records once and forecasts every category.
// It returns core.ErrNoData when the user has no records.
func (a *Aggregator) ForecastUser(ctx context.Context, userID string) (core.ForecastSummary, error) {
	recs, err := a.records.ListRecords(ctx, userID, "", "")
	if err != nil {
		return core.ForecastSummary{UserID: userID}, fmt.Errorf("list records: %w", err)
	}
	return a.ForecastRecords(ctx, userID, recs)
}

// ForecastRecords forecasts from an already loaded record snapshot.
func (a *Aggregator) ForecastRecords(ctx context.Context, userID string, recs []core.MonthlyRecord) (core.ForecastSummary, error) {
	summary := core.ForecastSummary{UserID: userID, Categories: map[string]core.ForecastResult{}}
	if len(recs) == 0 {
		return summary, core.ErrNoData
	}

	categories := a.categories
	if len(categories) == 0 {
		categories = HistoryCategories(recs)
	}

	type outcome struct {
		result  core.ForecastResult
		pending bool
		skip    bool
	}
	outcomes := make([]outcome, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, cat := range categories {
		series := BuildSeries(recs, cat)
		if len(series) == 0 {
			outcomes[i].skip = true
			continue
		}
		g.Go(func() error {
			res, err := a.forecaster.Forecast(gctx, userID, cat, series)
			switch {
			case errors.Is(err, core.ErrModelPending):
				outcomes[i] = outcome{pending: true, result: core.ForecastResult{Category: cat, HistoryLength: len(series)}}
				return nil
			case err != nil:
				return fmt.Errorf("forecast %s: %w", cat, err)
			}
			outcomes[i] = outcome{result: res}
			a.logger.DebugContext(gctx, "Category forecast",
				log.NewFields().WithUser(userID).
					WithForecast(cat, res.Strategy.String(), res.PredictedAmount, res.HistoryLength).ToSlice()...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	amounts := make([]float64, 0, len(categories))
	for _, o := range outcomes {
		if o.skip {
			continue
		}
		summary.MonthsOfHistory = max(summary.MonthsOfHistory, o.result.HistoryLength)
		if o.pending {
			summary.Pending = append(summary.Pending, o.result.Category)
			continue
		}
		summary.Strategy = core.WorseOf(summary.Strategy, o.result.Strategy)
		if o.result.Strategy == core.StrategyInsufficientData {
			summary.Insufficient = append(summary.Insufficient, o.result.Category)
			continue
		}
		summary.Categories[o.result.Category] = o.result
		amounts = append(amounts, o.result.PredictedAmount)
	}
	summary.Total = core.Sum(amounts...)

	a.logger.InfoContext(ctx, "Forecast complete",
		log.FieldUserID, userID,
		"categories", len(summary.Categories),
		"pending", len(summary.Pending),
		"insufficient", len(summary.Insufficient),
		log.FieldStrategy, summary.Strategy,
		log.FieldAmount, summary.Total)
	return summary, nil
}
