// Package forecast produces next-month spending forecasts per category.
package forecast

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/records"
)

// Fetcher reads category histories from the record store.
type Fetcher struct {
	records    records.RecordReader
	categories map[string]bool
	now        func() time.Time
}

// NewFetcher restricts fetches to categories. An empty set accepts any
// category.
func NewFetcher(r records.RecordReader, categories []string) *Fetcher {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return &Fetcher{records: r, categories: set, now: time.Now}
}

// CheckCategory returns core.ErrUnknownCategory for categories outside the
// configured set.
func (f *Fetcher) CheckCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return core.ErrEmptyCategory
	}
	if len(f.categories) > 0 && !f.categories[category] {
		return fmt.Errorf("%w: %s", core.ErrUnknownCategory, category)
	}
	return nil
}

// Fetch returns the category's history in chronological order. With
// monthsBack > 0 only the most recent monthsBack calendar months,
// counting the current one, are kept. No data yields an empty series.
func (f *Fetcher) Fetch(ctx context.Context, userID, category string, monthsBack int) (core.CategorySeries, error) {
	if err := f.CheckCategory(category); err != nil {
		return nil, err
	}
	var from core.MonthKey
	if monthsBack > 0 {
		from = core.MonthOf(f.now()).AddMonths(1 - monthsBack)
	}
	recs, err := f.records.ListRecords(ctx, userID, from, "")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return BuildSeries(recs, category), nil
}

// BuildSeries extracts one category from a record snapshot. Months where
// the category is absent are skipped; recorded zeros are kept.
func BuildSeries(recs []core.MonthlyRecord, category string) core.CategorySeries {
	sorted := make([]core.MonthlyRecord, len(recs))
	copy(sorted, recs)
	core.SortRecords(sorted)

	series := core.CategorySeries{}
	for _, r := range sorted {
		amt, ok := r.CategoryExpenses[category]
		if !ok {
			continue
		}
		series = append(series, core.SeriesPoint{Month: r.Month, Amount: amt})
	}
	return series
}

// HistoryCategories returns every category appearing in recs, sorted.
func HistoryCategories(recs []core.MonthlyRecord) []string {
	seen := map[string]bool{}
	for _, r := range recs {
		for c := range r.CategoryExpenses {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
