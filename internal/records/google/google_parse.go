package google

import (
	"fmt"
	"slices"
	"strings"

	"spendplan/internal/core"
)

var (
	recordHeaders = []string{"User", "Month", "Income", "Spent"}
	goalHeaders   = []string{"User", "ID", "Name", "Target", "Saved", "EndDate"}
)

type recordRow struct {
	user     string
	sheetRow int // 1-based row in the sheet
	record   core.MonthlyRecord
}

type recordTable struct {
	colUser, colMonth, colIncome, colSpent int
	// category name -> column index
	categories map[string]int
	width      int
	rows       []recordRow
}

// parseRecords converts the values matrix of the records sheet. Rows with a
// blank user or an unparseable month are skipped, blank amounts read as 0.
func parseRecords(values [][]interface{}) (*recordTable, error) {
	t := &recordTable{categories: map[string]int{}}
	if len(values) == 0 {
		return t, nil
	}
	headers := toStrings(values[0])
	t.colUser = indexOf(headers, "User")
	t.colMonth = indexOf(headers, "Month")
	t.colIncome = indexOf(headers, "Income")
	t.colSpent = indexOf(headers, "Spent")
	var missing []string
	for i, col := range []int{t.colUser, t.colMonth, t.colIncome, t.colSpent} {
		if col == -1 {
			missing = append(missing, recordHeaders[i])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected records header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	fixed := []int{t.colUser, t.colMonth, t.colIncome, t.colSpent}
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" || slices.Contains(fixed, i) {
			continue
		}
		t.categories[h] = i
	}
	t.width = len(headers)

	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		user := strings.TrimSpace(safeGet(row, t.colUser))
		if user == "" {
			continue
		}
		month, err := core.ParseMonthKey(safeGet(row, t.colMonth))
		if err != nil {
			continue
		}
		rec := core.MonthlyRecord{
			Month:            month,
			TotalIncome:      parseAmount(safeGet(row, t.colIncome)),
			SpentAmount:      parseAmount(safeGet(row, t.colSpent)),
			CategoryExpenses: map[string]float64{},
		}
		for cat, col := range t.categories {
			cell := strings.TrimSpace(safeGet(row, col))
			if cell == "" {
				continue
			}
			rec.CategoryExpenses[cat] = parseAmount(cell)
		}
		t.rows = append(t.rows, recordRow{user: user, sheetRow: i + 1, record: rec})
	}
	return t, nil
}

// rowFor returns the sheet row holding (user, month), or the first free
// row after n existing rows.
func (t *recordTable) rowFor(user string, month core.MonthKey, n int) int {
	for _, r := range t.rows {
		if r.user == user && r.record.Month == month {
			return r.sheetRow
		}
	}
	return n + 1
}

func (t *recordTable) encode(user string, r core.MonthlyRecord) ([]interface{}, error) {
	row := make([]interface{}, t.width)
	for i := range row {
		row[i] = ""
	}
	row[t.colUser] = user
	row[t.colMonth] = string(r.Month)
	row[t.colIncome] = r.TotalIncome
	row[t.colSpent] = r.SpentAmount
	for cat, amt := range r.CategoryExpenses {
		col, ok := t.categories[cat]
		if !ok {
			return nil, fmt.Errorf("%w: no column for %q", core.ErrUnknownCategory, cat)
		}
		row[col] = amt
	}
	return row, nil
}

func (t *recordTable) users() []string {
	var out []string
	for _, r := range t.rows {
		if !slices.Contains(out, r.user) {
			out = append(out, r.user)
		}
	}
	slices.Sort(out)
	return out
}

type goalRow struct {
	user     string
	sheetRow int
	goal     core.SavingsGoal
}

func parseGoals(values [][]interface{}) ([]goalRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := make([]int, len(goalHeaders))
	var missing []string
	for i, h := range goalHeaders {
		cols[i] = indexOf(headers, h)
		// EndDate is optional
		if cols[i] == -1 && h != "EndDate" {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected goals header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	var out []goalRow
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		user := strings.TrimSpace(safeGet(row, cols[0]))
		id := strings.TrimSpace(safeGet(row, cols[1]))
		if user == "" || id == "" {
			continue
		}
		out = append(out, goalRow{
			user:     user,
			sheetRow: i + 1,
			goal: core.SavingsGoal{
				ID:           id,
				Name:         strings.TrimSpace(safeGet(row, cols[2])),
				TargetAmount: parseAmount(safeGet(row, cols[3])),
				AmountSaved:  parseAmount(safeGet(row, cols[4])),
				EndDate:      strings.TrimSpace(safeGet(row, cols[5])),
			},
		})
	}
	return out, nil
}

func encodeGoal(user string, g core.SavingsGoal) []interface{} {
	return []interface{}{user, g.ID, g.Name, g.TargetAmount, g.AmountSaved, g.EndDate}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmount reads a cell as an amount; unreadable cells count as 0.
func parseAmount(s string) float64 {
	v, err := core.ParseAmount(s)
	if err != nil {
		return 0
	}
	return v
}
