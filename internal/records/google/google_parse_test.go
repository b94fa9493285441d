package google

import (
	"errors"
	"testing"

	"spendplan/internal/core"
)

func recordsMatrix() [][]interface{} {
	return [][]interface{}{
		{"User", "Month", "Income", "Spent", "Food", "Travel", "Health"},
		{"alice", "2024-01", 50000.0, 30000.0, 8000.0, "", 1200.0},
		{"alice", "2024-02-01", "50.000,00", "31000", "8.200,50", 4000.0},
		{"bob", "2024-01", 20000.0, 21000.0, 5000.0},
		{"", "2024-01", 1.0, 1.0},
		{"carol", "someday", 1.0, 1.0},
	}
}

func TestParseRecords(t *testing.T) {
	table, err := parseRecords(recordsMatrix())
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(table.rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.rows))
	}
	first := table.rows[0].record
	if first.Month != "2024-01" || first.TotalIncome != 50000 {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if _, ok := first.CategoryExpenses["Travel"]; ok {
		t.Fatalf("blank cell must be absent, got %+v", first.CategoryExpenses)
	}
	second := table.rows[1].record
	if second.Month != "2024-02" || second.TotalIncome != 50000 || second.CategoryExpenses["Food"] != 8200.5 {
		t.Fatalf("unexpected second record: %+v", second)
	}
	if got := table.users(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("users = %v", got)
	}
}

func TestParseRecordsMissingHeader(t *testing.T) {
	_, err := parseRecords([][]interface{}{{"User", "Month", "Food"}})
	if err == nil {
		t.Fatalf("expected header error")
	}
}

func TestRecordTableRowForAndEncode(t *testing.T) {
	values := recordsMatrix()
	table, err := parseRecords(values)
	if err != nil {
		t.Fatal(err)
	}
	if got := table.rowFor("alice", "2024-02", len(values)); got != 3 {
		t.Fatalf("existing row = %d, want 3", got)
	}
	if got := table.rowFor("alice", "2024-03", len(values)); got != len(values)+1 {
		t.Fatalf("new row = %d", got)
	}

	row, err := table.encode("dave", core.MonthlyRecord{
		Month:            "2024-05",
		TotalIncome:      100,
		CategoryExpenses: map[string]float64{"Health": 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != 7 || row[0] != "dave" || row[1] != "2024-05" || row[6] != 7.0 || row[4] != "" {
		t.Fatalf("unexpected row: %v", row)
	}

	_, err = table.encode("dave", core.MonthlyRecord{Month: "2024-05", CategoryExpenses: map[string]float64{"Pets": 1}})
	if !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestParseGoals(t *testing.T) {
	values := [][]interface{}{
		{"User", "ID", "Name", "Target", "Saved", "EndDate"},
		{"alice", "car", "Car", 12000.0, 500.0, "2025-01-31"},
		{"alice", "", "Nameless", 1.0, 0.0},
		{"bob", "trip", "Trip", "3.000", "0"},
	}
	rows, err := parseGoals(values)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(rows))
	}
	if rows[0].goal.TargetAmount != 12000 || rows[0].goal.EndDate != "2025-01-31" || rows[0].sheetRow != 2 {
		t.Fatalf("unexpected first goal: %+v", rows[0])
	}
	if rows[1].goal.TargetAmount != 3 || rows[1].goal.EndDate != "" {
		t.Fatalf("unexpected second goal: %+v", rows[1])
	}
}

func TestParseGoalsMissingHeader(t *testing.T) {
	if _, err := parseGoals([][]interface{}{{"User", "Name"}}); err == nil {
		t.Fatalf("expected header error")
	}
	rows, err := parseGoals(nil)
	if err != nil || rows != nil {
		t.Fatalf("empty sheet: %v %v", rows, err)
	}
}
