package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"spendplan/internal/core"
	"spendplan/internal/log"
	ports "spendplan/internal/records"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads and writes records and goals kept in a spreadsheet.
//
// The records sheet has a header row "User | Month | Income | Spent"
// followed by one column per category. The goals sheet has
// "User | ID | Name | Target | Saved | EndDate".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	recordsSheet  string
	goalsSheet    string
}

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// New creates a Sheets client using service account credentials from the
// environment.
func New(ctx context.Context, spreadsheetID, recordsSheet, goalsSheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if recordsSheet == "" {
		recordsSheet = "Records"
	}
	if goalsSheet == "" {
		goalsSheet = "Goals"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		recordsSheet:  recordsSheet,
		goalsSheet:    goalsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

func (c *Client) readSheet(ctx context.Context, sheet string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, sheet string, rowIndex int, row []interface{}) error {
	rng := fmt.Sprintf("%s!A%d", sheet, rowIndex)
	vr := &gsheet.ValueRange{Values: [][]interface{}{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) ListRecords(ctx context.Context, userID string, from, to core.MonthKey) ([]core.MonthlyRecord, error) {
	values, err := c.readSheet(ctx, c.recordsSheet)
	if err != nil {
		return nil, err
	}
	table, err := parseRecords(values)
	if err != nil {
		return nil, err
	}
	var out []core.MonthlyRecord
	for _, row := range table.rows {
		if row.user == userID && ports.InRange(row.record.Month, from, to) {
			out = append(out, row.record)
		}
	}
	core.SortRecords(out)
	return out, nil
}

// PutRecord overwrites the row for (user, month) or writes a new row after
// the last one. Categories must already have a header column.
func (c *Client) PutRecord(ctx context.Context, userID string, r core.MonthlyRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	values, err := c.readSheet(ctx, c.recordsSheet)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("records sheet %s has no header row", c.recordsSheet)
	}
	table, err := parseRecords(values)
	if err != nil {
		return err
	}
	row, err := table.encode(userID, r)
	if err != nil {
		return err
	}
	return c.writeRow(ctx, c.recordsSheet, table.rowFor(userID, r.Month, len(values)), row)
}

func (c *Client) ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	values, err := c.readSheet(ctx, c.goalsSheet)
	if err != nil {
		return nil, err
	}
	rows, err := parseGoals(values)
	if err != nil {
		return nil, err
	}
	var out []core.SavingsGoal
	for _, row := range rows {
		if row.user == userID {
			out = append(out, row.goal)
		}
	}
	return out, nil
}

func (c *Client) GetGoal(ctx context.Context, userID, goalID string) (core.SavingsGoal, error) {
	goals, err := c.ListGoals(ctx, userID)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	for _, g := range goals {
		if g.ID == goalID {
			return g, nil
		}
	}
	return core.SavingsGoal{}, core.ErrGoalNotFound
}

func (c *Client) SaveGoal(ctx context.Context, userID string, g core.SavingsGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	values, err := c.readSheet(ctx, c.goalsSheet)
	if err != nil {
		return err
	}
	rows, err := parseGoals(values)
	if err != nil {
		return err
	}
	rowIndex := len(values) + 1
	if len(values) == 0 {
		// empty sheet: write the header first
		if err := c.writeRow(ctx, c.goalsSheet, 1, toInterfaces(goalHeaders)); err != nil {
			return err
		}
		rowIndex = 2
	}
	for _, row := range rows {
		if row.user == userID && row.goal.ID == g.ID {
			rowIndex = row.sheetRow
			break
		}
	}
	return c.writeRow(ctx, c.goalsSheet, rowIndex, encodeGoal(userID, g))
}

func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	values, err := c.readSheet(ctx, c.recordsSheet)
	if err != nil {
		return nil, err
	}
	table, err := parseRecords(values)
	if err != nil {
		return nil, err
	}
	return table.users(), nil
}
