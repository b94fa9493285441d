package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/jobs"
	"spendplan/internal/models"
	"spendplan/internal/records"
	"spendplan/internal/tsmodel"

	_ "modernc.org/sqlite"
)

var (
	_ records.Store = (*SQLiteRepository)(nil)
	_ models.Store  = (*SQLiteRepository)(nil)
	_ jobs.JobStore = (*SQLiteRepository)(nil)
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// maxMonth is the open upper bound for month range queries.
const maxMonth = "9999-12"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer; serialising here avoids SQLITE_BUSY
	// between the API and the training workers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func monthRange(userID string, from, to core.MonthKey) MonthRangeParams {
	p := MonthRangeParams{UserID: userID, From: string(from), To: string(to)}
	if p.To == "" {
		p.To = maxMonth
	}
	return p
}

// ListRecords returns the user's records in chronological order.
func (r *SQLiteRepository) ListRecords(ctx context.Context, userID string, from, to core.MonthKey) ([]core.MonthlyRecord, error) {
	arg := monthRange(userID, from, to)
	rows, err := r.queries.ListMonthlyRecords(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list monthly records: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	expenses, err := r.queries.ListCategoryExpenses(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list category expenses: %w", err)
	}

	byMonth := make(map[string]map[string]float64, len(rows))
	for _, e := range expenses {
		m, ok := byMonth[e.Month]
		if !ok {
			m = make(map[string]float64)
			byMonth[e.Month] = m
		}
		m[e.Category] = core.FromCents(e.AmountCents)
	}

	out := make([]core.MonthlyRecord, len(rows))
	for i, row := range rows {
		cats := byMonth[row.Month]
		if cats == nil {
			cats = map[string]float64{}
		}
		out[i] = core.MonthlyRecord{
			Month:            core.MonthKey(row.Month),
			TotalIncome:      core.FromCents(row.TotalIncomeCents),
			SpentAmount:      core.FromCents(row.SpentCents),
			CategoryExpenses: cats,
		}
	}
	return out, nil
}

// PutRecord replaces the record for rec.Month, including its categories.
func (r *SQLiteRepository) PutRecord(ctx context.Context, userID string, rec core.MonthlyRecord) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.UpsertMonthlyRecord(ctx, UpsertMonthlyRecordParams{
			UserID:           userID,
			Month:            string(rec.Month),
			TotalIncomeCents: core.ToCents(rec.TotalIncome),
			SpentCents:       core.ToCents(rec.SpentAmount),
			UpdatedAt:        formatTime(r.now()),
		}); err != nil {
			return fmt.Errorf("upsert monthly record: %w", err)
		}
		if err := q.DeleteCategoryExpenses(ctx, userID, string(rec.Month)); err != nil {
			return fmt.Errorf("clear category expenses: %w", err)
		}
		for cat, amt := range rec.CategoryExpenses {
			if err := q.InsertCategoryExpense(ctx, CategoryExpense{
				UserID:      userID,
				Month:       string(rec.Month),
				Category:    cat,
				AmountCents: core.ToCents(amt),
			}); err != nil {
				return fmt.Errorf("insert category expense %s: %w", cat, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Monthly record saved to SQLite",
		"user_id", userID,
		"month", rec.Month,
		"categories", len(rec.CategoryExpenses))
	return nil
}

func goalFromRow(g SavingsGoal) core.SavingsGoal {
	return core.SavingsGoal{
		ID:           g.ID,
		Name:         g.Name,
		TargetAmount: core.FromCents(g.TargetCents),
		AmountSaved:  core.FromCents(g.SavedCents),
		EndDate:      g.EndDate,
	}
}

// ListGoals returns goals in the order they were first saved.
func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	rows, err := r.queries.ListSavingsGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list savings goals: %w", err)
	}
	out := make([]core.SavingsGoal, len(rows))
	for i, g := range rows {
		out[i] = goalFromRow(g)
	}
	return out, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, goalID string) (core.SavingsGoal, error) {
	g, err := r.queries.GetSavingsGoal(ctx, userID, goalID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsGoal{}, core.ErrGoalNotFound
	}
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get savings goal: %w", err)
	}
	return goalFromRow(g), nil
}

func (r *SQLiteRepository) SaveGoal(ctx context.Context, userID string, g core.SavingsGoal) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if err := r.queries.UpsertSavingsGoal(ctx, UpsertSavingsGoalParams{
		UserID:      userID,
		ID:          g.ID,
		Name:        g.Name,
		TargetCents: core.ToCents(g.TargetAmount),
		SavedCents:  core.ToCents(g.AmountSaved),
		EndDate:     g.EndDate,
	}); err != nil {
		return fmt.Errorf("upsert savings goal: %w", err)
	}

	slog.InfoContext(ctx, "Savings goal saved to SQLite", "user_id", userID, "goal_id", g.ID)
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	users, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) loadArtifact(ctx context.Context, userID, category, kind string) ([]byte, error) {
	a, err := r.queries.GetModelArtifact(ctx, userID, category, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s artifact: %w", kind, err)
	}
	return []byte(a.Payload), nil
}

func (r *SQLiteRepository) LoadSeasonal(ctx context.Context, userID, category string) (*tsmodel.SeasonalArtifact, error) {
	b, err := r.loadArtifact(ctx, userID, category, models.KindSeasonal)
	if err != nil {
		return nil, err
	}
	return models.DecodeSeasonal(b)
}

func (r *SQLiteRepository) LoadSequence(ctx context.Context, userID, category string) (*tsmodel.SequenceArtifact, error) {
	b, err := r.loadArtifact(ctx, userID, category, models.KindSequence)
	if err != nil {
		return nil, err
	}
	return models.DecodeSequence(b)
}

func (r *SQLiteRepository) saveArtifact(ctx context.Context, userID, category, kind string, payload []byte, trainedAt time.Time) error {
	if err := r.queries.UpsertModelArtifact(ctx, ModelArtifact{
		UserID:    userID,
		Category:  category,
		Kind:      kind,
		Payload:   string(payload),
		TrainedAt: formatTime(trainedAt),
	}); err != nil {
		return fmt.Errorf("save %s artifact: %w", kind, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveSeasonal(ctx context.Context, userID, category string, a *tsmodel.SeasonalArtifact) error {
	b, err := models.EncodeSeasonal(a)
	if err != nil {
		return err
	}
	return r.saveArtifact(ctx, userID, category, models.KindSeasonal, b, a.TrainedAt)
}

func (r *SQLiteRepository) SaveSequence(ctx context.Context, userID, category string, a *tsmodel.SequenceArtifact) error {
	b, err := models.EncodeSequence(a)
	if err != nil {
		return err
	}
	return r.saveArtifact(ctx, userID, category, models.KindSequence, b, a.TrainedAt)
}

// PutRawArtifact stores an unvalidated payload.
func (r *SQLiteRepository) PutRawArtifact(ctx context.Context, userID, category, kind string, payload []byte) error {
	return r.saveArtifact(ctx, userID, category, kind, payload, r.now())
}

func (r *SQLiteRepository) MarkTrained(ctx context.Context, userID string, at time.Time) error {
	if err := r.queries.UpsertUserTraining(ctx, UserTraining{UserID: userID, LastTrained: formatTime(at)}); err != nil {
		return fmt.Errorf("mark user trained: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Status(ctx context.Context, userID string) (models.UserStatus, error) {
	st := models.UserStatus{UserID: userID}

	ut, err := r.queries.GetUserTraining(ctx, userID)
	switch {
	case err == nil:
		st.LastTrained = parseTime(ut.LastTrained)
	case !errors.Is(err, sql.ErrNoRows):
		return st, fmt.Errorf("get user training: %w", err)
	}

	artifacts, err := r.queries.ListModelArtifactsByUser(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("list model artifacts: %w", err)
	}
	for _, a := range artifacts {
		c := st.Category(a.Category)
		switch a.Kind {
		case models.KindSeasonal:
			c.HasSeasonal = true
			c.SeasonalTrainedAt = parseTime(a.TrainedAt)
		case models.KindSequence:
			c.HasSequence = true
			c.SequenceTrainedAt = parseTime(a.TrainedAt)
		}
	}

	logs, err := r.ListRunLogs(ctx, userID, 5)
	if err != nil {
		return st, err
	}
	st.RecentLogs = logs
	return st, nil
}

func (r *SQLiteRepository) ListTrained(ctx context.Context) ([]core.User, error) {
	rows, err := r.queries.ListUserTraining(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trained users: %w", err)
	}
	out := make([]core.User, len(rows))
	for i, row := range rows {
		out[i] = core.User{ID: row.UserID, LastTrained: parseTime(row.LastTrained)}
	}
	return out, nil
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) []string {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil || len(items) == 0 {
		return nil
	}
	return items
}

func (r *SQLiteRepository) SaveRunLog(ctx context.Context, l models.RunLog) error {
	if err := r.queries.InsertRunLog(ctx, RunLog{
		RunID:      l.RunID,
		UserID:     l.UserID,
		JobID:      l.JobID,
		Status:     l.Status,
		StartedAt:  formatTime(l.StartedAt),
		FinishedAt: formatTime(l.FinishedAt),
		Trained:    encodeList(l.Trained),
		Skipped:    encodeList(l.Skipped),
		Error:      l.Error,
		Transcript: l.Transcript,
	}); err != nil {
		return fmt.Errorf("save run log: %w", err)
	}
	return nil
}

// ListRunLogs returns up to limit logs, newest first. A non-positive limit
// returns all of them.
func (r *SQLiteRepository) ListRunLogs(ctx context.Context, userID string, limit int) ([]models.RunLog, error) {
	lim := int64(limit)
	if lim <= 0 {
		lim = -1
	}
	rows, err := r.queries.ListRunLogs(ctx, userID, lim)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	out := make([]models.RunLog, len(rows))
	for i, row := range rows {
		out[i] = models.RunLog{
			RunID:      row.RunID,
			UserID:     row.UserID,
			JobID:      row.JobID,
			Status:     row.Status,
			StartedAt:  parseTime(row.StartedAt),
			FinishedAt: parseTime(row.FinishedAt),
			Trained:    decodeList(row.Trained),
			Skipped:    decodeList(row.Skipped),
			Error:      row.Error,
			Transcript: row.Transcript,
		}
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func jobFromRow(row TrainingJob) *jobs.TrainingJob {
	return &jobs.TrainingJob{
		JobID:       row.JobID,
		UserID:      row.UserID,
		RunID:       row.RunID,
		Status:      jobs.JobStatus(row.Status),
		CreatedAt:   parseTime(row.CreatedAt),
		StartedAt:   timePtr(row.StartedAt),
		CompletedAt: timePtr(row.CompletedAt),
		Error:       row.Error,
		RetryCount:  int(row.RetryCount),
		MaxRetries:  int(row.MaxRetries),
	}
}

func (r *SQLiteRepository) SaveJob(ctx context.Context, job *jobs.TrainingJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := r.queries.UpsertTrainingJob(ctx, TrainingJob{
		JobID:       job.JobID,
		UserID:      job.UserID,
		RunID:       job.RunID,
		Status:      string(job.Status),
		CreatedAt:   formatTime(job.CreatedAt),
		StartedAt:   nullTime(job.StartedAt),
		CompletedAt: nullTime(job.CompletedAt),
		Error:       job.Error,
		RetryCount:  int64(job.RetryCount),
		MaxRetries:  int64(job.MaxRetries),
	}); err != nil {
		return fmt.Errorf("save training job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetJob(ctx context.Context, jobID string) (*jobs.TrainingJob, error) {
	row, err := r.queries.GetTrainingJob(ctx, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get training job: %w", err)
	}
	return jobFromRow(row), nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.TrainingJob, error) {
	limit := int64(filter.Limit)
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListTrainingJobs(ctx, ListTrainingJobsParams{
		UserID: filter.UserID,
		Status: string(filter.Status),
		Limit:  limit,
		Offset: int64(max(filter.Offset, 0)),
	})
	if err != nil {
		return nil, fmt.Errorf("list training jobs: %w", err)
	}
	out := make([]*jobs.TrainingJob, len(rows))
	for i, row := range rows {
		out[i] = jobFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	n, err := r.queries.UpdateTrainingJobStatus(ctx, jobID, string(status), errorMsg)
	if err != nil {
		return fmt.Errorf("update training job status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	return nil
}
