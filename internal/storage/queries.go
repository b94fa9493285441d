package storage

import "context"

const upsertMonthlyRecord = `
INSERT INTO monthly_records (user_id, month, total_income_cents, spent_cents, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, month) DO UPDATE SET
    total_income_cents = excluded.total_income_cents,
    spent_cents = excluded.spent_cents,
    updated_at = excluded.updated_at
`

type UpsertMonthlyRecordParams struct {
	UserID           string
	Month            string
	TotalIncomeCents int64
	SpentCents       int64
	UpdatedAt        string
}

func (q *Queries) UpsertMonthlyRecord(ctx context.Context, arg UpsertMonthlyRecordParams) error {
	_, err := q.db.ExecContext(ctx, upsertMonthlyRecord,
		arg.UserID, arg.Month, arg.TotalIncomeCents, arg.SpentCents, arg.UpdatedAt)
	return err
}

const deleteCategoryExpenses = `DELETE FROM category_expenses WHERE user_id = ? AND month = ?`

func (q *Queries) DeleteCategoryExpenses(ctx context.Context, userID, month string) error {
	_, err := q.db.ExecContext(ctx, deleteCategoryExpenses, userID, month)
	return err
}

const insertCategoryExpense = `
INSERT INTO category_expenses (user_id, month, category, amount_cents) VALUES (?, ?, ?, ?)
`

func (q *Queries) InsertCategoryExpense(ctx context.Context, arg CategoryExpense) error {
	_, err := q.db.ExecContext(ctx, insertCategoryExpense, arg.UserID, arg.Month, arg.Category, arg.AmountCents)
	return err
}

// Empty bounds are open; '' sorts before every month and '9999-12' after.
const listMonthlyRecords = `
SELECT user_id, month, total_income_cents, spent_cents, updated_at
FROM monthly_records
WHERE user_id = ? AND month >= ? AND month <= ?
ORDER BY month
`

type MonthRangeParams struct {
	UserID string
	From   string
	To     string
}

func (q *Queries) ListMonthlyRecords(ctx context.Context, arg MonthRangeParams) ([]MonthlyRecord, error) {
	rows, err := q.db.QueryContext(ctx, listMonthlyRecords, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthlyRecord
	for rows.Next() {
		var i MonthlyRecord
		if err := rows.Scan(&i.UserID, &i.Month, &i.TotalIncomeCents, &i.SpentCents, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listCategoryExpenses = `
SELECT user_id, month, category, amount_cents
FROM category_expenses
WHERE user_id = ? AND month >= ? AND month <= ?
ORDER BY month, category
`

func (q *Queries) ListCategoryExpenses(ctx context.Context, arg MonthRangeParams) ([]CategoryExpense, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryExpenses, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryExpense
	for rows.Next() {
		var i CategoryExpense
		if err := rows.Scan(&i.UserID, &i.Month, &i.Category, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertSavingsGoal = `
INSERT INTO savings_goals (user_id, id, name, target_cents, saved_cents, end_date, position)
VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM savings_goals WHERE user_id = ?))
ON CONFLICT (user_id, id) DO UPDATE SET
    name = excluded.name,
    target_cents = excluded.target_cents,
    saved_cents = excluded.saved_cents,
    end_date = excluded.end_date
`

type UpsertSavingsGoalParams struct {
	UserID      string
	ID          string
	Name        string
	TargetCents int64
	SavedCents  int64
	EndDate     string
}

func (q *Queries) UpsertSavingsGoal(ctx context.Context, arg UpsertSavingsGoalParams) error {
	_, err := q.db.ExecContext(ctx, upsertSavingsGoal,
		arg.UserID, arg.ID, arg.Name, arg.TargetCents, arg.SavedCents, arg.EndDate, arg.UserID)
	return err
}

const listSavingsGoals = `
SELECT user_id, id, name, target_cents, saved_cents, end_date, position
FROM savings_goals
WHERE user_id = ?
ORDER BY position
`

func (q *Queries) ListSavingsGoals(ctx context.Context, userID string) ([]SavingsGoal, error) {
	rows, err := q.db.QueryContext(ctx, listSavingsGoals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SavingsGoal
	for rows.Next() {
		var i SavingsGoal
		if err := rows.Scan(&i.UserID, &i.ID, &i.Name, &i.TargetCents, &i.SavedCents, &i.EndDate, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getSavingsGoal = `
SELECT user_id, id, name, target_cents, saved_cents, end_date, position
FROM savings_goals
WHERE user_id = ? AND id = ?
`

func (q *Queries) GetSavingsGoal(ctx context.Context, userID, id string) (SavingsGoal, error) {
	var i SavingsGoal
	err := q.db.QueryRowContext(ctx, getSavingsGoal, userID, id).Scan(
		&i.UserID, &i.ID, &i.Name, &i.TargetCents, &i.SavedCents, &i.EndDate, &i.Position)
	return i, err
}

const listUsers = `
SELECT user_id FROM monthly_records
UNION
SELECT user_id FROM savings_goals
ORDER BY 1
`

func (q *Queries) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const upsertModelArtifact = `
INSERT INTO model_artifacts (user_id, category, kind, payload, trained_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, category, kind) DO UPDATE SET
    payload = excluded.payload,
    trained_at = excluded.trained_at
`

func (q *Queries) UpsertModelArtifact(ctx context.Context, arg ModelArtifact) error {
	_, err := q.db.ExecContext(ctx, upsertModelArtifact, arg.UserID, arg.Category, arg.Kind, arg.Payload, arg.TrainedAt)
	return err
}

const getModelArtifact = `
SELECT user_id, category, kind, payload, trained_at
FROM model_artifacts
WHERE user_id = ? AND category = ? AND kind = ?
`

func (q *Queries) GetModelArtifact(ctx context.Context, userID, category, kind string) (ModelArtifact, error) {
	var i ModelArtifact
	err := q.db.QueryRowContext(ctx, getModelArtifact, userID, category, kind).Scan(
		&i.UserID, &i.Category, &i.Kind, &i.Payload, &i.TrainedAt)
	return i, err
}

const listModelArtifactsByUser = `
SELECT user_id, category, kind, '' AS payload, trained_at
FROM model_artifacts
WHERE user_id = ?
ORDER BY category, kind
`

// ListModelArtifactsByUser omits payloads.
func (q *Queries) ListModelArtifactsByUser(ctx context.Context, userID string) ([]ModelArtifact, error) {
	rows, err := q.db.QueryContext(ctx, listModelArtifactsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ModelArtifact
	for rows.Next() {
		var i ModelArtifact
		if err := rows.Scan(&i.UserID, &i.Category, &i.Kind, &i.Payload, &i.TrainedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertUserTraining = `
INSERT INTO user_training (user_id, last_trained) VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET last_trained = excluded.last_trained
`

func (q *Queries) UpsertUserTraining(ctx context.Context, arg UserTraining) error {
	_, err := q.db.ExecContext(ctx, upsertUserTraining, arg.UserID, arg.LastTrained)
	return err
}

const getUserTraining = `SELECT user_id, last_trained FROM user_training WHERE user_id = ?`

func (q *Queries) GetUserTraining(ctx context.Context, userID string) (UserTraining, error) {
	var i UserTraining
	err := q.db.QueryRowContext(ctx, getUserTraining, userID).Scan(&i.UserID, &i.LastTrained)
	return i, err
}

const listUserTraining = `SELECT user_id, last_trained FROM user_training ORDER BY user_id`

func (q *Queries) ListUserTraining(ctx context.Context) ([]UserTraining, error) {
	rows, err := q.db.QueryContext(ctx, listUserTraining)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserTraining
	for rows.Next() {
		var i UserTraining
		if err := rows.Scan(&i.UserID, &i.LastTrained); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertRunLog = `
INSERT INTO run_logs (run_id, user_id, job_id, status, started_at, finished_at, trained, skipped, error, transcript)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET
    status = excluded.status,
    finished_at = excluded.finished_at,
    trained = excluded.trained,
    skipped = excluded.skipped,
    error = excluded.error,
    transcript = excluded.transcript
`

func (q *Queries) InsertRunLog(ctx context.Context, arg RunLog) error {
	_, err := q.db.ExecContext(ctx, insertRunLog,
		arg.RunID, arg.UserID, arg.JobID, arg.Status, arg.StartedAt, arg.FinishedAt,
		arg.Trained, arg.Skipped, arg.Error, arg.Transcript)
	return err
}

const listRunLogs = `
SELECT run_id, user_id, job_id, status, started_at, finished_at, trained, skipped, error, transcript
FROM run_logs
WHERE user_id = ?
ORDER BY started_at DESC
LIMIT ?
`

// ListRunLogs treats a negative limit as unlimited.
func (q *Queries) ListRunLogs(ctx context.Context, userID string, limit int64) ([]RunLog, error) {
	rows, err := q.db.QueryContext(ctx, listRunLogs, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunLog
	for rows.Next() {
		var i RunLog
		if err := rows.Scan(&i.RunID, &i.UserID, &i.JobID, &i.Status, &i.StartedAt, &i.FinishedAt,
			&i.Trained, &i.Skipped, &i.Error, &i.Transcript); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertTrainingJob = `
INSERT INTO training_jobs (job_id, user_id, run_id, status, created_at, started_at, completed_at, error, retry_count, max_retries)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
    run_id = excluded.run_id,
    status = excluded.status,
    started_at = excluded.started_at,
    completed_at = excluded.completed_at,
    error = excluded.error,
    retry_count = excluded.retry_count,
    max_retries = excluded.max_retries
`

func (q *Queries) UpsertTrainingJob(ctx context.Context, arg TrainingJob) error {
	_, err := q.db.ExecContext(ctx, upsertTrainingJob,
		arg.JobID, arg.UserID, arg.RunID, arg.Status, arg.CreatedAt, arg.StartedAt, arg.CompletedAt,
		arg.Error, arg.RetryCount, arg.MaxRetries)
	return err
}

const getTrainingJob = `
SELECT job_id, user_id, run_id, status, created_at, started_at, completed_at, error, retry_count, max_retries
FROM training_jobs
WHERE job_id = ?
`

func (q *Queries) GetTrainingJob(ctx context.Context, jobID string) (TrainingJob, error) {
	var i TrainingJob
	err := q.db.QueryRowContext(ctx, getTrainingJob, jobID).Scan(
		&i.JobID, &i.UserID, &i.RunID, &i.Status, &i.CreatedAt, &i.StartedAt, &i.CompletedAt,
		&i.Error, &i.RetryCount, &i.MaxRetries)
	return i, err
}

const listTrainingJobs = `
SELECT job_id, user_id, run_id, status, created_at, started_at, completed_at, error, retry_count, max_retries
FROM training_jobs
WHERE (?1 = '' OR user_id = ?1) AND (?2 = '' OR status = ?2)
ORDER BY created_at DESC, job_id
LIMIT ?3 OFFSET ?4
`

type ListTrainingJobsParams struct {
	UserID string
	Status string
	Limit  int64
	Offset int64
}

func (q *Queries) ListTrainingJobs(ctx context.Context, arg ListTrainingJobsParams) ([]TrainingJob, error) {
	rows, err := q.db.QueryContext(ctx, listTrainingJobs, arg.UserID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrainingJob
	for rows.Next() {
		var i TrainingJob
		if err := rows.Scan(&i.JobID, &i.UserID, &i.RunID, &i.Status, &i.CreatedAt, &i.StartedAt, &i.CompletedAt,
			&i.Error, &i.RetryCount, &i.MaxRetries); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateTrainingJobStatus = `
UPDATE training_jobs
SET status = ?, error = CASE WHEN ? = '' THEN error ELSE ? END
WHERE job_id = ?
`

func (q *Queries) UpdateTrainingJobStatus(ctx context.Context, jobID, status, errorMsg string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTrainingJobStatus, status, errorMsg, errorMsg, jobID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
