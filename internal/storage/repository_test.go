package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/jobs"
	"spendplan/internal/models"
	"spendplan/internal/tsmodel"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	recs := []core.MonthlyRecord{
		{Month: "2026-02", TotalIncome: 52000, SpentAmount: 31000.5, CategoryExpenses: map[string]float64{"Food": 1100.25, "Travel": 0}},
		{Month: "2026-01", TotalIncome: 50000, SpentAmount: 30000, CategoryExpenses: map[string]float64{"Food": 1000}},
		{Month: "2026-03", TotalIncome: 50000, SpentAmount: 29000},
	}
	for _, r := range recs {
		if err := repo.PutRecord(ctx, "u1", r); err != nil {
			t.Fatalf("PutRecord(%s): %v", r.Month, err)
		}
	}

	got, err := repo.ListRecords(ctx, "u1", "", "")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 3 || got[0].Month != "2026-01" || got[2].Month != "2026-03" {
		t.Fatalf("ListRecords = %+v", got)
	}
	if got[1].CategoryExpenses["Food"] != 1100.25 || got[1].SpentAmount != 31000.5 {
		t.Errorf("february = %+v", got[1])
	}
	if v, ok := got[1].CategoryExpenses["Travel"]; !ok || v != 0 {
		t.Errorf("zero category lost: %v", got[1].CategoryExpenses)
	}
	if got[2].CategoryExpenses == nil || len(got[2].CategoryExpenses) != 0 {
		t.Errorf("march categories = %v, want empty map", got[2].CategoryExpenses)
	}

	ranged, err := repo.ListRecords(ctx, "u1", "2026-02", "2026-02")
	if err != nil || len(ranged) != 1 {
		t.Fatalf("ranged ListRecords = %v, %v", ranged, err)
	}

	replaced := core.MonthlyRecord{Month: "2026-02", TotalIncome: 1, SpentAmount: 1, CategoryExpenses: map[string]float64{"Health": 5}}
	if err := repo.PutRecord(ctx, "u1", replaced); err != nil {
		t.Fatalf("PutRecord replace: %v", err)
	}
	ranged, _ = repo.ListRecords(ctx, "u1", "2026-02", "")
	if _, ok := ranged[0].CategoryExpenses["Food"]; ok {
		t.Errorf("old categories survived replace: %v", ranged[0].CategoryExpenses)
	}

	none, err := repo.ListRecords(ctx, "nobody", "", "")
	if err != nil || len(none) != 0 {
		t.Errorf("unknown user = %v, %v", none, err)
	}
}

func TestPutRecordValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.PutRecord(ctx, "", core.MonthlyRecord{Month: "2026-01"}); !errors.Is(err, core.ErrEmptyUser) {
		t.Errorf("empty user: %v", err)
	}
	if err := repo.PutRecord(ctx, "u1", core.MonthlyRecord{Month: "Jan"}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("bad month: %v", err)
	}
}

func TestGoalsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, g := range []core.SavingsGoal{
		{ID: "g2", Name: "Car", TargetAmount: 20000, EndDate: "2027-01-01"},
		{ID: "g1", Name: "Trip", TargetAmount: 3000, AmountSaved: 500},
		{ID: "g3", Name: "Phone", TargetAmount: 900},
	} {
		if err := repo.SaveGoal(ctx, "u1", g); err != nil {
			t.Fatalf("SaveGoal: %v", err)
		}
	}
	if err := repo.SaveGoal(ctx, "u1", core.SavingsGoal{ID: "g2", Name: "Car", TargetAmount: 18000, AmountSaved: 100}); err != nil {
		t.Fatalf("SaveGoal update: %v", err)
	}
	_ = repo.SaveGoal(ctx, "u2", core.SavingsGoal{ID: "g1", Name: "Other"})

	goals, err := repo.ListGoals(ctx, "u1")
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	var ids []string
	for _, g := range goals {
		ids = append(ids, g.ID)
	}
	if len(ids) != 3 || ids[0] != "g2" || ids[1] != "g1" || ids[2] != "g3" {
		t.Errorf("goal order = %v, want [g2 g1 g3]", ids)
	}
	if goals[0].TargetAmount != 18000 || goals[0].EndDate != "" {
		t.Errorf("updated goal = %+v", goals[0])
	}

	if _, err := repo.GetGoal(ctx, "u1", "missing"); !errors.Is(err, core.ErrGoalNotFound) {
		t.Errorf("GetGoal(missing) = %v", err)
	}
	if err := repo.SaveGoal(ctx, "u1", core.SavingsGoal{ID: "x"}); !errors.Is(err, core.ErrInvalidGoal) {
		t.Errorf("SaveGoal without name = %v", err)
	}

	_ = repo.PutRecord(ctx, "u3", core.MonthlyRecord{Month: "2026-01"})
	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 || users[0] != "u1" || users[2] != "u3" {
		t.Errorf("ListUsers = %v", users)
	}
}

func TestModelArtifacts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if _, err := repo.LoadSequence(ctx, "u1", "Food"); !errors.Is(err, core.ErrModelNotFound) {
		t.Fatalf("LoadSequence on empty db: %v", err)
	}

	seasonal := &tsmodel.SeasonalArtifact{Spec: tsmodel.SeasonalSpec{Order: 1, SeasonalOrder: 1, Period: 12}, TrainedAt: at}
	sequence := &tsmodel.SequenceArtifact{
		Scaler:    tsmodel.MinMaxScaler{Min: 0, Max: 10},
		Window:    1,
		Regressor: tsmodel.WindowRegressor{Weights: []float64{1}},
		TrainedAt: at,
	}
	if err := repo.SaveSeasonal(ctx, "u1", "Food", seasonal); err != nil {
		t.Fatalf("SaveSeasonal: %v", err)
	}
	if err := repo.SaveSequence(ctx, "u1", "Food", sequence); err != nil {
		t.Fatalf("SaveSequence: %v", err)
	}
	if err := repo.SaveSeasonal(ctx, "u1", "Rent", seasonal); err != nil {
		t.Fatalf("SaveSeasonal: %v", err)
	}

	got, err := repo.LoadSeasonal(ctx, "u1", "Food")
	if err != nil {
		t.Fatalf("LoadSeasonal: %v", err)
	}
	if got.Spec != seasonal.Spec || !got.TrainedAt.Equal(at) {
		t.Errorf("LoadSeasonal = %+v", got)
	}

	if err := repo.PutRawArtifact(ctx, "u1", "Health", models.KindSequence, []byte("garbage")); err != nil {
		t.Fatalf("PutRawArtifact: %v", err)
	}
	if _, err := repo.LoadSequence(ctx, "u1", "Health"); !errors.Is(err, core.ErrCorruptArtifact) {
		t.Errorf("corrupt artifact: %v", err)
	}

	if err := repo.MarkTrained(ctx, "u1", at); err != nil {
		t.Fatalf("MarkTrained: %v", err)
	}
	if err := repo.SaveRunLog(ctx, models.RunLog{
		RunID: "r1", UserID: "u1", Status: models.RunPartial,
		StartedAt: at, FinishedAt: at.Add(time.Second),
		Trained: []string{"Food"}, Skipped: []string{"Travel"},
		Transcript: "level=INFO msg=done",
	}); err != nil {
		t.Fatalf("SaveRunLog: %v", err)
	}

	st, err := repo.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.LastTrained.Equal(at) {
		t.Errorf("LastTrained = %v", st.LastTrained)
	}
	if len(st.Categories) != 3 {
		t.Fatalf("categories = %+v", st.Categories)
	}
	food := st.Category("Food")
	if !food.HasSeasonal || !food.HasSequence {
		t.Errorf("Food status = %+v", food)
	}
	if len(st.RecentLogs) != 1 || st.RecentLogs[0].Skipped[0] != "Travel" {
		t.Errorf("recent logs = %+v", st.RecentLogs)
	}

	users, _ := repo.ListTrained(ctx)
	if len(users) != 1 || users[0].ID != "u1" {
		t.Errorf("ListTrained = %+v", users)
	}
}

func TestJobStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, u := range []string{"u1", "u2", "u1"} {
		if err := repo.SaveJob(ctx, &jobs.TrainingJob{
			JobID:      string(rune('a' + i)),
			UserID:     u,
			Status:     jobs.JobStatusPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			MaxRetries: 3,
		}); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	started := base.Add(5 * time.Hour)
	job, err := repo.GetJob(ctx, "a")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.RunID = "run-a"
	if err := repo.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob update: %v", err)
	}

	job, _ = repo.GetJob(ctx, "a")
	if job.Status != jobs.JobStatusRunning || job.StartedAt == nil || !job.StartedAt.Equal(started) || job.CompletedAt != nil {
		t.Errorf("updated job = %+v", job)
	}

	list, err := repo.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(list) != 2 || list[0].JobID != "c" {
		t.Errorf("ListJobs(u1) = %+v", list)
	}
	list, _ = repo.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending, Limit: 1})
	if len(list) != 1 || list[0].JobID != "c" {
		t.Errorf("ListJobs(pending, 1) = %+v", list)
	}
	list, _ = repo.ListJobs(ctx, jobs.JobFilter{Limit: 5, Offset: 2})
	if len(list) != 1 || list[0].JobID != "a" {
		t.Errorf("ListJobs(offset 2) = %+v", list)
	}

	if err := repo.UpdateJobStatus(ctx, "b", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	b, _ := repo.GetJob(ctx, "b")
	if b.Status != jobs.JobStatusFailed || b.Error != "boom" {
		t.Errorf("job b = %+v", b)
	}
	if err := repo.UpdateJobStatus(ctx, "zzz", jobs.JobStatusFailed, ""); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus(missing) = %v", err)
	}
	if _, err := repo.GetJob(ctx, "zzz"); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("GetJob(missing) = %v", err)
	}
}
