package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/goals"
	"spendplan/internal/jobs"
	"spendplan/internal/middleware/ratelimit"
	"spendplan/internal/models"
)

type fakePlanner struct {
	summary core.ForecastSummary
	err     error
	records map[string]core.MonthlyRecord
	goals   []core.SavingsGoal
}

func (f *fakePlanner) Forecast(ctx context.Context, userID string) (core.ForecastSummary, error) {
	return f.summary, f.err
}

func (f *fakePlanner) Allocate(ctx context.Context, userID string) (core.AllocationPlan, error) {
	if f.err != nil {
		return core.AllocationPlan{}, f.err
	}
	return core.AllocationPlan{UserID: userID, Status: core.PlanStatusOK, RecommendedBudget: map[string]float64{"Food": 300}}, nil
}

func (f *fakePlanner) ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	return f.goals, f.err
}

func (f *fakePlanner) SaveGoal(ctx context.Context, userID string, g core.SavingsGoal) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	if err := g.Validate(); err != nil {
		return err
	}
	f.goals = append(f.goals, g)
	return nil
}

func (f *fakePlanner) GoalProgress(ctx context.Context, userID, goalID string) (goals.GoalProgress, error) {
	for _, g := range f.goals {
		if g.ID == goalID {
			return goals.Progress(g), nil
		}
	}
	return goals.GoalProgress{}, fmt.Errorf("goal %s: %w", goalID, core.ErrGoalNotFound)
}

func (f *fakePlanner) PutRecord(ctx context.Context, userID string, r core.MonthlyRecord) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if f.records == nil {
		f.records = make(map[string]core.MonthlyRecord)
	}
	f.records[userID+"/"+string(r.Month)] = r
	return nil
}

func (f *fakePlanner) Series(ctx context.Context, userID, category string, monthsBack int) (core.CategorySeries, error) {
	if category != "Food" {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownCategory, category)
	}
	var out core.CategorySeries
	for _, r := range f.records {
		if v, ok := r.CategoryExpenses[category]; ok {
			out = append(out, core.SeriesPoint{Month: r.Month, Amount: v})
		}
	}
	if monthsBack > 0 && len(out) > monthsBack {
		out = out[len(out)-monthsBack:]
	}
	return out, nil
}

func (f *fakePlanner) ListUsers(ctx context.Context) ([]string, error) {
	return []string{"u1", "u2"}, nil
}

type fakeTrainer struct {
	jobs map[string]*jobs.TrainingJob
}

func (f *fakeTrainer) SubmitTraining(ctx context.Context, userID string) (*jobs.TrainingJob, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if f.jobs == nil {
		f.jobs = make(map[string]*jobs.TrainingJob)
	}
	job := &jobs.TrainingJob{JobID: fmt.Sprintf("job-%d", len(f.jobs)+1), UserID: userID, Status: jobs.JobStatusPending}
	f.jobs[job.JobID] = job
	return job, nil
}

func (f *fakeTrainer) Job(ctx context.Context, jobID string) (*jobs.TrainingJob, error) {
	if job, ok := f.jobs[jobID]; ok {
		return job, nil
	}
	return nil, fmt.Errorf("job %s: %w", jobID, core.ErrJobNotFound)
}

func (f *fakeTrainer) ModelStatus(ctx context.Context, userID string) (models.UserStatus, error) {
	return models.UserStatus{UserID: userID, Categories: []models.CategoryStatus{{Category: "Food"}}}, nil
}

func (f *fakeTrainer) RunLogs(ctx context.Context, userID string, limit int) ([]models.RunLog, error) {
	logs := []models.RunLog{{RunID: "r1", UserID: userID, Status: models.RunSucceeded}, {RunID: "r2", UserID: userID, Status: models.RunPartial}}
	return logs[:min(limit, len(logs))], nil
}

func (f *fakeTrainer) TrainedUsers(ctx context.Context) ([]core.User, error) {
	return []core.User{{ID: "u1", LastTrained: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}}, nil
}

func newTestServer(t *testing.T, p *fakePlanner, ready ReadyFunc, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", p, &fakeTrainer{}, ready, nil, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s content type %q", path, ct)
		}
	}

	down := newTestServer(t, &fakePlanner{}, func(ctx context.Context) error { return errors.New("database is locked") }, Options{})
	rr := do(t, down, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "not_ready" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{})
	rr := do(t, srv, http.MethodGet, "/healthz", "")

	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "X-Request-ID"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing header %s", name)
		}
	}
}

func TestRateLimitAppliesToPOST(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{
		RateLimit: ratelimit.Config{RequestsPerMinute: 2, Methods: []string{http.MethodPost}},
	})

	body := `{"user_id":"u1"}`
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/train", body); rr.Code != http.StatusAccepted {
			t.Fatalf("request %d status=%d", i+1, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/train", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if got := decode[errorBody](t, rr).Error; got != "rate_limited" {
		t.Errorf("error = %q", got)
	}

	for i := 0; i < 5; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/budget?user_id=u1", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET limited: status=%d", rr.Code)
		}
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{})
	do(t, srv, http.MethodGet, "/healthz", "")
	do(t, srv, http.MethodGet, "/api/budget", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, want := range []string{"http_requests_total 2", "http_client_errors_total 1", "rate_limit_hits_total 0"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q:\n%s", want, rr.Body.String())
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{})
	rr := do(t, srv, http.MethodDelete, "/api/goals?user_id=u1", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}
