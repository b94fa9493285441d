package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"spendplan/internal/config"
	"spendplan/internal/core"
	"spendplan/internal/forecast"
	"spendplan/internal/goals"
	"spendplan/internal/jobs"
	"spendplan/internal/models"
	"spendplan/internal/records/memory"
	"spendplan/internal/services"
)

func TestForecastOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		planner  *fakePlanner
		wantCode int
		wantErr  string
	}{
		{
			name:     "forecast available",
			query:    "?user_id=u1",
			planner:  &fakePlanner{summary: core.ForecastSummary{UserID: "u1", Categories: map[string]core.ForecastResult{"Food": {Category: "Food", PredictedAmount: 320}}, Total: 320}},
			wantCode: http.StatusOK,
		},
		{
			name:     "models pending",
			query:    "?user_id=u1",
			planner:  &fakePlanner{summary: core.ForecastSummary{UserID: "u1", Pending: []string{"Food"}}},
			wantCode: http.StatusAccepted,
			wantErr:  "model_pending",
		},
		{
			name:     "nothing forecastable",
			query:    "?user_id=u1",
			planner:  &fakePlanner{summary: core.ForecastSummary{UserID: "u1"}},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "not_enough_data",
		},
		{
			name:     "no records",
			query:    "?user_id=u1",
			planner:  &fakePlanner{err: core.ErrNoData},
			wantCode: http.StatusNotFound,
			wantErr:  "no_data",
		},
		{
			name:     "missing user",
			query:    "",
			planner:  &fakePlanner{},
			wantCode: http.StatusBadRequest,
			wantErr:  "missing_user_id",
		},
		{
			name:     "blank user",
			query:    "?user_id=%20%20",
			planner:  &fakePlanner{},
			wantCode: http.StatusBadRequest,
			wantErr:  "missing_user_id",
		},
		{
			name:     "store failure hides detail",
			query:    "?user_id=u1",
			planner:  &fakePlanner{err: context.DeadlineExceeded},
			wantCode: http.StatusGatewayTimeout,
			wantErr:  "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.planner, nil, Options{})
			rr := do(t, srv, http.MethodGet, "/api/forecast"+tt.query, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantErr == "" {
				summary := decode[core.ForecastSummary](t, rr)
				if summary.Categories["Food"].PredictedAmount != 320 {
					t.Errorf("summary = %+v", summary)
				}
				return
			}
			body := decode[errorBody](t, rr)
			if body.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", body.Error, tt.wantErr)
			}
			if tt.wantCode == http.StatusAccepted && len(body.Pending) != 1 {
				t.Errorf("pending = %v", body.Pending)
			}
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{err: errBoom}, nil, Options{})
	rr := do(t, srv, http.MethodGet, "/api/budget?user_id=u1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret dsn") {
		t.Errorf("body leaks error text: %s", rr.Body.String())
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "open secret dsn: refused" }

func TestGoalsEndpoints(t *testing.T) {
	p := &fakePlanner{}
	srv := newTestServer(t, p, nil, Options{})

	rr := do(t, srv, http.MethodGet, "/api/goals?user_id=u1", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"goals":[]`) {
		t.Fatalf("empty list: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/goals", `{"user_id":"u1","name":"Car","target_amount":5000,"amount_saved":1250,"end_date":"2027-01-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decode[core.SavingsGoal](t, rr)
	if created.ID == "" {
		t.Fatal("expected generated goal id")
	}

	rr = do(t, srv, http.MethodGet, "/api/goals/progress?user_id=u1&goal_id="+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("progress: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[goals.GoalProgress](t, rr); got.Percent != 25 {
		t.Errorf("percent = %v, want 25", got.Percent)
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown goal", http.MethodGet, "/api/goals/progress?user_id=u1&goal_id=nope", "", http.StatusNotFound},
		{"missing goal id", http.MethodGet, "/api/goals/progress?user_id=u1", "", http.StatusBadRequest},
		{"blank name", http.MethodPost, "/api/goals", `{"user_id":"u1","name":"  "}`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/goals", `{"user_id":"u1","name":"Car","colour":"red"}`, http.StatusBadRequest},
		{"malformed", http.MethodPost, "/api/goals", `{"user_id":`, http.StatusBadRequest},
		{"missing user", http.MethodPost, "/api/goals", `{"name":"Car"}`, http.StatusBadRequest},
		{"user from query", http.MethodPost, "/api/goals?user_id=u2", `{"name":"Bike"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, tt.method, tt.target, tt.body); rr.Code != tt.want {
				t.Errorf("status=%d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestPutRecord(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"user_id":"u1","month":"2026-03","total_income":3000,"spent_amount":1200,"category_expenses":{"Food":400}}`, http.StatusCreated},
		{"full date normalized", `{"user_id":"u1","month":"2026-04-15","total_income":3000}`, http.StatusCreated},
		{"bad month", `{"user_id":"u1","month":"March","total_income":3000}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"user_id":"u1","month":"2026-03","total_income":-1}`, http.StatusUnprocessableEntity},
		{"missing user", `{"month":"2026-03"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlanner{}
			srv := newTestServer(t, p, nil, Options{})
			rr := do(t, srv, http.MethodPost, "/api/records", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	p := &fakePlanner{}
	srv := newTestServer(t, p, nil, Options{})
	do(t, srv, http.MethodPost, "/api/records", `{"user_id":"u1","month":"2026-04-15","total_income":3000}`)
	if _, ok := p.records["u1/2026-04"]; !ok {
		t.Errorf("records = %v", p.records)
	}
}

func TestTrainAndPollJob(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{})

	rr := do(t, srv, http.MethodPost, "/api/train", `{"user_id":"u1"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("train: %d %s", rr.Code, rr.Body.String())
	}
	job := decode[jobs.TrainingJob](t, rr)
	if loc := rr.Header().Get("Location"); loc != "/api/jobs/"+job.JobID {
		t.Errorf("Location = %q", loc)
	}

	rr = do(t, srv, http.MethodGet, "/api/jobs/"+job.JobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("poll: %d", rr.Code)
	}
	if got := decode[jobs.TrainingJob](t, rr); got.UserID != "u1" || got.Status != jobs.JobStatusPending {
		t.Errorf("job = %+v", got)
	}

	if rr := do(t, srv, http.MethodGet, "/api/jobs/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown job status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/train?user_id=u2", ""); rr.Code != http.StatusAccepted {
		t.Errorf("query user status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/train", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing user status=%d", rr.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakePlanner{}, nil, Options{})

	rr := do(t, srv, http.MethodGet, "/admin/model_status?user_id=u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("model_status: %d", rr.Code)
	}
	if got := decode[models.UserStatus](t, rr); got.UserID != "u1" || len(got.Categories) != 1 {
		t.Errorf("status = %+v", got)
	}

	rr = do(t, srv, http.MethodGet, "/admin/users", "")
	users := decode[usersResponse](t, rr)
	if len(users.Users) != 2 || len(users.Trained) != 1 {
		t.Errorf("users = %+v", users)
	}

	rr = do(t, srv, http.MethodGet, "/admin/logs?user_id=u1&limit=1", "")
	logs := decode[struct {
		Logs []models.RunLog `json:"logs"`
	}](t, rr)
	if len(logs.Logs) != 1 {
		t.Errorf("logs = %+v", logs)
	}

	for _, path := range []string{"/admin/model_status", "/admin/logs"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s without user: %d", path, rr.Code)
		}
	}
}

type staticForecaster struct{ summary core.ForecastSummary }

func (f staticForecaster) ForecastRecords(_ context.Context, userID string, recs []core.MonthlyRecord) (core.ForecastSummary, error) {
	if len(recs) == 0 {
		return core.ForecastSummary{UserID: userID}, core.ErrNoData
	}
	out := f.summary
	out.UserID = userID
	return out, nil
}

func TestPlanningServiceRoundTrip(t *testing.T) {
	f := staticForecaster{summary: core.ForecastSummary{
		Categories: map[string]core.ForecastResult{"Food": {Category: "Food", PredictedAmount: 500, Strategy: core.StrategyNaiveAverage}},
		Total:      500,
		Strategy:   core.StrategyNaiveAverage,
	}}
	planner := services.NewPlanningService(memory.New(), f, config.DefaultPolicy().Allocation, nil)
	srv := NewServer(":0", planner, &fakeTrainer{}, nil, nil, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	if rr := do(t, srv, http.MethodGet, "/api/forecast?user_id=u1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("forecast before records: %d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/budget?user_id=u1", "")
	if got := decode[core.AllocationPlan](t, rr); got.Status != core.PlanStatusNoData {
		t.Fatalf("budget before records: %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/api/records", `{"user_id":"u1","month":"2026-03","total_income":3000,"spent_amount":1000,"category_expenses":{"Food":600}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("put record: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/budget?user_id=u1", "")
	plan := decode[core.AllocationPlan](t, rr)
	if plan.Status != core.PlanStatusOK || plan.ForecastStrategy != core.StrategyNaiveAverage {
		t.Errorf("plan = %+v", plan)
	}
	if _, ok := plan.RecommendedBudget["Food"]; !ok {
		t.Errorf("recommended = %v", plan.RecommendedBudget)
	}

	rr = do(t, srv, http.MethodGet, "/admin/users", "")
	if got := decode[usersResponse](t, rr); len(got.Users) != 1 || got.Users[0] != "u1" {
		t.Errorf("users = %+v", got)
	}
}

func TestForecastShortHistoryIsNotEnoughData(t *testing.T) {
	policy := config.DefaultPolicy()
	store := memory.New()
	fc := forecast.NewForecaster(models.NewMemoryStore(), policy.Forecast, nil)
	agg := forecast.NewAggregator(store, fc, []string{"Food", "Travel"}, 2, nil)
	planner := services.NewPlanningService(store, agg, policy.Allocation, nil)
	srv := NewServer(":0", planner, &fakeTrainer{}, nil, nil, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	for _, month := range []string{"2026-01", "2026-02"} {
		body := `{"user_id":"u1","month":"` + month + `","total_income":6000,"spent_amount":5000,"category_expenses":{"Food":3000,"Travel":2000}}`
		if rr := do(t, srv, http.MethodPost, "/api/records", body); rr.Code != http.StatusCreated {
			t.Fatalf("put record %s: %d %s", month, rr.Code, rr.Body.String())
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/forecast?user_id=u1", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("forecast = %d %s, want 422", rr.Code, rr.Body.String())
	}
	if got := decode[errorBody](t, rr); got.Error != "not_enough_data" {
		t.Errorf("error = %q", got.Error)
	}

	rr = do(t, srv, http.MethodGet, "/api/budget?user_id=u1", "")
	plan := decode[core.AllocationPlan](t, rr)
	if plan.RecommendedBudget["Food"] != 3000 || plan.RecommendedBudget["Travel"] != 2000 {
		t.Errorf("recommended = %v", plan.RecommendedBudget)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	p := &fakePlanner{records: map[string]core.MonthlyRecord{
		"u1/2026-02": {Month: "2026-02", CategoryExpenses: map[string]float64{"Food": 410}},
	}}
	srv := newTestServer(t, p, nil, Options{})

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantErr  string
	}{
		{"ok", "/api/series?user_id=u1&category=Food&months=3", http.StatusOK, ""},
		{"missing user", "/api/series?category=Food", http.StatusBadRequest, "missing_user_id"},
		{"missing category", "/api/series?user_id=u1", http.StatusBadRequest, "missing_category"},
		{"bad months", "/api/series?user_id=u1&category=Food&months=-2", http.StatusBadRequest, "invalid_months"},
		{"unknown category", "/api/series?user_id=u1&category=Crypto", http.StatusUnprocessableEntity, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantErr != "" {
				if got := decode[errorBody](t, rr); got.Error != tt.wantErr {
					t.Errorf("error = %q, want %q", got.Error, tt.wantErr)
				}
				return
			}
			var body struct {
				Points core.CategorySeries `json:"points"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if len(body.Points) != 1 || body.Points[0].Amount != 410 {
				t.Errorf("points = %+v", body.Points)
			}
		})
	}
}
