package http

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendplan/internal/core"
	"spendplan/internal/jobs"
	"spendplan/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the stores answer within a few seconds
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]any{"stores": "ok"}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["stores"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes request and security counters in Prometheus text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_request_duration_avg_microseconds", "gauge", "Mean request latency", traceMetrics.AverageMicros())
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpForecast, err)
		return
	}

	summary, err := s.planner.Forecast(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpForecast, err)
		return
	}
	if summary.Empty() {
		if len(summary.Pending) > 0 {
			writeJSON(w, http.StatusAccepted, errorBody{
				Error:   "model_pending",
				Message: "Models are still being trained for this user. Try again later.",
				Pending: summary.Pending,
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "not_enough_data",
			"Not enough history to forecast any category.")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpAllocate, err)
		return
	}
	plan, err := s.planner.Allocate(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpAllocate, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	gs, err := s.planner.ListGoals(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if gs == nil {
		gs = []core.SavingsGoal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "goals": gs})
}

type goalRequest struct {
	UserID string `json:"user_id"`
	core.SavingsGoal
}

func (s *Server) handleSaveGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpWrite, err)
		return
	}
	req.UserID = cmp.Or(sanitizeInput(req.UserID), sanitizeInput(r.URL.Query().Get("user_id")))
	req.Name = sanitizeInput(req.Name)
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := s.planner.SaveGoal(r.Context(), req.UserID, req.SavingsGoal); err != nil {
		s.fail(w, r, log.OpWrite, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Goal saved",
		log.FieldUserID, req.UserID,
		log.FieldGoalID, req.ID)
	writeJSON(w, http.StatusCreated, req.SavingsGoal)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := userParam(q)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	goalID := sanitizeInput(q.Get("goal_id"))
	if goalID == "" {
		writeError(w, http.StatusBadRequest, "missing_goal_id", "goal_id is required")
		return
	}
	progress, err := s.planner.GoalProgress(r.Context(), userID, goalID)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type recordRequest struct {
	UserID string `json:"user_id"`
	core.MonthlyRecord
}

func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpWrite, err)
		return
	}
	req.UserID = cmp.Or(sanitizeInput(req.UserID), sanitizeInput(r.URL.Query().Get("user_id")))
	if month, err := core.ParseMonthKey(string(req.Month)); err == nil {
		req.Month = month
	}

	if err := s.planner.PutRecord(r.Context(), req.UserID, req.MonthlyRecord); err != nil {
		s.fail(w, r, log.OpWrite, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Record stored",
		log.FieldUserID, req.UserID,
		"month", req.Month,
		"categories", len(req.CategoryExpenses))
	writeJSON(w, http.StatusCreated, req.MonthlyRecord)
}

// handleSeries returns one category's monthly history. months limits it to
// the most recent calendar months; 0 or absent means all.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := userParam(q)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	category := sanitizeInput(q.Get("category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "missing_category", "category is required")
		return
	}
	months, err := strconv.Atoi(cmp.Or(strings.TrimSpace(q.Get("months")), "0"))
	if err != nil || months < 0 {
		writeError(w, http.StatusBadRequest, "invalid_months", "months must be a non-negative integer")
		return
	}

	series, err := s.planner.Series(r.Context(), userID, category, months)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	if series == nil {
		series = core.CategorySeries{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "category": category, "points": series})
}

type trainRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpSubmit, err)
		return
	}
	userID := cmp.Or(sanitizeInput(req.UserID), sanitizeInput(r.URL.Query().Get("user_id")))

	job, err := s.trainer.SubmitTraining(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpSubmit, err)
		return
	}
	w.Header().Set("Location", jobLocation(job))
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	job, err := s.trainer.Job(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	status, err := s.trainer.ModelStatus(r.Context(), userID)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type usersResponse struct {
	Users   []string    `json:"users"`
	Trained []core.User `json:"trained"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.planner.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	trained, err := s.trainer.TrainedUsers(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	resp := usersResponse{Users: users, Trained: trained}
	if resp.Users == nil {
		resp.Users = []string{}
	}
	if resp.Trained == nil {
		resp.Trained = []core.User{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := userParam(q)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	logs, err := s.trainer.RunLogs(r.Context(), userID, parseLimit(q, 20, 100))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "logs": logs})
}

// jobLocation is the polling URL returned with submitted jobs.
func jobLocation(job *jobs.TrainingJob) string {
	return "/api/jobs/" + job.JobID
}
