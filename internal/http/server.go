// Package http exposes the planning and training services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spendplan/internal/core"
	"spendplan/internal/goals"
	"spendplan/internal/jobs"
	"spendplan/internal/log"
	"spendplan/internal/middleware/ratelimit"
	"spendplan/internal/middleware/security"
	"spendplan/internal/middleware/trace"
	"spendplan/internal/models"
)

// Planner is the planning surface served under /api.
type Planner interface {
	Forecast(ctx context.Context, userID string) (core.ForecastSummary, error)
	Allocate(ctx context.Context, userID string) (core.AllocationPlan, error)
	ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error)
	SaveGoal(ctx context.Context, userID string, g core.SavingsGoal) error
	GoalProgress(ctx context.Context, userID, goalID string) (goals.GoalProgress, error)
	PutRecord(ctx context.Context, userID string, r core.MonthlyRecord) error
	Series(ctx context.Context, userID, category string, monthsBack int) (core.CategorySeries, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// Trainer is the job and model admin surface.
type Trainer interface {
	SubmitTraining(ctx context.Context, userID string) (*jobs.TrainingJob, error)
	Job(ctx context.Context, jobID string) (*jobs.TrainingJob, error)
	ModelStatus(ctx context.Context, userID string) (models.UserStatus, error)
	RunLogs(ctx context.Context, userID string, limit int) ([]models.RunLog, error)
	TrainedUsers(ctx context.Context) ([]core.User, error)
}

// ReadyFunc reports whether the backing stores are reachable.
type ReadyFunc func(ctx context.Context) error

// Options tune the middleware chain. Zero values pick defaults.
type Options struct {
	RateLimit       ratelimit.Config
	Headers         *security.HeadersConfig
	BlockSuspicious bool
	TrustedProxies  []string
	RequestTimeout  time.Duration
}

type Server struct {
	http.Server
	planner Planner
	trainer Trainer
	ready   ReadyFunc
	logger  *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, p Planner, t Trainer, ready ReadyFunc, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	detector := security.NewDetector(opts.BlockSuspicious)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		planner:          p,
		trainer:          t,
		ready:            ready,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		started:          time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/budget", s.handleBudget)
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleSaveGoal)
	mux.HandleFunc("GET /api/goals/progress", s.handleGoalProgress)
	mux.HandleFunc("POST /api/records", s.handlePutRecord)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)

	mux.HandleFunc("GET /admin/model_status", s.handleModelStatus)
	mux.HandleFunc("GET /admin/users", s.handleUsers)
	mux.HandleFunc("GET /admin/logs", s.handleLogs)

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.")
	})

	var handler http.Handler = mux
	handler = http.TimeoutHandler(handler, opts.RequestTimeout, `{"error":"timeout","message":"request timed out"}`)
	handler = limited(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.RequestTimeout,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
