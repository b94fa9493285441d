package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(cfg)
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = c.now
	return rl, c
}

func TestAllowWindow(t *testing.T) {
	rl, c := newTestLimiter(t, Config{RequestsPerMinute: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("fourth request allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other client rejected")
	}

	c.t = c.t.Add(20 * time.Second)
	if got := rl.RetryAfter("1.2.3.4"); got != 40 {
		t.Errorf("RetryAfter = %d, want 40", got)
	}
	// Requests inside the window do not extend it.
	c.t = c.t.Add(40 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("request after window reset rejected")
	}

	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, c := newTestLimiter(t, Config{RequestsPerMinute: 5})
	rl.Allow("old")
	c.t = c.t.Add(11 * time.Minute)
	rl.Allow("new")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("active clients = %d", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyCountsConfiguredMethods(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}})
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodPost, http.StatusTooManyRequests},
	}
	for i, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tt.method, "/api/records", nil))
		if rr.Code != tt.want {
			t.Fatalf("request %d (%s): status %d, want %d", i, tt.method, rr.Code, tt.want)
		}
		if tt.want == http.StatusTooManyRequests && rr.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
