package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RunSink captures the log output of a single training run or request.
// Records go to the parent handler as usual and are also kept in memory so
// the run transcript can be persisted next to the run's result.
type RunSink struct {
	runID   string
	started time.Time
	buf     *lockedBuffer
	logger  *Logger
}

// NewRunSink builds a sink whose logger tees into parent and the run buffer.
// A nil parent only records into the buffer.
func NewRunSink(parent *Logger, runID string) *RunSink {
	buf := &lockedBuffer{}
	capture := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	var handler slog.Handler = capture
	component := ComponentTraining
	if parent != nil {
		handler = teeHandler{parent.Logger.Handler(), capture}
		component = parent.component
	}

	return &RunSink{
		runID:   runID,
		started: time.Now(),
		buf:     buf,
		logger: &Logger{
			Logger:    slog.New(handler).With(FieldRunID, runID),
			component: component,
		},
	}
}

func (s *RunSink) RunID() string { return s.runID }

func (s *RunSink) Started() time.Time { return s.started }

// Logger returns the run-scoped logger.
func (s *RunSink) Logger() *Logger { return s.logger }

// Bytes returns a copy of everything logged through the sink so far.
func (s *RunSink) Bytes() []byte { return s.buf.Bytes() }

func (s *RunSink) String() string { return string(s.buf.Bytes()) }

// Lines returns the transcript split into non-empty lines.
func (s *RunSink) Lines() []string {
	var out []string
	for _, l := range strings.Split(s.String(), "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// teeHandler fans records out to every handler that accepts the level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
