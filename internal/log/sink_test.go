package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRunSinkCapturesAndForwards(t *testing.T) {
	var parentOut bytes.Buffer
	parent := New(Config{
		Component: ComponentTraining,
		Handler:   slog.NewTextHandler(&parentOut, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})

	sink := NewRunSink(parent, "run-1")
	sink.Logger().Info("training category", FieldCategory, "Food")
	sink.Logger().Debug("debug detail")

	lines := sink.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 captured lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "run_id=run-1") || !strings.Contains(lines[0], "category=Food") {
		t.Fatalf("missing attributes in %q", lines[0])
	}
	if !strings.Contains(lines[0], "component=training") {
		t.Fatalf("missing component in %q", lines[0])
	}

	// parent is at info level so the debug line is not forwarded
	if strings.Count(parentOut.String(), "\n") != 1 {
		t.Fatalf("parent output:\n%s", parentOut.String())
	}
}

func TestRunSinkWithoutParent(t *testing.T) {
	sink := NewRunSink(nil, "solo")
	sink.Logger().Warn("no parent")
	if !strings.Contains(sink.String(), "no parent") {
		t.Fatalf("transcript = %q", sink.String())
	}
	if sink.RunID() != "solo" {
		t.Fatalf("run id = %s", sink.RunID())
	}
}

func TestSinksAreIsolated(t *testing.T) {
	a := NewRunSink(nil, "a")
	b := NewRunSink(nil, "b")
	a.Logger().Info("only in a")
	if strings.Contains(b.String(), "only in a") {
		t.Fatalf("sink b saw sink a's records")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}
