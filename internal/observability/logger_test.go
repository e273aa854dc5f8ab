package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug", level: "debug", debugEnabled: true},
		{name: "info", level: "info", debugEnabled: false},
		{name: "warn", level: "warn", debugEnabled: false},
		{name: "empty defaults to info", level: "", debugEnabled: false},
		{name: "mixed case", level: " DEBUG ", debugEnabled: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("NewLogger(%q) error = %v", tc.level, err)
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled = %v, want %v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithCorrelationID(context.Background(), "req-42")

	correlationID, ok := CorrelationIDFromContext(ctx)
	if !ok || correlationID != "req-42" {
		t.Fatalf("CorrelationIDFromContext = %q, %v", correlationID, ok)
	}

	if _, ok := CorrelationIDFromContext(context.Background()); ok {
		t.Fatal("a bare context must not carry a correlation id")
	}
}

func TestWithContextLoggerAnnotates(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithCorrelationID(context.Background(), "req-42")
	WithContextLogger(base, ctx).Info("annotated")
	WithContextLogger(base, context.Background()).Info("plain")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(entries))
	}
	if got := entries[0].ContextMap()["correlationId"]; got != "req-42" {
		t.Fatalf("correlationId = %v, want req-42", got)
	}
	if _, ok := entries[1].ContextMap()["correlationId"]; ok {
		t.Fatal("a context without a correlation id must not add the field")
	}
}

func TestWithContextLoggerNilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger in, nil logger out")
	}
}
