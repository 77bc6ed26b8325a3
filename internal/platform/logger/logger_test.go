package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestSetupLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		logger, err := Setup(level)
		if err != nil {
			t.Fatalf("Setup(%q) returned error: %v", level, err)
		}
		if logger == nil {
			t.Fatalf("Setup(%q) returned nil logger", level)
		}
	}

	// Unknown levels fall back to info rather than failing
	logger, err := Setup("verbose")
	if err != nil || logger == nil {
		t.Fatalf("Setup with invalid level should fall back, got logger=%v err=%v", logger, err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	attached := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithLogger(context.Background(), attached)
	if got := FromContext(ctx); got != attached {
		t.Error("FromContext should return the attached logger")
	}

	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext without attachment should return the default logger")
	}

	fallback := slog.New(slog.NewJSONHandler(&buf, nil))
	if got := FromContextOrDefault(context.Background(), fallback); got != fallback {
		t.Error("FromContextOrDefault should prefer the provided fallback")
	}
	if got := FromContextOrDefault(ctx, fallback); got != attached {
		t.Error("FromContextOrDefault should prefer the context logger")
	}
}
