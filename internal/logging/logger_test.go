package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hydrator/internal/config"
	"hydrator/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (func(msg string, args ...any), func() string, context.Context) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{Format: format, Level: level, OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithRunID(context.Background(), "0123456789abcdef")
	scoped := logging.WithContext(ctx, logging.NewComponentLogger(logger, "scheduler"))
	read := func() string {
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
	return scoped.Info, read, ctx
}

func TestConsoleLoggerPrefixesRunAndComponent(t *testing.T) {
	info, read, _ := newFileLogger(t, "console", "info")
	info("batch dispatched", logging.Int("batch_size", 5), logging.Reference("f1", "i1"))

	content := read()
	for _, want := range []string{"INFO", "[01234567] scheduler: batch dispatched", "batch_size=5", "feed_guid=f1", "item_guid=i1"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	info, read, _ := newFileLogger(t, "json", "info")
	info("resolved", logging.String("status", "resolved"))

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &line); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", "component", "run_id", "status"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("expected key %q in %v", key, line)
		}
	}
	if line["level"] != "info" {
		t.Fatalf("unexpected level: %v", line["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Warn("cache miss")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "hydrator.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "reference skipped", "malformed_reference", logging.String(logging.FieldImpact, "track not resolved"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{"event_type=malformed_reference", "error_hint=", `impact="track not resolved"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

type rateLimited struct{}

func (rateLimited) Error() string     { return "429 from episodes/byguid" }
func (rateLimited) ErrorKind() string { return "rate_limited" }

func TestConsoleLoggerRendersErrorKindsAndDurations(t *testing.T) {
	info, read, _ := newFileLogger(t, "console", "info")
	info("retrying", logging.Error(rateLimited{}), logging.Duration("delay", 1500*time.Microsecond))

	content := read()
	for _, want := range []string{`error="429 from episodes/byguid (rate_limited)"`, "delay=2ms"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestJSONLoggerRendersErrorKindsAndDurations(t *testing.T) {
	info, read, _ := newFileLogger(t, "json", "info")
	info("retrying", logging.Error(rateLimited{}), logging.Duration("delay", 1500*time.Microsecond))

	var line struct {
		TS    string `json:"ts"`
		Delay string `json:"delay"`
		Error struct {
			Message string `json:"message"`
			Kind    string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &line); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if line.Delay != "2ms" {
		t.Fatalf("delay = %q, want 2ms", line.Delay)
	}
	if line.Error.Message != "429 from episodes/byguid" || line.Error.Kind != "rate_limited" {
		t.Fatalf("unexpected error field %+v", line.Error)
	}
	if _, err := time.Parse(time.RFC3339Nano, line.TS); err != nil {
		t.Fatalf("ts %q is not RFC3339: %v", line.TS, err)
	}
}
