package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pipcast/internal/config"
	"pipcast/internal/logging"
	"pipcast/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, "pipcast.log")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "pipcast.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello file") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithInvocationID(context.Background(), "0123456789abcdef")
	ctx = services.WithRendition(ctx, "short_form")
	ctx = services.WithStage(ctx, "render")
	logger = logging.NewComponentLogger(logging.WithContext(ctx, logger), "pipeline")
	logger.Info("rendition started", logging.Int("nodes", 24))

	line := buf.String()
	for _, fragment := range []string{"INFO pipeline [01234567/short_form render] rendition started", "nodes=24"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestConsoleLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buf.String(), "quiet") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN loud") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestJSONLoggerShape(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "hardware probe failed", "backend_probe_failed", logging.Error(errors.New("no nvenc")))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, buf.String())
	}
	if record["level"] != "warn" || record["msg"] != "hardware probe failed" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record[logging.FieldEventType] != "backend_probe_failed" {
		t.Fatalf("expected event type, got %v", record[logging.FieldEventType])
	}
	if record[logging.FieldImpact] == nil || record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected impact and hint defaults, got %v", record)
	}
	if record["error"] != "no nvenc" {
		t.Fatalf("expected error string, got %v", record["error"])
	}
}

func TestWarnWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "rendition failed", "rendition_failed",
		logging.Hint("retry with backend=software"),
		logging.Backend("hardware"),
		logging.Rendition("long_form"),
		logging.Percent(42.5),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, buf.String())
	}
	if got := strings.Count(buf.String(), `"error_hint"`); got != 1 {
		t.Fatalf("expected a single hint, found %d in %s", got, buf.String())
	}
	want := map[string]any{
		logging.FieldErrorHint: "retry with backend=software",
		logging.FieldBackend:   "hardware",
		logging.FieldRendition: "long_form",
		logging.FieldEventType: "rendition_failed",
		"progress_percent":     42.5,
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("%s = %v, want %v", key, record[key], value)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPruneOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	keep := filepath.Join(dir, "keep.txt")
	for _, p := range []string{old, fresh, keep} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-72 * time.Hour)
	for _, p := range []string{old, keep} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	pointer := filepath.Join(dir, "pipcastd.log")
	if err := os.Symlink(old, pointer); err != nil {
		t.Fatal(err)
	}

	removed := logging.PruneOlderThan(logging.NewNop(), 1, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Lstat(pointer); err != nil {
		t.Fatalf("expected log pointer to remain: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{fresh, keep} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain: %v", p, err)
		}
	}
}

func TestPruneOlderThanDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}
	if removed := logging.PruneOlderThan(nil, 0, logging.RetentionTarget{Dir: dir}); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to remain: %v", err)
	}
}
