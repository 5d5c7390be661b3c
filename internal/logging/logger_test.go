package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cratedig/internal/logging"
	"cratedig/internal/services"
)

func bufferLogger(t *testing.T, buf *bytes.Buffer, format string) *slog.Logger {
	t.Helper()
	logger, err := logging.New(logging.Options{Level: "info", Format: format, Writer: buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return logger
}

func TestJSONLogWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cratedigd-run.log")
	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("slot started", logging.Int(logging.FieldSlotID, 1), logging.Duration("wait", 1500*time.Millisecond))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected the shared path to be written once, got %d lines", len(lines))
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("expected json line, got %q: %v", lines[0], err)
	}
	if payload["msg"] != "slot started" || payload["level"] != "info" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"].(string); !ok {
		t.Fatalf("expected ts field, got %v", payload)
	}
	if payload["wait_ms"] != float64(1500) {
		t.Fatalf("expected wait_ms=1500, got %v", payload["wait_ms"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := logging.ParseLevel(" WARN "); got != slog.LevelWarn {
		t.Fatalf("ParseLevel(WARN) = %v", got)
	}
	if got := logging.ParseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("ParseLevel(verbose) = %v", got)
	}
}

func TestWithContextAddsReleaseFields(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewComponentLogger(bufferLogger(t, &buf, "console"), "slots")
	ctx := services.WithSlotID(context.Background(), 2)
	ctx = services.WithRelease(ctx, "a1", "Album (2001)")
	ctx = services.WithProvider(ctx, "indexer")

	logging.WithContext(ctx, base).Info("searching")

	out := buf.String()
	if !strings.Contains(out, "slots: [slot 2 a1/Album (2001)] searching") {
		t.Fatalf("expected release prefix, got %q", out)
	}
	if !strings.Contains(out, "provider=indexer") {
		t.Fatalf("expected provider field, got %q", out)
	}
	for _, lifted := range []string{"slot_id=", "artist_id=", "release_folder="} {
		if strings.Contains(out, lifted) {
			t.Fatalf("expected %s to move into the prefix, got %q", lifted, out)
		}
	}
}

func TestConsoleHidesCorrelationIDOutsideDebug(t *testing.T) {
	var buf bytes.Buffer
	ctx := services.WithRequestID(context.Background(), "req-7")
	logging.WithContext(ctx, bufferLogger(t, &buf, "console")).Info("queue listed")
	if strings.Contains(buf.String(), "req-7") {
		t.Fatalf("expected correlation id hidden at info, got %q", buf.String())
	}
}

func TestWarnWithContextInjectsFamilyDefaults(t *testing.T) {
	var buf bytes.Buffer
	logging.WarnWithContext(bufferLogger(t, &buf, "json"), "indexer search failed", "indexer_unreachable")
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldEventType] != "indexer_unreachable" {
		t.Fatalf("unexpected event type: %v", payload)
	}
	if hint, _ := payload[logging.FieldErrorHint].(string); !strings.Contains(hint, "config validate") {
		t.Fatalf("expected transport hint, got %q", hint)
	}
	if impact, _ := payload[logging.FieldImpact].(string); !strings.Contains(impact, "next provider") {
		t.Fatalf("expected provider impact, got %q", impact)
	}
}

func TestWarnWithContextKeepsExplicitHint(t *testing.T) {
	var buf bytes.Buffer
	logging.WarnWithContext(bufferLogger(t, &buf, "console"), "odd", "something_else",
		logging.String(logging.FieldErrorHint, "restart"))
	out := buf.String()
	if !strings.Contains(out, "error_hint=restart") || !strings.Contains(out, `impact="operation completed with warnings"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestRunLogTargetsKeepCurrentRun(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "cratedigd-20200101T000000.000Z.log")
	oldEvents := filepath.Join(dir, "cratedigd-20200101T000000.000Z.events")
	current := filepath.Join(dir, "cratedigd-20200201T000000.000Z.log")
	currentEvents := filepath.Join(dir, "cratedigd-20200201T000000.000Z.events")
	oldRelease := filepath.Join(logging.ReleaseLogDir(dir), "a1-album.log")
	for _, path := range []string{old, oldEvents, current, currentEvents, oldRelease} {
		writeAged(t, path, 10*24*time.Hour)
	}
	if err := os.Symlink(current, filepath.Join(dir, logging.DaemonLogName)); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 3, logging.RunLogTargets(dir)...)
	if removed != 3 {
		t.Fatalf("expected 3 files pruned, got %d", removed)
	}
	for _, gone := range []string{old, oldEvents, oldRelease} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s pruned, stat err=%v", gone, err)
		}
	}
	for _, kept := range []string{current, currentEvents, filepath.Join(dir, logging.DaemonLogName)} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("expected %s kept: %v", kept, err)
		}
	}
}

func TestCleanupOldLogsKeepsRecentAndDisabled(t *testing.T) {
	dir := t.TempDir()
	recent := filepath.Join(dir, "cratedigd-new.log")
	stale := filepath.Join(dir, "cratedigd-old.log")
	writeAged(t, recent, time.Hour)
	writeAged(t, stale, 10*24*time.Hour)

	if n := logging.CleanupOldLogs(nil, 0, logging.RunLogTargets(dir)...); n != 0 {
		t.Fatalf("expected retention 0 to keep everything, removed %d", n)
	}
	logging.CleanupOldLogs(nil, 3, logging.RunLogTargets(dir, stale)...)
	for _, path := range []string{recent, stale} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}
