package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"cratedig/internal/logging"
)

func TestEnsureCurrentLogPointerReplacesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "cratedigd-1.log")
	second := filepath.Join(dir, "cratedigd-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, logging.DaemonLogName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(raw) != "cratedigd-2.log" {
		t.Fatalf("pointer resolves to %q, want the latest run", raw)
	}
}

func TestEnsureCurrentLogPointerIgnoresEmptyPaths(t *testing.T) {
	if err := ensureCurrentLogPointer("", ""); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cratedigd.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid != os.Getpid() {
		t.Fatalf("pid file = %q", raw)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(t.Context(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
