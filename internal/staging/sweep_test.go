package staging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cratedig/internal/logging"
	"cratedig/internal/staging"
)

func makeDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(dir, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", dir, err)
	}
	return dir
}

func TestSweepRemovesOnlyStaleUnkeptDirectories(t *testing.T) {
	root := t.TempDir()
	stale := makeDir(t, root, "Old Artist", 72*time.Hour)
	kept := makeDir(t, root, "Active Artist", 72*time.Hour)
	fresh := makeDir(t, root, "New Artist", time.Minute)
	if err := os.WriteFile(filepath.Join(root, "loose.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result := staging.Sweep(context.Background(), root, 24*time.Hour, func(name string) bool {
		return name == "Active Artist"
	}, logging.NewNop())

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("removed = %v, want [%s]", result.Removed, stale)
	}
	for _, path := range []string{kept, fresh, filepath.Join(root, "loose.txt")} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to survive: %v", path, err)
		}
	}
}

func TestSweepMissingRootAndDisabled(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	if result := staging.Sweep(context.Background(), missing, time.Hour, nil, nil); len(result.Errors) != 0 || len(result.Removed) != 0 {
		t.Fatalf("expected empty result for missing root, got %+v", result)
	}

	root := t.TempDir()
	old := makeDir(t, root, "x", 48*time.Hour)
	staging.Sweep(context.Background(), root, 0, nil, nil)
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("zero max age must not remove anything: %v", err)
	}
}
