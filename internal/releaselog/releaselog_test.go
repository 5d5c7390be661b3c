package releaselog

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendAndTail(t *testing.T) {
	logDir := t.TempDir()
	w := New(logDir, nil)
	w.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	for _, line := range []string{"queued", "searching soulseek", "downloaded 10 tracks"} {
		if err := w.Append("Sigur Rós", "Ágætis byrjun", line); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	path, err := w.Path("Sigur Rós", "Ágætis byrjun")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(logDir, "releases") {
		t.Fatalf("unexpected log dir %q", path)
	}
	if filepath.Base(path) != "sigur-ros--agaetis-byrjun.log" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}

	lines, err := w.Tail("Sigur Rós", "Ágætis byrjun", 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1] != "2026-01-02T03:04:05Z downloaded 10 tracks" {
		t.Fatalf("unexpected last line %q", lines[1])
	}
}

func TestTailMissingLogIsEmpty(t *testing.T) {
	w := New(t.TempDir(), nil)
	lines, err := w.Tail("nobody", "nothing", 10)
	if err != nil || len(lines) != 0 {
		t.Fatalf("expected empty tail, got %v err=%v", lines, err)
	}
}

func TestUnconfiguredWriterErrors(t *testing.T) {
	w := New("", nil)
	if err := w.Append("a", "b", "line"); err == nil {
		t.Fatal("expected error without a log directory")
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Append(string, string, string) error {
	f.calls++
	return errors.New("disk full")
}

func TestFuncSwallowsErrors(t *testing.T) {
	sink := &failingSink{}
	fn := Func(sink, nil, "a", "b")
	fn("line")
	if sink.calls != 1 {
		t.Fatalf("expected one append, got %d", sink.calls)
	}
	Func(nil, nil, "a", "b")(strings.Repeat("x", 3))
}
