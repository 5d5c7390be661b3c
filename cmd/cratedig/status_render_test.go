package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"cratedig/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusLines(t *testing.T) {
	status := api.DaemonStatus{
		Running:       true,
		PID:           42,
		StartedAt:     "2026-01-02T03:04:05Z",
		LockFilePath:  "/state/cratedigd.lock",
		EventsDropped: 3,
		Providers: []api.ProviderStatus{
			{Name: "soulseek", Enabled: true},
			{Name: "indexer", Enabled: false},
		},
		Queue: api.QueueCounts{Length: 10, Capacity: 10, InFlight: 2},
		Slots: api.SlotCounts{Desired: 4, Running: 4, Busy: 2},
	}
	joined := strings.Join(statusLines(status, false), "\n")
	for _, want := range []string{
		"== Daemon ==",
		"[OK] running (pid 42",
		"[WARN] 3",
		"soulseek:",
		"[WARN] disabled",
		"[WARN] 10 queued, 2 in flight, capacity 10",
		"2 busy of 4 running (desired 4)",
	} {
		requireContains(t, joined, want)
	}

	stopped := strings.Join(statusLines(api.DaemonStatus{}, false), "\n")
	requireContains(t, stopped, "[WARN] not running")
	requireContains(t, stopped, "[ERROR] none configured")
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestFormatAge(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Second: "30s",
		5 * time.Minute:  "5m",
		3 * time.Hour:    "3h",
		72 * time.Hour:   "3d",
	}
	for d, want := range cases {
		if got := formatAge(d); got != want {
			t.Errorf("formatAge(%s) = %q, want %q", d, got, want)
		}
	}
	if formatRelative("") != "" {
		t.Error("expected empty relative time for empty input")
	}
	if formatDuration(0) != "-" {
		t.Error("expected dash for unknown duration")
	}
}

func TestRenderTableTruncatesLongCells(t *testing.T) {
	long := strings.Repeat("x", maxColumnWidth+20)
	out := renderTable([]column{left("Name")}, [][]string{{long}})
	if strings.Contains(out, long) {
		t.Fatal("expected long cell to be trimmed")
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
}

func TestAttemptStatusClassifiesOutcomes(t *testing.T) {
	cases := []struct {
		entry api.HistoryEntry
		kind  statusKind
		text  string
	}{
		{api.HistoryEntry{}, statusInfo, "in progress"},
		{api.HistoryEntry{Finished: true, Success: true, Outcome: "completed"}, statusOK, "completed"},
		{api.HistoryEntry{Finished: true, Outcome: "cancelled"}, statusWarn, "cancelled"},
		{api.HistoryEntry{Finished: true, Outcome: "not_found"}, statusError, "not_found"},
	}
	for _, tc := range cases {
		kind, text := attemptStatus(tc.entry)
		if kind != tc.kind || text != tc.text {
			t.Errorf("attemptStatus(%+v) = %v %q, want %v %q", tc.entry, kind, text, tc.kind, tc.text)
		}
	}
}

func TestQueueStatusWarnsAtCapacity(t *testing.T) {
	if kind, _ := queueStatus(api.QueueCounts{Length: 3, Capacity: 10}); kind != statusOK {
		t.Fatalf("expected OK below capacity, got %v", kind)
	}
	kind, detail := queueStatus(api.QueueCounts{Length: 10, Capacity: 10, InFlight: 1})
	if kind != statusWarn || detail != "10 queued, 1 in flight, capacity 10" {
		t.Fatalf("unexpected %v %q", kind, detail)
	}
}
