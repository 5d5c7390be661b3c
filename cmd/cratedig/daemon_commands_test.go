package main

import (
	"strings"
	"testing"

	"cratedig/internal/queue"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	out, _, err := runCLI(t, []string{"--help"}, "")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"daemon", "stop", "status", "queue", "cancel", "slots", "history", "events", "test-notify", "config"} {
		requireContains(t, out, name)
	}
}

func TestStatusCommandAgainstDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] running")
	requireContains(t, out, env.cfg.LockPath())
	requireContains(t, out, "0 busy of 0 running (desired 0)")
}

func TestSlotsShowAndResize(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "slots", "show")
	if err != nil {
		t.Fatalf("slots show: %v", err)
	}
	requireContains(t, out, "No slots running (desired 0)")

	out, _, err = env.run(t, "slots", "resize", "2")
	if err != nil {
		t.Fatalf("slots resize: %v", err)
	}
	requireContains(t, out, "Slot count set to 2")
	if desired, _ := env.daemon.Slots(); desired != 2 {
		t.Fatalf("desired slots = %d, want 2", desired)
	}

	if _, _, err := env.run(t, "slots", "resize", "40"); err == nil || !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, _, err := env.run(t, "slots", "resize", "many"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHistoryCommandEmptyAndMissingRelease(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No finished attempts yet")

	_, _, err = env.run(t, "history", "--release", "a1", "Missing")
	if err == nil || !strings.Contains(err.Error(), "no history for a1/Missing") {
		t.Fatalf("expected missing history error, got %v", err)
	}
}

func TestEventsCommandShowsQueueEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.Enqueue([]queue.Item{{ArtistID: "a1", ReleaseFolder: "One"}}, false)

	out, _, err := env.run(t, "events", "--topic", "queue")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, queue.EventEnqueued)

	out, _, err = env.run(t, "--json", "events", "--topic", "queue", "-n", "1")
	if err != nil {
		t.Fatalf("events --json: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 || !strings.HasPrefix(lines[0], "{") {
		t.Fatalf("expected one JSON line, got %q", out)
	}
}

func TestCommandsReportUnreachableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.Stop()

	_, _, err := env.run(t, "status")
	if err == nil || !strings.Contains(err.Error(), "connect to daemon") {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestStopWhenDaemonIsNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.Stop()

	out, _, err := env.run(t, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
