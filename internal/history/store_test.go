package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cratedig/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveEntryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := progress.Entry{
		Timestamp:     start,
		ArtistID:      "ar-1",
		ReleaseFolder: "Album (2001)",
		ArtistName:    "Artist",
		ReleaseTitle:  "Album",
		SlotID:        2,
		Finished:      true,
		Success:       true,
		Outcome:       progress.OutcomeCompleted,
		ProviderUsed:  "soulseek",
		TotalDuration: 90 * time.Second,
		Transitions: []progress.Transition{
			{From: progress.StateIdle, To: progress.StateStarting, At: start},
			{From: progress.StateStarting, To: progress.StateProcessing, At: start.Add(time.Second), Duration: time.Second},
			{From: progress.StateProcessing, To: progress.StateCompleted, At: start.Add(90 * time.Second), Duration: 89 * time.Second},
		},
	}
	if err := store.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(loaded))
	}
	got := loaded[0]
	if !got.Timestamp.Equal(start) || got.ProviderUsed != "soulseek" || !got.Success || got.SlotID != 2 {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.TotalDuration != 90*time.Second {
		t.Fatalf("duration = %v", got.TotalDuration)
	}
	if len(got.Transitions) != 3 || got.Transitions[2].To != progress.StateCompleted {
		t.Fatalf("unexpected transitions: %+v", got.Transitions)
	}
	if got.Transitions[2].Duration != 89*time.Second {
		t.Fatalf("transition duration = %v", got.Transitions[2].Duration)
	}
}

func TestSaveEntryReplacesPreviousAttempt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := progress.Entry{
		Timestamp:     start,
		ArtistID:      "ar-1",
		ReleaseFolder: "Album",
		Finished:      true,
		Outcome:       progress.OutcomeFailed,
		ErrorMessage:  "timeout",
		Transitions: []progress.Transition{
			{From: progress.StateIdle, To: progress.StateStarting, At: start},
			{From: progress.StateStarting, To: progress.StateError, At: start.Add(time.Minute), Duration: time.Minute},
		},
	}
	second := progress.Entry{
		Timestamp:     start.Add(time.Hour),
		ArtistID:      "AR-1",
		ReleaseFolder: "album",
		Transitions: []progress.Transition{
			{From: progress.StateIdle, To: progress.StateStarting, At: start.Add(time.Hour)},
		},
	}
	if err := store.SaveEntry(ctx, first); err != nil {
		t.Fatalf("SaveEntry first: %v", err)
	}
	if err := store.SaveEntry(ctx, second); err != nil {
		t.Fatalf("SaveEntry second: %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected keyed entry to be replaced, got %d rows", len(loaded))
	}
	if loaded[0].Finished || loaded[0].ErrorMessage != "" {
		t.Fatalf("expected fresh attempt, got %+v", loaded[0])
	}
	if len(loaded[0].Transitions) != 1 {
		t.Fatalf("expected transitions replaced, got %d", len(loaded[0].Transitions))
	}
}

func TestHistoryRehydratesFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	ctx := context.Background()
	h := progress.NewHistory(progress.HistoryOptions{Persister: store})
	rel := progress.Release{ArtistID: "ar-9", ReleaseFolder: "Live", SlotID: 1}
	h.RecordTransition(ctx, rel, progress.StateIdle, progress.StateStarting)
	h.RecordTransition(ctx, rel, progress.StateStarting, progress.StateProcessing)
	h.RecordResult(ctx, rel, progress.Result{Outcome: progress.OutcomeNotFound})
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	restored := progress.NewHistory(progress.HistoryOptions{})
	restored.Rehydrate(entries)
	got, ok := restored.ForRelease("ar-9", "Live")
	if !ok {
		t.Fatal("expected rehydrated entry")
	}
	if !got.Finished || got.Outcome != progress.OutcomeNotFound {
		t.Fatalf("unexpected rehydrated entry: %+v", got)
	}
	if len(got.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(got.Transitions))
	}
	if recent := restored.Recent(10); len(recent) != 1 {
		t.Fatalf("expected finished entry in recent feed, got %d", len(recent))
	}
}

func TestPruneFinishedKeepsActiveEntries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-72 * time.Hour)
	for _, entry := range []progress.Entry{
		{Timestamp: old, ArtistID: "a", ReleaseFolder: "done", Finished: true},
		{Timestamp: old, ArtistID: "a", ReleaseFolder: "running"},
		{Timestamp: time.Now(), ArtistID: "a", ReleaseFolder: "fresh", Finished: true},
	} {
		if err := store.SaveEntry(ctx, entry); err != nil {
			t.Fatalf("SaveEntry: %v", err)
		}
	}
	removed, err := store.PruneFinished(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	loaded, _ := store.LoadAll(ctx)
	if len(loaded) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", len(loaded))
	}
}

func TestNewerSchemaIsRefused(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion+1)); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := OpenPath(dbPath); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOlderSchemaIsRebuilt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	legacy, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	for _, stmt := range []string{
		"CREATE TABLE history_entries (release_key TEXT PRIMARY KEY, note TEXT)",
		"INSERT INTO history_entries VALUES ('ar-1/Album', 'old')",
	} {
		if _, err := legacy.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	_ = legacy.Close()

	store, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer store.Close()
	var rows int
	if err := store.db.QueryRow("SELECT COUNT(provider_used) FROM history_entries").Scan(&rows); err != nil {
		t.Fatalf("expected rebuilt table: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected legacy rows dropped, got %d", rows)
	}
	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil || version != schemaVersion {
		t.Fatalf("user_version = %d (%v), want %d", version, err, schemaVersion)
	}
}
