package main

import (
	"encoding/json"
	"strings"
	"testing"

	"cratedig/internal/api"
)

func TestQueueAddListRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "queue", "add", "a1", "Blue Train", "--artist-name", "John Coltrane", "--year", "1957")
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "queued")

	out, _, err = env.run(t, "queue", "add", "a1", "Blue Train")
	if err != nil {
		t.Fatalf("duplicate queue add: %v", err)
	}
	requireContains(t, out, "rejected: duplicate")

	out, _, err = env.run(t, "--json", "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var snap api.QueueSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode queue list: %v\n%s", err, out)
	}
	if snap.Length != 1 || len(snap.Items) != 1 || snap.Items[0].ArtistName != "John Coltrane" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	out, _, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list table: %v", err)
	}
	requireContains(t, out, "1 queued")
	requireContains(t, out, "John Coltrane")

	key := snap.Items[0].QueueKey
	out, _, err = env.run(t, "queue", "remove", key)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed "+key)

	_, _, err = env.run(t, "queue", "remove", key)
	if err == nil || !strings.Contains(err.Error(), "not queued") {
		t.Fatalf("expected not queued error, got %v", err)
	}

	out, _, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list empty: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueAddFromStdinAndClearArtist(t *testing.T) {
	env := setupCLITestEnv(t)

	batch := `[{"artistId":"a2","releaseFolder":"One"},{"artistId":"a2","releaseFolder":"Two"},{"artistId":"a3","releaseFolder":"Three"}]`
	flags := []string{"--config", env.configPath, "--api", env.apiAddress}
	out, _, err := runCLI(t, append(flags, "queue", "add", "--file", "-"), batch)
	if err != nil {
		t.Fatalf("queue add --file -: %v", err)
	}
	if strings.Count(out, "queued") != 3 {
		t.Fatalf("expected three accepted rows:\n%s", out)
	}

	out, _, err = env.run(t, "queue", "clear-artist", "a2")
	if err != nil {
		t.Fatalf("clear-artist: %v", err)
	}
	requireContains(t, out, "Removed 2 queued")

	if snap := env.daemon.QueueSnapshot(0); snap.Length != 1 || snap.Items[0].ArtistID != "a3" {
		t.Fatalf("unexpected queue after clear-artist: %+v", snap)
	}

	out, _, err = env.run(t, "cancel", "a9")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Nothing to cancel")
}

func TestQueueAddRequiresArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "queue", "add", "only-artist"); err == nil {
		t.Fatal("expected argument error")
	}
}

func TestEnqueueRows(t *testing.T) {
	rows := enqueueRows([]api.EnqueueResult{
		{ArtistID: "a1", ReleaseFolder: "One", Accepted: true, QueueKey: "k1"},
		{ArtistID: "a1", ReleaseFolder: "Two", Reason: "capacity"},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][2] != "queued" || rows[0][3] != "k1" {
		t.Fatalf("unexpected accepted row: %v", rows[0])
	}
	if rows[1][2] != "rejected: capacity" {
		t.Fatalf("unexpected rejected row: %v", rows[1])
	}
}

func TestQueueRowsFallBackToIdentifiers(t *testing.T) {
	rows := queueRows([]api.QueueItem{
		{ArtistID: "a1", ReleaseFolder: "Folder", Force: true},
		{ArtistID: "a2", ArtistName: "Name", ReleaseFolder: "F2", ReleaseTitle: "Title"},
	})
	if rows[0][0] != "1" || rows[0][1] != "a1" || rows[0][2] != "Folder" || rows[0][4] != "yes" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1][1] != "Name" || rows[1][2] != "Title" || rows[1][4] != "no" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}
}
