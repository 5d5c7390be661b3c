package api

import (
	"encoding/json"
	"testing"
	"time"

	"cratedig/internal/events"
	"cratedig/internal/progress"
	"cratedig/internal/queue"
	"cratedig/internal/slots"
)

func TestFromSlotViewIncludesCurrentAndProgress(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	view := slots.SlotView{
		ID:      2,
		Active:  true,
		Working: true,
		State:   progress.StateProcessing,
		Current: &queue.Item{ArtistID: "a1", ReleaseFolder: "Album (2001)", QueueKey: "k1"},
		Progress: &progress.Progress{
			Status:          progress.StatusDownloading,
			TotalTracks:     10,
			CompletedTracks: 4,
			CurrentProvider: "soulseek",
		},
		StartedAt: started,
	}

	dto := FromSlotView(view)
	if dto.State != "processing" {
		t.Fatalf("unexpected state %q", dto.State)
	}
	if dto.Current == nil || dto.Current.QueueKey != "k1" || dto.Current.ReleaseFolder != "Album (2001)" {
		t.Fatalf("unexpected current %+v", dto.Current)
	}
	if dto.Progress == nil || dto.Progress.CompletedTracks != 4 || dto.Progress.Status != "downloading" {
		t.Fatalf("unexpected progress %+v", dto.Progress)
	}
	if dto.StartedAt != "2024-05-01T12:00:00.000Z" {
		t.Fatalf("unexpected startedAt %q", dto.StartedAt)
	}
	if dto.LastActivityAt != "" {
		t.Fatalf("zero time should be omitted, got %q", dto.LastActivityAt)
	}
}

func TestFromEnqueueResultsPairsItems(t *testing.T) {
	items := []queue.Item{
		{ArtistID: "a1", ReleaseFolder: "One"},
		{ArtistID: "a1", ReleaseFolder: "One"},
	}
	results := []queue.EnqueueResult{
		{Accepted: true, QueueKey: "k1"},
		{Reason: queue.ReasonDuplicate},
	}
	out := FromEnqueueResults(items, results)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if !out[0].Accepted || out[0].QueueKey != "k1" || out[0].ArtistID != "a1" {
		t.Fatalf("unexpected first result %+v", out[0])
	}
	if out[1].Accepted || out[1].Reason != "duplicate" {
		t.Fatalf("unexpected second result %+v", out[1])
	}
}

func TestFromHistoryEntryConvertsDurations(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := progress.Entry{
		Timestamp:     at,
		ArtistID:      "a1",
		ReleaseFolder: "One",
		Finished:      true,
		Outcome:       "not_found",
		TotalDuration: 1500 * time.Millisecond,
		Transitions: []progress.Transition{
			{From: progress.StateIdle, To: progress.StateStarting, At: at},
			{From: progress.StateStarting, To: progress.StateProcessing, At: at.Add(time.Second), Duration: time.Second},
		},
	}
	dto := FromHistoryEntry(entry)
	if dto.TotalMs != 1500 {
		t.Fatalf("expected 1500ms, got %d", dto.TotalMs)
	}
	if len(dto.Transitions) != 2 || dto.Transitions[1].DurationMs != 1000 || dto.Transitions[1].To != "processing" {
		t.Fatalf("unexpected transitions %+v", dto.Transitions)
	}
}

func TestFromEventEncodesData(t *testing.T) {
	evt := events.Event{Sequence: 7, Topic: events.TopicQueue, Type: "queue.enqueued", Data: map[string]any{"length": 3}}
	dto := FromEvent(evt)
	var data map[string]int
	if err := json.Unmarshal(dto.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if dto.Sequence != 7 || data["length"] != 3 {
		t.Fatalf("unexpected event %+v", dto)
	}
}

func TestToQueueItemTrims(t *testing.T) {
	item := QueueItem{ArtistID: " a1 ", ReleaseFolder: " One ", QueueKey: "ignored", Force: true}.ToQueueItem()
	if item.ArtistID != "a1" || item.ReleaseFolder != "One" || item.QueueKey != "" || !item.Force {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestParseTimeRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC)
	if got := ParseTime(FormatTime(at)); !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}
	if !ParseTime("garbage").IsZero() {
		t.Fatal("malformed time should be zero")
	}
}
