package api

import (
	"encoding/json"
	"strings"
	"time"

	"cratedig/internal/events"
	"cratedig/internal/progress"
	"cratedig/internal/queue"
	"cratedig/internal/slots"
)

// FromQueueItem converts a queue item to its API representation.
func FromQueueItem(item queue.Item) QueueItem {
	return QueueItem{
		QueueKey:       item.QueueKey,
		ArtistID:       item.ArtistID,
		ReleaseFolder:  item.ReleaseFolder,
		ArtistName:     item.ArtistName,
		ReleaseTitle:   item.ReleaseTitle,
		Year:           item.Year,
		ExpectedTracks: item.ExpectedTracks,
		Force:          item.Force,
		EnqueuedAt:     FormatTime(item.EnqueuedAt),
	}
}

// ToQueueItem converts a requested release into a queue item. Queue key and
// enqueue time are assigned by the queue.
func (q QueueItem) ToQueueItem() queue.Item {
	return queue.Item{
		ArtistID:       strings.TrimSpace(q.ArtistID),
		ReleaseFolder:  strings.TrimSpace(q.ReleaseFolder),
		ArtistName:     strings.TrimSpace(q.ArtistName),
		ReleaseTitle:   strings.TrimSpace(q.ReleaseTitle),
		Year:           strings.TrimSpace(q.Year),
		ExpectedTracks: q.ExpectedTracks,
		Force:          q.Force,
	}
}

// FromQueueSnapshot converts a queue snapshot.
func FromQueueSnapshot(snap queue.Snapshot) QueueSnapshot {
	items := make([]QueueItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, FromQueueItem(item))
	}
	return QueueSnapshot{
		Length:   snap.Length,
		InFlight: snap.InFlight,
		Capacity: snap.Capacity,
		Items:    items,
	}
}

// FromEnqueueResults pairs each requested item with its result.
func FromEnqueueResults(items []queue.Item, results []queue.EnqueueResult) []EnqueueResult {
	out := make([]EnqueueResult, 0, len(results))
	for i, res := range results {
		dto := EnqueueResult{
			Accepted: res.Accepted,
			Reason:   string(res.Reason),
			QueueKey: res.QueueKey,
		}
		if i < len(items) {
			dto.ArtistID = items[i].ArtistID
			dto.ReleaseFolder = items[i].ReleaseFolder
		}
		out = append(out, dto)
	}
	return out
}

// FromProgress converts live slot progress.
func FromProgress(p progress.Progress) SlotProgress {
	return SlotProgress{
		Status:               string(p.Status),
		TotalTracks:          p.TotalTracks,
		CompletedTracks:      p.CompletedTracks,
		CurrentProvider:      p.CurrentProvider,
		CurrentProviderIndex: p.CurrentProviderIndex,
		TotalProviders:       p.TotalProviders,
		ErrorMessage:         p.ErrorMessage,
		UpdatedAt:            FormatTime(p.UpdatedAt),
	}
}

// FromSlotView converts a slot snapshot.
func FromSlotView(view slots.SlotView) Slot {
	dto := Slot{
		ID:             view.ID,
		Active:         view.Active,
		Working:        view.Working,
		State:          string(view.State),
		StartedAt:      FormatTime(view.StartedAt),
		LastActivityAt: FormatTime(view.LastActivityAt),
	}
	if view.Current != nil {
		current := FromQueueItem(*view.Current)
		dto.Current = &current
	}
	if view.Progress != nil {
		prog := FromProgress(*view.Progress)
		dto.Progress = &prog
	}
	return dto
}

// FromSlotViews converts an ordered slot snapshot.
func FromSlotViews(views []slots.SlotView) []Slot {
	out := make([]Slot, 0, len(views))
	for _, view := range views {
		out = append(out, FromSlotView(view))
	}
	return out
}

// FromHistoryEntry converts a history entry.
func FromHistoryEntry(entry progress.Entry) HistoryEntry {
	transitions := make([]HistoryTransition, 0, len(entry.Transitions))
	for _, tr := range entry.Transitions {
		transitions = append(transitions, HistoryTransition{
			From:       string(tr.From),
			To:         string(tr.To),
			At:         FormatTime(tr.At),
			DurationMs: tr.Duration.Milliseconds(),
		})
	}
	return HistoryEntry{
		ArtistID:      entry.ArtistID,
		ReleaseFolder: entry.ReleaseFolder,
		ArtistName:    entry.ArtistName,
		ReleaseTitle:  entry.ReleaseTitle,
		SlotID:        entry.SlotID,
		Timestamp:     FormatTime(entry.Timestamp),
		Finished:      entry.Finished,
		Success:       entry.Success,
		Outcome:       entry.Outcome,
		ErrorMessage:  entry.ErrorMessage,
		ProviderUsed:  entry.ProviderUsed,
		TotalMs:       entry.TotalDuration.Milliseconds(),
		Transitions:   transitions,
	}
}

// FromHistoryEntries converts a list of history entries, keeping order.
func FromHistoryEntries(entries []progress.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromHistoryEntry(entry))
	}
	return out
}

// FromEvents converts hub events. Event data that cannot be encoded is
// dropped from the payload rather than failing the page.
func FromEvents(evts []events.Event) []Event {
	out := make([]Event, 0, len(evts))
	for _, evt := range evts {
		out = append(out, FromEvent(evt))
	}
	return out
}

// FromEvent converts one hub event.
func FromEvent(evt events.Event) Event {
	dto := Event{
		Sequence:  evt.Sequence,
		Timestamp: FormatTime(evt.Timestamp),
		Topic:     evt.Topic,
		Type:      evt.Type,
	}
	if evt.Data != nil {
		if raw, err := json.Marshal(evt.Data); err == nil {
			dto.Data = raw
		}
	}
	return dto
}

// FormatTime renders t in the API timestamp format, or "" when zero.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp. Empty or malformed values yield the zero
// time.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
