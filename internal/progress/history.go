package progress

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"cratedig/internal/events"
	"cratedig/internal/logging"
)

// SlotState is a state of the slot state machine.
type SlotState string

const (
	StateIdle       SlotState = "idle"
	StateStarting   SlotState = "starting"
	StateProcessing SlotState = "processing"
	StateCompleted  SlotState = "completed"
	StateError      SlotState = "error"
	StateCancelled  SlotState = "cancelled"
)

// Terminal reports whether the state ends an attempt.
func (s SlotState) Terminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// Outcome values recorded on finished entries.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeNotFound  = "not_found"
	OutcomeCancelled = "cancelled"
)

// Transition is one state change. Duration is the time spent in From.
type Transition struct {
	From     SlotState     `json:"from"`
	To       SlotState     `json:"to"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
}

// Entry is the history of one release attempt.
type Entry struct {
	Timestamp     time.Time     `json:"timestamp"`
	ArtistID      string        `json:"artist_id"`
	ReleaseFolder string        `json:"release_folder"`
	ArtistName    string        `json:"artist_name,omitempty"`
	ReleaseTitle  string        `json:"release_title,omitempty"`
	SlotID        int           `json:"slot_id"`
	Finished      bool          `json:"finished"`
	Success       bool          `json:"success"`
	Outcome       string        `json:"outcome,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ProviderUsed  string        `json:"provider_used,omitempty"`
	TotalDuration time.Duration `json:"total_duration"`
	Transitions   []Transition  `json:"transitions"`
}

// Key returns the keyed-view identity of the entry.
func (e Entry) Key() string {
	return HistoryKey(e.ArtistID, e.ReleaseFolder)
}

func (e Entry) clone() Entry {
	e.Transitions = append([]Transition(nil), e.Transitions...)
	return e
}

// HistoryKey returns the keyed-view identity of a release.
func HistoryKey(artistID, folder string) string {
	return strings.ToLower(strings.TrimSpace(artistID) + "|" + strings.TrimSpace(folder))
}

// Release identifies the release an entry is about.
type Release struct {
	ArtistID      string
	ReleaseFolder string
	ArtistName    string
	ReleaseTitle  string
	SlotID        int
}

// Persister stores finished and in-progress entries durably.
type Persister interface {
	SaveEntry(ctx context.Context, entry Entry) error
}

// History event types.
const (
	EventTransition = "history.transition"
	EventFinished   = "history.finished"
)

// DefaultRingSize bounds the recent feed when no size is configured.
const DefaultRingSize = 200

// History is the transition log plus terminal results.
type History struct {
	mu       sync.RWMutex
	ring     []Entry
	ringSize int
	keyed    map[string]Entry

	persister Persister
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// HistoryOptions configures a History.
type HistoryOptions struct {
	RingSize  int
	Persister Persister
	Publisher events.Publisher
	Logger    *slog.Logger
}

// NewHistory constructs an empty history.
func NewHistory(opts HistoryOptions) *History {
	size := opts.RingSize
	if size <= 0 {
		size = DefaultRingSize
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &History{
		ringSize:  size,
		keyed:     make(map[string]Entry),
		persister: opts.Persister,
		publisher: publisher,
		logger:    logging.NewComponentLogger(opts.Logger, "history"),
		now:       time.Now,
	}
}

// Rehydrate loads previously persisted entries into the keyed view and the
// ring, oldest first.
func (h *History) Rehydrate(entries []Entry) {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, entry := range sorted {
		h.keyed[entry.Key()] = entry.clone()
		if entry.Finished {
			h.pushRingLocked(entry.clone())
		}
	}
}

// RecordTransition appends a state change to the release's current attempt.
// Idle to Starting always opens a new entry, so an attempt interrupted by a
// restart is never merged into the next one.
func (h *History) RecordTransition(ctx context.Context, rel Release, from, to SlotState) {
	at := h.now().UTC()
	key := HistoryKey(rel.ArtistID, rel.ReleaseFolder)

	h.mu.Lock()
	entry, ok := h.keyed[key]
	if !ok || (from == StateIdle && to == StateStarting) {
		entry = Entry{
			Timestamp:     at,
			ArtistID:      rel.ArtistID,
			ReleaseFolder: rel.ReleaseFolder,
		}
	} else {
		entry = entry.clone()
	}
	if rel.ArtistName != "" {
		entry.ArtistName = rel.ArtistName
	}
	if rel.ReleaseTitle != "" {
		entry.ReleaseTitle = rel.ReleaseTitle
	}
	entry.SlotID = rel.SlotID

	var spent time.Duration
	if n := len(entry.Transitions); n > 0 {
		spent = at.Sub(entry.Transitions[n-1].At)
	}
	transition := Transition{From: from, To: to, At: at, Duration: spent}
	entry.Transitions = append(entry.Transitions, transition)
	h.keyed[key] = entry
	snapshot := entry.clone()
	h.mu.Unlock()

	h.publisher.Publish(events.TopicHistory, EventTransition, map[string]any{
		"artist_id":      rel.ArtistID,
		"release_folder": rel.ReleaseFolder,
		"slot_id":        rel.SlotID,
		"transition":     transition,
	})
	h.persist(ctx, snapshot)
}

// Result is the terminal outcome of an attempt.
type Result struct {
	Success      bool
	Outcome      string
	ErrorMessage string
	ProviderUsed string
}

// RecordResult stores the terminal result of the release's current attempt.
// It returns false when the attempt already has a result.
func (h *History) RecordResult(ctx context.Context, rel Release, result Result) bool {
	at := h.now().UTC()
	key := HistoryKey(rel.ArtistID, rel.ReleaseFolder)

	h.mu.Lock()
	entry, ok := h.keyed[key]
	if ok && entry.Finished {
		h.mu.Unlock()
		return false
	}
	if !ok {
		entry = Entry{Timestamp: at, ArtistID: rel.ArtistID, ReleaseFolder: rel.ReleaseFolder}
	} else {
		entry = entry.clone()
	}
	if rel.ArtistName != "" {
		entry.ArtistName = rel.ArtistName
	}
	if rel.ReleaseTitle != "" {
		entry.ReleaseTitle = rel.ReleaseTitle
	}
	entry.Finished = true
	entry.Success = result.Success
	entry.Outcome = result.Outcome
	if entry.Outcome == "" {
		if result.Success {
			entry.Outcome = OutcomeCompleted
		} else {
			entry.Outcome = OutcomeFailed
		}
	}
	entry.ErrorMessage = result.ErrorMessage
	entry.ProviderUsed = result.ProviderUsed
	entry.TotalDuration = at.Sub(entry.Timestamp)
	h.keyed[key] = entry
	h.pushRingLocked(entry.clone())
	snapshot := entry.clone()
	h.mu.Unlock()

	h.publisher.Publish(events.TopicHistory, EventFinished, snapshot)
	h.persist(ctx, snapshot)
	return true
}

func (h *History) pushRingLocked(entry Entry) {
	if len(h.ring) == h.ringSize {
		copy(h.ring, h.ring[1:])
		h.ring = h.ring[:h.ringSize-1]
	}
	h.ring = append(h.ring, entry)
}

func (h *History) persist(ctx context.Context, entry Entry) {
	if h.persister == nil {
		return
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := h.persister.SaveEntry(ctx, entry); err != nil {
		logging.WarnWithContext(h.logger, "history persistence failed", "history_persist_failed",
			logging.String(logging.FieldArtistID, entry.ArtistID),
			logging.String(logging.FieldReleaseFolder, entry.ReleaseFolder),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry survives only until restart"),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
		)
	}
}

// Recent returns up to limit finished entries, newest first.
func (h *History) Recent(limit int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.ring)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(h.ring) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.ring[i].clone())
	}
	return out
}

// ForRelease returns the latest entry of a release.
func (h *History) ForRelease(artistID, folder string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.keyed[HistoryKey(artistID, folder)]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// All returns every keyed entry, newest first.
func (h *History) All() []Entry {
	h.mu.RLock()
	out := make([]Entry, 0, len(h.keyed))
	for _, entry := range h.keyed {
		out = append(out, entry.clone())
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
