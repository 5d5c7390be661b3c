package progress

import (
	"strconv"
	"sync"
	"time"

	"cratedig/internal/events"
)

// Status is the acquisition status of a release in a slot.
type Status string

const (
	StatusSearching   Status = "searching"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Progress is the live state of one release in one slot.
type Progress struct {
	SlotID               int       `json:"slot_id"`
	ArtistID             string    `json:"artist_id"`
	ReleaseFolder        string    `json:"release_folder"`
	ArtistName           string    `json:"artist_name,omitempty"`
	ReleaseTitle         string    `json:"release_title,omitempty"`
	Status               Status    `json:"status"`
	TotalTracks          int       `json:"total_tracks"`
	CompletedTracks      int       `json:"completed_tracks"`
	CurrentProvider      string    `json:"current_provider,omitempty"`
	CurrentProviderIndex int       `json:"current_provider_index,omitempty"`
	TotalProviders       int       `json:"total_providers,omitempty"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Progress event types.
const (
	EventUpdated = "progress.updated"
	EventCleared = "progress.cleared"
)

// Tracker owns the live progress map.
type Tracker struct {
	mu        sync.RWMutex
	bySlot    map[int]Progress
	publisher events.Publisher
	now       func() time.Time
}

// NewTracker constructs a tracker publishing to publisher (which may be nil).
func NewTracker(publisher events.Publisher) *Tracker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Tracker{
		bySlot:    make(map[int]Progress),
		publisher: publisher,
		now:       time.Now,
	}
}

// Topic returns the event topic for a slot.
func Topic(slotID int) string {
	return events.TopicProgressPrefix + strconv.Itoa(slotID)
}

// Begin installs fresh progress for a slot in the searching state.
func (t *Tracker) Begin(slotID int, artistID, folder, artistName, title string) Progress {
	p := Progress{
		SlotID:        slotID,
		ArtistID:      artistID,
		ReleaseFolder: folder,
		ArtistName:    artistName,
		ReleaseTitle:  title,
		Status:        StatusSearching,
		UpdatedAt:     t.now().UTC(),
	}
	t.mu.Lock()
	t.bySlot[slotID] = p
	t.mu.Unlock()
	t.publisher.Publish(Topic(slotID), EventUpdated, p)
	return p
}

// Update applies mutate to a copy of the slot's progress and swaps it in. It
// is a no-op when the slot has no progress.
func (t *Tracker) Update(slotID int, mutate func(*Progress)) (Progress, bool) {
	t.mu.Lock()
	current, ok := t.bySlot[slotID]
	if !ok {
		t.mu.Unlock()
		return Progress{}, false
	}
	next := current
	mutate(&next)
	next.UpdatedAt = t.now().UTC()
	t.bySlot[slotID] = next
	t.mu.Unlock()
	t.publisher.Publish(Topic(slotID), EventUpdated, next)
	return next, true
}

// Clear removes a slot's progress.
func (t *Tracker) Clear(slotID int) {
	t.mu.Lock()
	_, ok := t.bySlot[slotID]
	delete(t.bySlot, slotID)
	t.mu.Unlock()
	if ok {
		t.publisher.Publish(Topic(slotID), EventCleared, map[string]int{"slot_id": slotID})
	}
}

// Get returns the progress of one slot.
func (t *Tracker) Get(slotID int) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.bySlot[slotID]
	return p, ok
}

// All returns a copy of every slot's progress.
func (t *Tracker) All() map[int]Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]Progress, len(t.bySlot))
	for id, p := range t.bySlot {
		out[id] = p
	}
	return out
}
