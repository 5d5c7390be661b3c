package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queued release in a transport-friendly format.
type QueueItem struct {
	QueueKey       string `json:"queueKey,omitempty"`
	ArtistID       string `json:"artistId"`
	ReleaseFolder  string `json:"releaseFolder"`
	ArtistName     string `json:"artistName,omitempty"`
	ReleaseTitle   string `json:"releaseTitle,omitempty"`
	Year           string `json:"year,omitempty"`
	ExpectedTracks int    `json:"expectedTracks,omitempty"`
	Force          bool   `json:"force,omitempty"`
	EnqueuedAt     string `json:"enqueuedAt,omitempty"`
}

// QueueSnapshot reports queue occupancy and the head of the queue.
type QueueSnapshot struct {
	Length   int         `json:"length"`
	InFlight int         `json:"inFlight"`
	Capacity int         `json:"capacity"`
	Items    []QueueItem `json:"items"`
}

// EnqueueRequest adds releases to the queue.
type EnqueueRequest struct {
	Items []QueueItem `json:"items"`
}

// EnqueueResult reports the outcome for one requested release.
type EnqueueResult struct {
	ArtistID      string `json:"artistId"`
	ReleaseFolder string `json:"releaseFolder"`
	Accepted      bool   `json:"accepted"`
	Reason        string `json:"reason,omitempty"`
	QueueKey      string `json:"queueKey,omitempty"`
}

// EnqueueResponse carries one result per requested release, in order.
type EnqueueResponse struct {
	Results []EnqueueResult `json:"results"`
}

// RemoveResponse reports whether a queued release was dropped.
type RemoveResponse struct {
	QueueKey string `json:"queueKey"`
	Removed  bool   `json:"removed"`
}

// CancelRequest targets one release, or every release of an artist when
// ReleaseFolder is empty.
type CancelRequest struct {
	ArtistID      string `json:"artistId"`
	ReleaseFolder string `json:"releaseFolder,omitempty"`
}

// CancelResponse counts cancelled in-flight attempts and dropped queue items.
type CancelResponse struct {
	Cancelled int `json:"cancelled"`
	Removed   int `json:"removed"`
}

// SlotProgress is the live progress of the release a slot is working.
type SlotProgress struct {
	Status               string `json:"status"`
	TotalTracks          int    `json:"totalTracks"`
	CompletedTracks      int    `json:"completedTracks"`
	CurrentProvider      string `json:"currentProvider,omitempty"`
	CurrentProviderIndex int    `json:"currentProviderIndex,omitempty"`
	TotalProviders       int    `json:"totalProviders,omitempty"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
	UpdatedAt            string `json:"updatedAt,omitempty"`
}

// Slot describes one worker slot.
type Slot struct {
	ID             int           `json:"id"`
	Active         bool          `json:"active"`
	Working        bool          `json:"working"`
	State          string        `json:"state"`
	Current        *QueueItem    `json:"current,omitempty"`
	Progress       *SlotProgress `json:"progress,omitempty"`
	StartedAt      string        `json:"startedAt,omitempty"`
	LastActivityAt string        `json:"lastActivityAt,omitempty"`
}

// SlotsResponse lists slots ordered by id.
type SlotsResponse struct {
	Desired int    `json:"desired"`
	Slots   []Slot `json:"slots"`
}

// ResizeRequest sets the desired slot count.
type ResizeRequest struct {
	Count int `json:"count"`
}

// HistoryTransition is one slot state change.
type HistoryTransition struct {
	From       string `json:"from"`
	To         string `json:"to"`
	At         string `json:"at"`
	DurationMs int64  `json:"durationMs"`
}

// HistoryEntry is one attempt at a release.
type HistoryEntry struct {
	ArtistID      string              `json:"artistId"`
	ReleaseFolder string              `json:"releaseFolder"`
	ArtistName    string              `json:"artistName,omitempty"`
	ReleaseTitle  string              `json:"releaseTitle,omitempty"`
	SlotID        int                 `json:"slotId"`
	Timestamp     string              `json:"timestamp"`
	Finished      bool                `json:"finished"`
	Success       bool                `json:"success"`
	Outcome       string              `json:"outcome,omitempty"`
	ErrorMessage  string              `json:"errorMessage,omitempty"`
	ProviderUsed  string              `json:"providerUsed,omitempty"`
	TotalMs       int64               `json:"totalMs"`
	Transitions   []HistoryTransition `json:"transitions"`
}

// HistoryResponse lists recent attempts, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ReleaseHistoryResponse is the latest attempt at one release plus the tail
// of its release log.
type ReleaseHistoryResponse struct {
	Entry *HistoryEntry `json:"entry,omitempty"`
	Log   []string      `json:"log,omitempty"`
}

// ProviderStatus reports whether an acquisition chain is usable.
type ProviderStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// QueueCounts summarizes queue occupancy for status output.
type QueueCounts struct {
	Length   int `json:"length"`
	InFlight int `json:"inFlight"`
	Capacity int `json:"capacity"`
}

// SlotCounts summarizes slot usage for status output.
type SlotCounts struct {
	Desired int `json:"desired"`
	Running int `json:"running"`
	Busy    int `json:"busy"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool             `json:"running"`
	PID           int              `json:"pid"`
	StartedAt     string           `json:"startedAt,omitempty"`
	LockFilePath  string           `json:"lockFilePath"`
	HistoryDBPath string           `json:"historyDbPath"`
	Queue         QueueCounts      `json:"queue"`
	Slots         SlotCounts       `json:"slots"`
	Providers     []ProviderStatus `json:"providers"`
	EventsDropped uint64           `json:"eventsDropped"`
}

// Event is one hub event.
type Event struct {
	Sequence  uint64          `json:"seq"`
	Timestamp string          `json:"ts"`
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventsResponse is a page of events. Next is the cursor for the following
// request.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// NotifyResponse reports the result of a test notification.
type NotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
