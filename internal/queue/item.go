package queue

import (
	"strings"
	"time"
)

// Item is one release waiting for a slot.
type Item struct {
	ArtistID       string    `json:"artist_id"`
	ReleaseFolder  string    `json:"release_folder"`
	ArtistName     string    `json:"artist_name,omitempty"`
	ReleaseTitle   string    `json:"release_title,omitempty"`
	Year           string    `json:"year,omitempty"`
	ExpectedTracks int       `json:"expected_tracks,omitempty"`
	QueueKey       string    `json:"queue_key"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
	// Force bypasses the failure cooldown.
	Force bool `json:"force,omitempty"`
}

// DedupeKey returns the canonical membership key for the item.
func (i Item) DedupeKey() string {
	return DedupeKey(i.ArtistID, i.ReleaseFolder)
}

// SameRelease reports whether two items address the same release.
func (i Item) SameRelease(other Item) bool {
	return i.DedupeKey() == other.DedupeKey()
}

// Label returns a human-readable name for logs.
func (i Item) Label() string {
	artist := strings.TrimSpace(i.ArtistName)
	if artist == "" {
		artist = i.ArtistID
	}
	title := strings.TrimSpace(i.ReleaseTitle)
	if title == "" {
		title = i.ReleaseFolder
	}
	return artist + " - " + title
}

// DedupeKey returns "dl|{artistId}|{folder}" lowercased.
func DedupeKey(artistID, folder string) string {
	return strings.ToLower("dl|" + strings.TrimSpace(artistID) + "|" + strings.TrimSpace(folder))
}

// Reason explains why an enqueue was refused.
type Reason string

const (
	ReasonDuplicate Reason = "duplicate"
	ReasonCapacity  Reason = "capacity"
	ReasonInvalid   Reason = "invalid"
	ReasonCooldown  Reason = "cooldown"
)

// EnqueueResult reports the outcome for one item.
type EnqueueResult struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	QueueKey string `json:"queue_key,omitempty"`
}

// Snapshot is a read-only view of the queue head.
type Snapshot struct {
	Length   int    `json:"length"`
	InFlight int    `json:"in_flight"`
	Capacity int    `json:"capacity"`
	Items    []Item `json:"items"`
}
