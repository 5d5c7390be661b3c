package library

import (
	"context"
	"strings"
)

// DownloadStatus is the acquisition state of a release as seen by the library.
type DownloadStatus string

const (
	StatusWanted      DownloadStatus = "wanted"
	StatusQueued      DownloadStatus = "queued"
	StatusSearching   DownloadStatus = "searching"
	StatusDownloading DownloadStatus = "downloading"
	StatusDownloaded  DownloadStatus = "downloaded"
	StatusFailed      DownloadStatus = "failed"
	StatusNotFound    DownloadStatus = "not_found"
	StatusCancelled   DownloadStatus = "cancelled"
)

// TrackStatus is the availability of a single track.
type TrackStatus string

const (
	TrackMissing     TrackStatus = "missing"
	TrackDownloading TrackStatus = "downloading"
	TrackProcessing  TrackStatus = "processing"
	TrackAvailable   TrackStatus = "available"
)

// Release is the metadata the engine needs about one release.
type Release struct {
	ArtistID    string `json:"artist_id"`
	Folder      string `json:"folder"`
	ArtistName  string `json:"artist_name"`
	Title       string `json:"title"`
	Year        string `json:"year,omitempty"`
	TrackCount  int    `json:"track_count"`
	ReleasePath string `json:"release_path,omitempty"`
}

// Key returns the case-insensitive identity of the release.
func (r Release) Key() string {
	return ReleaseKey(r.ArtistID, r.Folder)
}

// ReleaseKey returns the case-insensitive identity of artistID/folder.
func ReleaseKey(artistID, folder string) string {
	return strings.ToLower(strings.TrimSpace(artistID)) + "|" + strings.ToLower(strings.TrimSpace(folder))
}

// Metadata is the lookup and status contract consumed by the engine.
type Metadata interface {
	GetRelease(ctx context.Context, artistID, folder string) (Release, error)
	UpdateDownloadStatus(ctx context.Context, artistID, folder string, status DownloadStatus) error
	UpdateTrackAvailability(ctx context.Context, artistID, folder string, trackIndex int, status TrackStatus) error
}
