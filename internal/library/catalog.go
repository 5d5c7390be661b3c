package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"cratedig/internal/fileutil"
	"cratedig/internal/logging"
	"cratedig/internal/services"
)

// Record is a catalog row: release metadata plus acquisition state.
type Record struct {
	Release
	DownloadStatus DownloadStatus `json:"download_status"`
	Tracks         []TrackStatus  `json:"tracks,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Catalog is a Metadata implementation persisted as a JSON file.
type Catalog struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

var _ Metadata = (*Catalog)(nil)

// NewCatalog loads the catalog at path. An empty path yields an in-memory
// catalog that never touches disk.
func NewCatalog(path string, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		path:    strings.TrimSpace(path),
		logger:  logging.NewComponentLogger(logger, "library"),
		records: make(map[string]Record),
		now:     time.Now,
	}
	if c.path == "" {
		return c, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Upsert adds or replaces release metadata, keeping existing status fields.
func (c *Catalog) Upsert(rel Release) error {
	rel.ArtistID = strings.TrimSpace(rel.ArtistID)
	rel.Folder = strings.TrimSpace(rel.Folder)
	if rel.ArtistID == "" || rel.Folder == "" {
		return services.Wrap(services.ErrValidation, "library", "upsert", "artist id and folder are required", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[rel.Key()]
	if !ok {
		rec.DownloadStatus = StatusWanted
	}
	rec.Release = rel
	rec.Tracks = resizeTracks(rec.Tracks, rel.TrackCount)
	rec.UpdatedAt = c.now().UTC()
	c.records[rel.Key()] = rec
	return c.saveLocked()
}

// GetRelease returns release metadata or an ErrNotFound-marked error.
func (c *Catalog) GetRelease(_ context.Context, artistID, folder string) (Release, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[ReleaseKey(artistID, folder)]
	if !ok {
		return Release{}, services.Wrap(services.ErrNotFound, "library", "get release",
			fmt.Sprintf("%s/%s not in catalog", artistID, folder), nil)
	}
	return rec.Release, nil
}

// Record returns the full catalog row.
func (c *Catalog) Record(artistID, folder string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[ReleaseKey(artistID, folder)]
	if ok {
		rec.Tracks = append([]TrackStatus(nil), rec.Tracks...)
	}
	return rec, ok
}

// UpdateDownloadStatus records the acquisition status of a release.
func (c *Catalog) UpdateDownloadStatus(_ context.Context, artistID, folder string, status DownloadStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := ReleaseKey(artistID, folder)
	rec, ok := c.records[key]
	if !ok {
		return services.Wrap(services.ErrNotFound, "library", "update download status",
			fmt.Sprintf("%s/%s not in catalog", artistID, folder), nil)
	}
	rec.DownloadStatus = status
	if status == StatusDownloaded {
		for i := range rec.Tracks {
			rec.Tracks[i] = TrackAvailable
		}
	}
	rec.UpdatedAt = c.now().UTC()
	c.records[key] = rec
	return c.saveLocked()
}

// UpdateTrackAvailability records the status of track trackIndex (1-based).
// Tracks beyond the known count grow the track list.
func (c *Catalog) UpdateTrackAvailability(_ context.Context, artistID, folder string, trackIndex int, status TrackStatus) error {
	if trackIndex < 1 {
		return services.Wrap(services.ErrValidation, "library", "update track availability",
			fmt.Sprintf("track index %d out of range", trackIndex), nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := ReleaseKey(artistID, folder)
	rec, ok := c.records[key]
	if !ok {
		return services.Wrap(services.ErrNotFound, "library", "update track availability",
			fmt.Sprintf("%s/%s not in catalog", artistID, folder), nil)
	}
	if trackIndex > len(rec.Tracks) {
		rec.Tracks = resizeTracks(rec.Tracks, trackIndex)
	}
	rec.Tracks[trackIndex-1] = status
	rec.UpdatedAt = c.now().UTC()
	c.records[key] = rec
	return c.saveLocked()
}

// List returns every record sorted by artist name then title.
func (c *Catalog) List() []Record {
	c.mu.RLock()
	out := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		rec.Tracks = append([]TrackStatus(nil), rec.Tracks...)
		out = append(out, rec)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArtistName != out[j].ArtistName {
			return out[i].ArtistName < out[j].ArtistName
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func resizeTracks(tracks []TrackStatus, count int) []TrackStatus {
	if count <= len(tracks) {
		return tracks
	}
	for len(tracks) < count {
		tracks = append(tracks, TrackMissing)
	}
	return tracks
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read catalog file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}
	for _, rec := range records {
		if strings.TrimSpace(rec.ArtistID) == "" || strings.TrimSpace(rec.Folder) == "" {
			continue
		}
		c.records[rec.Key()] = rec
	}
	c.logger.Debug("loaded release catalog",
		logging.Int("release_count", len(c.records)),
		logging.String("path", c.path))
	return nil
}

func (c *Catalog) saveLocked() error {
	if c.path == "" {
		return nil
	}
	records := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key() < records[j].Key()
	})
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	return nil
}
