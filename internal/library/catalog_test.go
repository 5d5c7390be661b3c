package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cratedig/internal/services"
)

func TestCatalogPersistsStatusAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	catalog, err := NewCatalog(path, nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	ctx := context.Background()
	if err := catalog.Upsert(Release{ArtistID: "ar-1", Folder: "Album X", ArtistName: "ArtistA", Title: "Album X", TrackCount: 3}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := catalog.UpdateTrackAvailability(ctx, "AR-1", "album x", 2, TrackDownloading); err != nil {
		t.Fatalf("UpdateTrackAvailability: %v", err)
	}
	if err := catalog.UpdateDownloadStatus(ctx, "ar-1", "Album X", StatusDownloading); err != nil {
		t.Fatalf("UpdateDownloadStatus: %v", err)
	}

	reloaded, err := NewCatalog(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	rec, ok := reloaded.Record("ar-1", "Album X")
	if !ok {
		t.Fatal("expected record after reload")
	}
	if rec.DownloadStatus != StatusDownloading {
		t.Fatalf("status = %q", rec.DownloadStatus)
	}
	want := []TrackStatus{TrackMissing, TrackDownloading, TrackMissing}
	if len(rec.Tracks) != len(want) {
		t.Fatalf("tracks = %v", rec.Tracks)
	}
	for i := range want {
		if rec.Tracks[i] != want[i] {
			t.Fatalf("track %d = %q, want %q", i+1, rec.Tracks[i], want[i])
		}
	}
}

func TestDownloadedMarksEveryTrackAvailable(t *testing.T) {
	catalog, _ := NewCatalog("", nil)
	ctx := context.Background()
	_ = catalog.Upsert(Release{ArtistID: "a", Folder: "f", TrackCount: 2})
	if err := catalog.UpdateDownloadStatus(ctx, "a", "f", StatusDownloaded); err != nil {
		t.Fatalf("UpdateDownloadStatus: %v", err)
	}
	rec, _ := catalog.Record("a", "f")
	for i, status := range rec.Tracks {
		if status != TrackAvailable {
			t.Fatalf("track %d = %q", i+1, status)
		}
	}
}

func TestUnknownReleaseIsNotFound(t *testing.T) {
	catalog, _ := NewCatalog("", nil)
	ctx := context.Background()
	if _, err := catalog.GetRelease(ctx, "missing", "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("GetRelease err = %v", err)
	}
	if err := catalog.UpdateDownloadStatus(ctx, "missing", "x", StatusFailed); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("UpdateDownloadStatus err = %v", err)
	}
	if err := catalog.UpdateTrackAvailability(ctx, "missing", "x", 0, TrackAvailable); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for index 0, got %v", err)
	}
}

func TestTrackIndexBeyondCountGrowsList(t *testing.T) {
	catalog, _ := NewCatalog("", nil)
	_ = catalog.Upsert(Release{ArtistID: "a", Folder: "f"})
	if err := catalog.UpdateTrackAvailability(context.Background(), "a", "f", 4, TrackAvailable); err != nil {
		t.Fatalf("UpdateTrackAvailability: %v", err)
	}
	rec, _ := catalog.Record("a", "f")
	if len(rec.Tracks) != 4 || rec.Tracks[3] != TrackAvailable {
		t.Fatalf("tracks = %v", rec.Tracks)
	}
}
