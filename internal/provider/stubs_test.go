package provider

import (
	"context"
	"fmt"
	"sync"

	"cratedig/internal/library"
	"cratedig/internal/ranking"
)

type recordingReporter struct {
	mu        sync.Mutex
	events    []string
	total     int
	completed int
	lines     []string
}

func (r *recordingReporter) Searching() { r.add("searching") }

func (r *recordingReporter) Downloading(total int) {
	r.mu.Lock()
	r.total = total
	r.completed = 0
	r.mu.Unlock()
	r.add(fmt.Sprintf("downloading:%d", total))
}

func (r *recordingReporter) TrackCompleted(index int) {
	r.mu.Lock()
	if index > r.completed {
		r.completed = index
	}
	r.mu.Unlock()
}

func (r *recordingReporter) ProviderAttempt(name string, index, total int) {
	r.add(fmt.Sprintf("attempt:%s:%d/%d", name, index, total))
}

func (r *recordingReporter) Log(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *recordingReporter) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type stubP2P struct {
	connected  bool
	connectErr error
	connects   int
	responses  map[string][]ranking.P2PResponse
	queries    []string
	failFile   map[string]bool
	downloads  []string
	onDownload func(ctx context.Context) error
}

func (s *stubP2P) Connected(context.Context) (bool, error) { return s.connected, nil }

func (s *stubP2P) Connect(context.Context) error {
	s.connects++
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *stubP2P) Search(_ context.Context, query string) ([]ranking.P2PResponse, error) {
	s.queries = append(s.queries, query)
	return s.responses[query], nil
}

func (s *stubP2P) Download(ctx context.Context, username string, file ranking.P2PFile, localPath string) error {
	if s.onDownload != nil {
		if err := s.onDownload(ctx); err != nil {
			return err
		}
	}
	key := username + ":" + file.Filename
	s.downloads = append(s.downloads, key)
	if s.failFile[key] {
		return fmt.Errorf("transfer rejected")
	}
	return nil
}

type stubIndexer struct {
	pingErr   error
	results   map[string][]ranking.IndexerCandidate
	errs      map[string][]error
	queries   []string
	payloads  map[string][]byte
	fetchErrs map[string]error
}

func (s *stubIndexer) Ping(context.Context) error { return s.pingErr }

func (s *stubIndexer) Search(_ context.Context, query string, _, _ []int) ([]ranking.IndexerCandidate, error) {
	s.queries = append(s.queries, query)
	if queued := s.errs[query]; len(queued) > 0 {
		err := queued[0]
		s.errs[query] = queued[1:]
		return nil, err
	}
	return s.results[query], nil
}

func (s *stubIndexer) Fetch(_ context.Context, link string) ([]byte, error) {
	if err := s.fetchErrs[link]; err != nil {
		return nil, err
	}
	data, ok := s.payloads[link]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", link)
	}
	return data, nil
}

type upload struct {
	name        string
	destination string
}

type stubUsenet struct {
	uploads []upload
	err     error
}

func (s *stubUsenet) UploadNZB(_ context.Context, _ []byte, name, destination string) error {
	if s.err != nil {
		return s.err
	}
	s.uploads = append(s.uploads, upload{name: name, destination: destination})
	return nil
}

type stubTorrent struct {
	magnets []upload
	urls    []upload
}

func (s *stubTorrent) AddMagnet(_ context.Context, uri, destination string) error {
	s.magnets = append(s.magnets, upload{name: uri, destination: destination})
	return nil
}

func (s *stubTorrent) AddByURL(_ context.Context, link, destination string) error {
	s.urls = append(s.urls, upload{name: link, destination: destination})
	return nil
}

type trackUpdate struct {
	index  int
	status library.TrackStatus
}

type stubMetadata struct {
	mu      sync.Mutex
	updates []trackUpdate
}

func (s *stubMetadata) GetRelease(context.Context, string, string) (library.Release, error) {
	return library.Release{}, nil
}

func (s *stubMetadata) UpdateDownloadStatus(context.Context, string, string, library.DownloadStatus) error {
	return nil
}

func (s *stubMetadata) UpdateTrackAvailability(_ context.Context, _, _ string, index int, status library.TrackStatus) error {
	s.mu.Lock()
	s.updates = append(s.updates, trackUpdate{index: index, status: status})
	s.mu.Unlock()
	return nil
}

const nzbPayload = `<?xml version="1.0" encoding="UTF-8"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb"><file subject="album"></file></nzb>`
