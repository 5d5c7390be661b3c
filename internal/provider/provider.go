package provider

import (
	"context"
	"fmt"
	"strings"

	"cratedig/internal/ranking"
)

// Reporter receives progress callbacks while a chain runs.
type Reporter interface {
	Searching()
	Downloading(total int)
	TrackCompleted(index int)
	ProviderAttempt(name string, index, total int)
	Log(line string)
}

// Request describes one release to acquire.
type Request struct {
	ArtistID       string
	ReleaseFolder  string
	ArtistName     string
	ReleaseTitle   string
	TargetDir      string
	Year           string
	ExpectedTracks int
	Reporter       Reporter
}

func (r Request) reporter() Reporter {
	if r.Reporter == nil {
		return nopReporter{}
	}
	return r.Reporter
}

func (r Request) logf(format string, args ...any) {
	r.reporter().Log(fmt.Sprintf(format, args...))
}

// Outcome is the result of one acquisition attempt. A chain that found
// nothing returns Acquired=false with a Reason rather than an error.
type Outcome struct {
	Acquired  bool
	Provider  string
	Candidate string
	Tracks    int
	Reason    string
}

// Provider is one acquisition chain.
type Provider interface {
	Name() string
	Enabled() bool
	TryAcquire(ctx context.Context, req Request) (Outcome, error)
}

// P2PClient is the peer-to-peer transport.
type P2PClient interface {
	Connected(ctx context.Context) (bool, error)
	Connect(ctx context.Context) error
	Search(ctx context.Context, query string) ([]ranking.P2PResponse, error)
	Download(ctx context.Context, username string, file ranking.P2PFile, localPath string) error
}

// IndexerClient is the indexer aggregator transport.
type IndexerClient interface {
	Ping(ctx context.Context) error
	Search(ctx context.Context, query string, categories, indexerIDs []int) ([]ranking.IndexerCandidate, error)
	Fetch(ctx context.Context, link string) ([]byte, error)
}

// UsenetClient accepts NZB uploads.
type UsenetClient interface {
	UploadNZB(ctx context.Context, data []byte, name, destination string) error
}

// TorrentClient accepts magnet and .torrent hand-offs.
type TorrentClient interface {
	AddMagnet(ctx context.Context, uri, destination string) error
	AddByURL(ctx context.Context, link, destination string) error
}

type nopReporter struct{}

func (nopReporter) Searching()                       {}
func (nopReporter) Downloading(int)                  {}
func (nopReporter) TrackCompleted(int)               {}
func (nopReporter) ProviderAttempt(string, int, int) {}
func (nopReporter) Log(string)                       {}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.Join(strings.Fields(v), " ")
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
