package provider

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"cratedig/internal/config"
	"cratedig/internal/library"
	"cratedig/internal/logging"
	"cratedig/internal/ranking"
	"cratedig/internal/textmatch"
)

// P2POptions configures a P2PChain.
type P2POptions struct {
	Client   P2PClient
	Metadata library.Metadata
	Logger   *slog.Logger
	Enabled  bool
	// MaxCandidates bounds how many ranked peers are tried. Zero tries all.
	MaxCandidates int
}

// P2PChain acquires releases from a Soulseek client.
type P2PChain struct {
	client        P2PClient
	metadata      library.Metadata
	logger        *slog.Logger
	enabled       bool
	maxCandidates int
}

// NewP2PChain constructs the chain.
func NewP2PChain(opts P2POptions) *P2PChain {
	return &P2PChain{
		client:        opts.Client,
		metadata:      opts.Metadata,
		logger:        logging.NewComponentLogger(opts.Logger, "p2p"),
		enabled:       opts.Enabled,
		maxCandidates: opts.MaxCandidates,
	}
}

// Name identifies the chain in configuration and history.
func (c *P2PChain) Name() string { return config.ProviderSoulseek }

// Enabled reports whether the chain has a usable client.
func (c *P2PChain) Enabled() bool { return c.enabled && c.client != nil }

// TryAcquire searches, ranks, and downloads the best candidate.
func (c *P2PChain) TryAcquire(ctx context.Context, req Request) (Outcome, error) {
	rep := req.reporter()
	logger := logging.WithContext(ctx, c.logger)
	rep.Searching()

	if err := c.ensureConnected(ctx); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		req.logf("soulseek: client offline: %v", err)
		logging.WarnWithContext(logger, "soulseek client offline", "p2p_offline",
			logging.Error(err),
			logging.String(logging.FieldImpact, "soulseek skipped for this release"),
			logging.String(logging.FieldErrorHint, "check the slskd service and its API key"),
		)
		return Outcome{Reason: "soulseek client offline"}, nil
	}

	ranked, query, err := c.search(ctx, req, logger)
	if err != nil {
		return Outcome{}, err
	}
	if len(ranked) == 0 {
		req.logf("soulseek: no qualifying candidates")
		return Outcome{Reason: "no qualifying soulseek candidates"}, nil
	}
	req.logf("soulseek: %d candidates for %q, best %s (score %d)",
		len(ranked), query, ranked[0].Response.Username, ranked[0].Score)

	limit := len(ranked)
	if c.maxCandidates > 0 && c.maxCandidates < limit {
		limit = c.maxCandidates
	}
	for i := 0; i < limit; i++ {
		candidate := ranked[i]
		ok, err := c.download(ctx, req, candidate, logger)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			logger.Info("soulseek release downloaded",
				logging.String(logging.FieldEventType, "p2p_download_complete"),
				logging.String("peer", candidate.Response.Username),
				logging.Int("tracks", len(candidate.Files)),
			)
			return Outcome{
				Acquired:  true,
				Provider:  c.Name(),
				Candidate: candidate.Response.Username,
				Tracks:    len(candidate.Files),
			}, nil
		}
	}
	return Outcome{Reason: fmt.Sprintf("all %d soulseek candidates failed", limit)}, nil
}

func (c *P2PChain) ensureConnected(ctx context.Context) error {
	connected, err := c.client.Connected(ctx)
	if err == nil && connected {
		return nil
	}
	return c.client.Connect(ctx)
}

// search runs query variants until one yields a non-empty ranked list.
func (c *P2PChain) search(ctx context.Context, req Request, logger *slog.Logger) ([]ranking.RankedResponse, string, error) {
	for _, query := range P2PQueries(req.ArtistName, req.ReleaseTitle, req.Year) {
		responses, err := c.client.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			req.logf("soulseek: search %q failed: %v", query, err)
			logger.Debug("soulseek search failed",
				logging.String(logging.FieldEventType, "p2p_search_failed"),
				logging.String("query", query),
				logging.Error(err),
			)
			continue
		}
		ranked := ranking.RankP2P(responses, req.ArtistName, req.ReleaseTitle, req.Year, req.ExpectedTracks)
		logger.Debug("soulseek search ranked",
			logging.String(logging.FieldEventType, "p2p_search_ranked"),
			logging.String("query", query),
			logging.Int("responses", len(responses)),
			logging.Int("qualifying", len(ranked)),
		)
		if len(ranked) > 0 {
			return ranked, query, nil
		}
	}
	return nil, "", nil
}

// download fetches every file of the candidate in listing order. A failed
// file abandons the candidate.
func (c *P2PChain) download(ctx context.Context, req Request, candidate ranking.RankedResponse, logger *slog.Logger) (bool, error) {
	rep := req.reporter()
	peer := candidate.Response.Username
	rep.Downloading(len(candidate.Files))
	for i, file := range candidate.Files {
		track := i + 1
		c.track(ctx, req, track, library.TrackDownloading, logger)
		dest := filepath.Join(req.TargetDir, localFileName(file.Filename, track))
		if err := c.client.Download(ctx, peer, file, dest); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.track(ctx, req, track, library.TrackMissing, logger)
			req.logf("soulseek: %s track %d failed, abandoning candidate: %v", peer, track, err)
			logger.Info("soulseek candidate abandoned",
				logging.String(logging.FieldEventType, "p2p_candidate_abandoned"),
				logging.String("peer", peer),
				logging.Int("track", track),
				logging.Error(err),
			)
			return false, nil
		}
		c.track(ctx, req, track, library.TrackProcessing, logger)
		rep.TrackCompleted(track)
		c.track(ctx, req, track, library.TrackAvailable, logger)
	}
	req.logf("soulseek: downloaded %d tracks from %s", len(candidate.Files), peer)
	return true, nil
}

func (c *P2PChain) track(ctx context.Context, req Request, index int, status library.TrackStatus, logger *slog.Logger) {
	if c.metadata == nil {
		return
	}
	if err := c.metadata.UpdateTrackAvailability(ctx, req.ArtistID, req.ReleaseFolder, index, status); err != nil {
		logger.Debug("track availability update failed",
			logging.String(logging.FieldEventType, "track_availability_failed"),
			logging.Int("track", index),
			logging.Error(err),
		)
	}
}

func localFileName(remote string, track int) string {
	parts := strings.FieldsFunc(remote, func(r rune) bool { return r == '/' || r == '\\' })
	name := ""
	if len(parts) > 0 {
		name = textmatch.SanitizeFileName(parts[len(parts)-1])
	}
	if name == "" {
		name = fmt.Sprintf("track-%02d", track)
	}
	return name
}
