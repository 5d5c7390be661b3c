package provider

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cratedig/internal/config"
	"cratedig/internal/logging"
	"cratedig/internal/ranking"
	"cratedig/internal/services"
	"cratedig/internal/textmatch"
)

// IndexerOptions configures an IndexerChain. Usenet and Torrent may be nil
// when that download client is disabled.
type IndexerOptions struct {
	Client        IndexerClient
	Usenet        UsenetClient
	Torrent       TorrentClient
	Logger        *slog.Logger
	Enabled       bool
	Categories    []int
	IndexerIDs    []int
	RetryCount    int
	RetryDelay    time.Duration
	SearchTimeout time.Duration
	PingTimeout  time.Duration
	// Discography allows bundle results as a last resort, staged under
	// DiscographyDir instead of the release directory.
	Discography    bool
	DiscographyDir string
}

// IndexerChain acquires releases through an indexer aggregator and hands the
// chosen result to a Usenet or torrent client.
type IndexerChain struct {
	client         IndexerClient
	usenet         UsenetClient
	torrent        TorrentClient
	logger         *slog.Logger
	enabled        bool
	categories     []int
	indexerIDs     []int
	retryCount     int
	retryDelay     time.Duration
	searchTimeout  time.Duration
	pingTimeout   time.Duration
	discography    bool
	discographyDir string
}

// NewIndexerChain constructs the chain.
func NewIndexerChain(opts IndexerOptions) *IndexerChain {
	retries := opts.RetryCount
	if retries < 1 {
		retries = 1
	}
	return &IndexerChain{
		client:         opts.Client,
		usenet:         opts.Usenet,
		torrent:        opts.Torrent,
		logger:         logging.NewComponentLogger(opts.Logger, "indexer"),
		enabled:        opts.Enabled,
		categories:     append([]int(nil), opts.Categories...),
		indexerIDs:     append([]int(nil), opts.IndexerIDs...),
		retryCount:     retries,
		retryDelay:     opts.RetryDelay,
		searchTimeout:  opts.SearchTimeout,
		pingTimeout:   opts.PingTimeout,
		discography:    opts.Discography && strings.TrimSpace(opts.DiscographyDir) != "",
		discographyDir: opts.DiscographyDir,
	}
}

// Name identifies the chain in configuration and history.
func (c *IndexerChain) Name() string { return config.ProviderIndexer }

// Enabled reports whether the chain can search and hand off.
func (c *IndexerChain) Enabled() bool {
	return c.enabled && c.client != nil && (c.usenet != nil || c.torrent != nil)
}

// TryAcquire walks the query ladder and hands off the first acceptable result.
func (c *IndexerChain) TryAcquire(ctx context.Context, req Request) (Outcome, error) {
	rep := req.reporter()
	logger := logging.WithContext(ctx, c.logger)
	rep.Searching()

	if err := c.ping(ctx); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		req.logf("indexer: unreachable: %v", err)
		logging.WarnWithContext(logger, "indexer unreachable", "indexer_unreachable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "indexer skipped for this release"),
			logging.String(logging.FieldErrorHint, "check the indexer URL and API key"),
		)
		return Outcome{Reason: "indexer unreachable"}, nil
	}

	var (
		bundles    []ranking.ScoredIndexerCandidate
		seenBundle = make(map[string]struct{})
	)
	for _, query := range IndexerQueries(req.ArtistName, req.ReleaseTitle, req.Year) {
		results, err := c.search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			req.logf("indexer: search %q failed: %v", query, err)
			logger.Info("indexer search failed",
				logging.String(logging.FieldEventType, "indexer_search_failed"),
				logging.String("query", query),
				logging.Error(err),
			)
			continue
		}
		ranked := ranking.RankIndexer(results, req.ArtistName, req.ReleaseTitle)
		direct := make([]ranking.ScoredIndexerCandidate, 0, len(ranked))
		for _, candidate := range ranked {
			if !candidate.Bundle {
				direct = append(direct, candidate)
				continue
			}
			key := candidate.GUID
			if key == "" {
				key = candidate.Title
			}
			if _, ok := seenBundle[key]; !ok {
				seenBundle[key] = struct{}{}
				bundles = append(bundles, candidate)
			}
		}
		logger.Debug("indexer search ranked",
			logging.String(logging.FieldEventType, "indexer_search_ranked"),
			logging.String("query", query),
			logging.Int("results", len(results)),
			logging.Int("direct", len(direct)),
			logging.Int("bundles", len(ranked)-len(direct)),
		)
		req.logf("indexer: %q returned %d results, %d direct matches", query, len(results), len(direct))

		outcome, ok, err := c.handOff(ctx, req, direct, req.TargetDir, logger)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			return outcome, nil
		}
	}

	if len(bundles) > 0 {
		if !c.discography {
			req.logf("indexer: only discography bundles found and bundle handling is disabled")
			return Outcome{Reason: "only discography bundles found"}, nil
		}
		dest := filepath.Join(c.discographyDir, textmatch.SanitizeFileName(req.ArtistName))
		req.logf("indexer: trying %d discography bundles into %s", len(bundles), dest)
		outcome, ok, err := c.handOff(ctx, req, sortByScore(bundles), dest, logger)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			return outcome, nil
		}
	}
	return Outcome{Reason: "no acceptable indexer result"}, nil
}

// handOff applies the selection order: NZB to Usenet, then magnet, then
// .torrent link to the torrent client.
func (c *IndexerChain) handOff(ctx context.Context, req Request, candidates []ranking.ScoredIndexerCandidate, dest string, logger *slog.Logger) (Outcome, bool, error) {
	if len(candidates) == 0 {
		return Outcome{}, false, nil
	}
	rep := req.reporter()

	if c.usenet != nil {
		for _, candidate := range candidates {
			if candidate.Magnet() != "" || ranking.IsTorrentLink(candidate.IndexerCandidate) || strings.TrimSpace(candidate.DownloadURL) == "" {
				continue
			}
			data, err := c.fetch(ctx, candidate.DownloadURL)
			if err != nil {
				if ctx.Err() != nil {
					return Outcome{}, false, ctx.Err()
				}
				req.logf("indexer: fetch %q failed: %v", candidate.Title, err)
				continue
			}
			if !LooksLikeNZB(data) {
				req.logf("indexer: %q is not an NZB, skipping", candidate.Title)
				continue
			}
			rep.Downloading(req.ExpectedTracks)
			if err := c.usenet.UploadNZB(ctx, data, nzbName(candidate.Title), dest); err != nil {
				if ctx.Err() != nil {
					return Outcome{}, false, ctx.Err()
				}
				req.logf("indexer: usenet upload of %q failed: %v", candidate.Title, err)
				continue
			}
			return c.accepted(req, candidate, "usenet", logger), true, nil
		}
	}

	if c.torrent != nil {
		for _, candidate := range candidates {
			magnet := candidate.Magnet()
			if magnet == "" {
				continue
			}
			rep.Downloading(req.ExpectedTracks)
			if err := c.torrent.AddMagnet(ctx, magnet, dest); err != nil {
				if ctx.Err() != nil {
					return Outcome{}, false, ctx.Err()
				}
				req.logf("indexer: magnet hand-off of %q failed: %v", candidate.Title, err)
				continue
			}
			return c.accepted(req, candidate, "torrent", logger), true, nil
		}
		for _, candidate := range candidates {
			if !ranking.IsTorrentLink(candidate.IndexerCandidate) {
				continue
			}
			rep.Downloading(req.ExpectedTracks)
			if err := c.torrent.AddByURL(ctx, candidate.DownloadURL, dest); err != nil {
				if ctx.Err() != nil {
					return Outcome{}, false, ctx.Err()
				}
				req.logf("indexer: torrent hand-off of %q failed: %v", candidate.Title, err)
				continue
			}
			return c.accepted(req, candidate, "torrent", logger), true, nil
		}
	}
	return Outcome{}, false, nil
}

func (c *IndexerChain) accepted(req Request, candidate ranking.ScoredIndexerCandidate, client string, logger *slog.Logger) Outcome {
	req.logf("indexer: handed %q (score %d) to %s", candidate.Title, candidate.Score, client)
	logger.Info("indexer result handed off",
		logging.String(logging.FieldEventType, "indexer_handoff"),
		logging.String("title", candidate.Title),
		logging.Int("score", candidate.Score),
		logging.String("client", client),
		logging.Bool("bundle", candidate.Bundle),
	)
	return Outcome{
		Acquired:  true,
		Provider:  c.Name(),
		Candidate: candidate.Title,
		Tracks:    req.ExpectedTracks,
	}
}

func (c *IndexerChain) ping(ctx context.Context) error {
	pctx, cancel := withTimeout(ctx, c.pingTimeout)
	defer cancel()
	return c.client.Ping(pctx)
}

// search runs one query with bounded retries on transient failures.
func (c *IndexerChain) search(ctx context.Context, query string) ([]ranking.IndexerCandidate, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryCount; attempt++ {
		sctx, cancel := withTimeout(ctx, c.searchTimeout)
		results, err := c.client.Search(sctx, query, c.categories, c.indexerIDs)
		cancel()
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable(err) || attempt == c.retryCount {
			break
		}
		if err := sleepContext(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *IndexerChain) fetch(ctx context.Context, link string) ([]byte, error) {
	fctx, cancel := withTimeout(ctx, c.searchTimeout)
	defer cancel()
	return c.client.Fetch(fctx, link)
}

func retryable(err error) bool {
	switch services.Classify(err) {
	case services.KindTransient, services.KindUnexpected:
		return true
	default:
		return false
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sortByScore(candidates []ranking.ScoredIndexerCandidate) []ranking.ScoredIndexerCandidate {
	out := append([]ranking.ScoredIndexerCandidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func nzbName(title string) string {
	name := textmatch.SanitizeFileName(title)
	if name == "" {
		name = "release"
	}
	return fmt.Sprintf("%s.nzb", name)
}
