package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cratedig/internal/config"
	"cratedig/internal/library"
	"cratedig/internal/logging"
	"cratedig/internal/provider"
	"cratedig/internal/transport/prowlarr"
	"cratedig/internal/transport/qbittorrent"
	"cratedig/internal/transport/sabnzbd"
	"cratedig/internal/transport/slskd"
)

const snapshotTimeout = 5 * time.Second

// transportCheck checks one configured external service at startup.
type transportCheck struct {
	name  string
	check func(ctx context.Context) (string, error)
}

// chainBuilder assembles provider chains from configuration. Checks are
// collected for the startup snapshot.
type chainBuilder struct {
	cfg     *config.Config
	catalog library.Metadata
	logger  *slog.Logger
	checks  []transportCheck
}

// buildChain constructs the provider chain in configured order. A transport
// with missing URL or key leaves its chain disabled; that is logged once here.
func buildChain(cfg *config.Config, catalog library.Metadata, logger *slog.Logger) (*provider.Chain, []ProviderStatus, []transportCheck, error) {
	b := &chainBuilder{cfg: cfg, catalog: catalog, logger: logger}
	for _, warning := range cfg.TransportWarnings() {
		logging.WarnWithContext(logger, "transport disabled", "transport_disabled",
			logging.String("reason", warning),
			logging.String(logging.FieldImpact, "releases routed to this transport are skipped"),
			logging.String(logging.FieldErrorHint, "set the url and api key or disable the section"),
		)
	}
	chain, statuses, err := b.build()
	if err != nil {
		return nil, nil, nil, err
	}
	return chain, statuses, b.checks, nil
}

func (b *chainBuilder) build() (*provider.Chain, []ProviderStatus, error) {
	providers := make([]provider.Provider, 0, len(b.cfg.Providers.Order))
	statuses := make([]ProviderStatus, 0, len(b.cfg.Providers.Order))
	for _, name := range b.cfg.Providers.Order {
		var (
			p   provider.Provider
			err error
		)
		switch name {
		case config.ProviderSoulseek:
			p, err = b.p2p()
		case config.ProviderIndexer:
			p, err = b.indexer()
		default:
			return nil, nil, fmt.Errorf("providers.order: unknown provider %q", name)
		}
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, p)
		statuses = append(statuses, ProviderStatus{Name: p.Name(), Enabled: p.Enabled()})
		if !p.Enabled() {
			b.logger.Info("acquisition provider disabled",
				logging.String(logging.FieldProvider, p.Name()),
				logging.String(logging.FieldEventType, "provider_disabled"),
				logging.String(logging.FieldErrorHint, "set enabled, url and api key in the provider's config section"),
			)
		}
	}
	return provider.NewChain(b.logger, providers...), statuses, nil
}

func (b *chainBuilder) p2p() (provider.Provider, error) {
	opts := provider.P2POptions{Metadata: b.catalog, Logger: b.logger}
	if !b.cfg.SoulseekReady() {
		return provider.NewP2PChain(opts), nil
	}
	client, err := slskd.New(slskd.Options{
		URL:             b.cfg.Soulseek.URL,
		APIKey:          b.cfg.Soulseek.APIKey,
		DownloadDir:     b.cfg.Soulseek.DownloadDir,
		SearchTimeout:   time.Duration(b.cfg.Soulseek.SearchTimeoutSeconds) * time.Second,
		DownloadTimeout: time.Duration(b.cfg.Soulseek.DownloadTimeoutSeconds) * time.Second,
		ResponseLimit:   b.cfg.Soulseek.ResponseLimit,
		Logger:          b.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("soulseek: %w", err)
	}
	opts.Client = client
	opts.Enabled = true
	b.checks = append(b.checks, transportCheck{name: "slskd", check: func(ctx context.Context) (string, error) {
		connected, err := client.Connected(ctx)
		if err != nil {
			return "", err
		}
		if connected {
			return "connected", nil
		}
		return "offline", nil
	}})
	return provider.NewP2PChain(opts), nil
}

func (b *chainBuilder) indexer() (provider.Provider, error) {
	cfg := b.cfg
	opts := provider.IndexerOptions{
		Logger:         b.logger,
		Categories:     cfg.Indexer.Categories,
		IndexerIDs:     cfg.Indexer.IndexerIDs,
		RetryCount:     cfg.Indexer.RetryCount,
		RetryDelay:     time.Duration(cfg.Indexer.RetryDelaySeconds) * time.Second,
		SearchTimeout:  time.Duration(cfg.Indexer.SearchTimeoutSeconds) * time.Second,
		PingTimeout:   time.Duration(cfg.Indexer.PingTimeoutSeconds) * time.Second,
		Discography:    cfg.Discography.Enabled,
		DiscographyDir: cfg.Discography.StagingDir,
	}
	if !cfg.IndexerReady() {
		return provider.NewIndexerChain(opts), nil
	}

	client, err := prowlarr.New(cfg.Indexer.URL, cfg.Indexer.APIKey)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}
	opts.Client = client
	opts.Enabled = true
	b.checks = append(b.checks, transportCheck{name: "prowlarr", check: func(ctx context.Context) (string, error) {
		return "reachable", client.Ping(ctx)
	}})

	if cfg.UsenetReady() {
		sab, err := sabnzbd.New(cfg.Usenet.URL, cfg.Usenet.APIKey, cfg.Usenet.Category, sabnzbd.WithLogger(b.logger))
		if err != nil {
			return nil, fmt.Errorf("usenet: %w", err)
		}
		opts.Usenet = sab
		b.checks = append(b.checks, transportCheck{name: "sabnzbd", check: sab.Version})
	}
	if cfg.TorrentReady() {
		qb, err := qbittorrent.New(qbittorrent.Options{
			URL:      cfg.Torrent.URL,
			Username: cfg.Torrent.Username,
			Password: cfg.Torrent.Password,
			Category: cfg.Torrent.Category,
			Logger:   b.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("torrent: %w", err)
		}
		opts.Torrent = qb
		b.checks = append(b.checks, transportCheck{name: "qbittorrent", check: qb.Version})
	}
	if opts.Usenet == nil && opts.Torrent == nil {
		logging.WarnWithContext(b.logger, "indexer enabled without a download client", "indexer_no_client",
			logging.String(logging.FieldErrorHint, "enable [usenet] or [torrent]"),
			logging.String(logging.FieldImpact, "indexer chain is skipped"),
		)
	}
	return provider.NewIndexerChain(opts), nil
}

// logTransportSnapshot checks each configured transport once and logs the
// result. Failures are informational; acquisition retries on its own.
func (d *Daemon) logTransportSnapshot(ctx context.Context) {
	for _, c := range d.checks {
		checkCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		detail, err := c.check(checkCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logging.WarnWithContext(d.logger, "transport unavailable", "transport_unavailable",
				logging.String("transport", c.name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the service url, api key and that it is running"),
				logging.String(logging.FieldImpact, "releases routed to this transport will fail until it recovers"),
			)
			continue
		}
		d.logger.Info("transport snapshot",
			logging.String("transport", c.name),
			logging.String("detail", detail),
			logging.String(logging.FieldEventType, "transport_snapshot"),
		)
	}
}
