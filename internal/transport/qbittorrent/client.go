// Package qbittorrent hands magnet links and .torrent URLs to a qBittorrent
// instance through github.com/autobrr/go-qbittorrent.
package qbittorrent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"

	"cratedig/internal/logging"
	"cratedig/internal/provider"
	"cratedig/internal/services"
	"cratedig/internal/transport"
)

const component = "qbittorrent"

// api is the subset of *qbt.Client the adapter drives.
type api interface {
	LoginCtx(ctx context.Context) error
	AddTorrentFromUrlCtx(ctx context.Context, url string, options map[string]string) error
	GetAppVersionCtx(ctx context.Context) (string, error)
}

// Client adds torrents to qBittorrent, logging in on first use.
type Client struct {
	api      api
	category string
	logger   *slog.Logger

	mu       sync.Mutex
	loggedIn bool
}

var _ provider.TorrentClient = (*Client)(nil)

// Options configures New.
type Options struct {
	URL      string
	Username string
	Password string
	Category string
	Logger   *slog.Logger
}

// New builds a client for the Web UI at opts.URL.
func New(opts Options) (*Client, error) {
	host := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if host == "" {
		return nil, errors.New("qbittorrent url required")
	}
	inner := qbt.NewClient(qbt.Config{
		Host:     host,
		Username: opts.Username,
		Password: opts.Password,
	})
	return newWithAPI(inner, opts.Category, opts.Logger), nil
}

func newWithAPI(inner api, category string, logger *slog.Logger) *Client {
	return &Client{
		api:      inner,
		category: strings.TrimSpace(category),
		logger:   logging.NewComponentLogger(logger, component),
	}
}

// Version returns the qBittorrent application version.
func (c *Client) Version(ctx context.Context) (string, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return "", err
	}
	version, err := c.api.GetAppVersionCtx(ctx)
	if err != nil {
		return "", c.wrap("version", err)
	}
	return strings.TrimSpace(version), nil
}

// AddMagnet queues a magnet URI saving into destination.
func (c *Client) AddMagnet(ctx context.Context, uri, destination string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(uri)), "magnet:") {
		return services.Wrap(services.ErrValidation, component, "add magnet", "not a magnet uri", nil)
	}
	return c.add(ctx, "add magnet", strings.TrimSpace(uri), destination)
}

// AddByURL asks qBittorrent to fetch a .torrent file from link.
func (c *Client) AddByURL(ctx context.Context, link, destination string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return services.Wrap(services.ErrValidation, component, "add url", "empty link", nil)
	}
	return c.add(ctx, "add url", link, destination)
}

func (c *Client) add(ctx context.Context, operation, target, destination string) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	options := map[string]string{}
	if destination = strings.TrimSpace(destination); destination != "" {
		options["savepath"] = destination
		options["autoTMM"] = "false"
	}
	if c.category != "" {
		options["category"] = c.category
	}
	if err := c.api.AddTorrentFromUrlCtx(ctx, target, options); err != nil {
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		return c.wrap(operation, err)
	}
	c.logger.Info("torrent queued",
		logging.String(logging.FieldEventType, "torrent_handoff"),
		logging.String("operation", operation),
		logging.String("destination", destination),
		logging.String("category", c.category),
	)
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	if err := c.api.LoginCtx(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isBadCredentials(err) {
			return services.Wrap(services.ErrConfiguration, component, "login", "credentials rejected", err)
		}
		return transport.RequestError(component, "login", err)
	}
	c.loggedIn = true
	return nil
}

// isBadCredentials matches the plain error go-qbittorrent returns when the Web
// UI refuses the username or password; the library exports no sentinel for it.
func isBadCredentials(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "bad credentials")
}

func (c *Client) wrap(operation string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrExternalTool, component, operation, "request failed", err)
}
