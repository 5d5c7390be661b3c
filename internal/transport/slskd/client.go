// Package slskd drives a slskd daemon over its REST API: it searches the
// Soulseek network, queues downloads, waits for them to finish, and moves the
// finished files to where the P2P chain expects them.
package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cratedig/internal/fileutil"
	"cratedig/internal/logging"
	"cratedig/internal/provider"
	"cratedig/internal/ranking"
	"cratedig/internal/services"
	"cratedig/internal/textmatch"
	"cratedig/internal/transport"
)

const component = "slskd"

const (
	defaultSearchTimeout   = 15 * time.Second
	defaultDownloadTimeout = 30 * time.Minute
	defaultResponseLimit   = 100
	defaultPollInterval    = time.Second
)

// Options configures a Client.
type Options struct {
	URL    string
	APIKey string
	// DownloadDir is slskd's own completed-downloads directory as seen from
	// this process.
	DownloadDir     string
	SearchTimeout   time.Duration
	DownloadTimeout time.Duration
	ResponseLimit   int
	PollInterval    time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Client implements provider.P2PClient against slskd.
type Client struct {
	baseURL         string
	apiKey          string
	downloadDir     string
	searchTimeout   time.Duration
	downloadTimeout time.Duration
	responseLimit   int
	pollInterval    time.Duration
	httpClient      *http.Client
	logger          *slog.Logger
}

var _ provider.P2PClient = (*Client)(nil)

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, errors.New("slskd url required")
	}
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("slskd api key required")
	}
	if strings.TrimSpace(opts.DownloadDir) == "" {
		return nil, errors.New("slskd download dir required")
	}
	c := &Client{
		baseURL:         base,
		apiKey:          key,
		downloadDir:     opts.DownloadDir,
		searchTimeout:   opts.SearchTimeout,
		downloadTimeout: opts.DownloadTimeout,
		responseLimit:   opts.ResponseLimit,
		pollInterval:    opts.PollInterval,
		httpClient:      opts.HTTPClient,
		logger:          logging.NewComponentLogger(opts.Logger, component),
	}
	if c.searchTimeout <= 0 {
		c.searchTimeout = defaultSearchTimeout
	}
	if c.downloadTimeout <= 0 {
		c.downloadTimeout = defaultDownloadTimeout
	}
	if c.responseLimit <= 0 {
		c.responseLimit = defaultResponseLimit
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: transport.DefaultTimeout}
	}
	return c, nil
}

type serverState struct {
	IsConnected bool `json:"isConnected"`
	IsLoggedIn  bool `json:"isLoggedIn"`
}

// Connected reports whether slskd is logged in to the Soulseek server.
func (c *Client) Connected(ctx context.Context) (bool, error) {
	var state serverState
	if err := c.call(ctx, http.MethodGet, "/api/v0/server", nil, &state, "status"); err != nil {
		return false, err
	}
	return state.IsConnected && state.IsLoggedIn, nil
}

// Connect asks slskd to (re)connect to the Soulseek server.
func (c *Client) Connect(ctx context.Context) error {
	return c.call(ctx, http.MethodPut, "/api/v0/server", nil, nil, "connect")
}

type searchRequest struct {
	ID            string `json:"id"`
	SearchText    string `json:"searchText"`
	SearchTimeout int    `json:"searchTimeout"`
	ResponseLimit int    `json:"responseLimit"`
}

type searchState struct {
	ID         string `json:"id"`
	IsComplete bool   `json:"isComplete"`
	State      string `json:"state"`
}

type searchFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	BitRate  int    `json:"bitRate"`
	Length   int    `json:"length"`
}

type searchResponse struct {
	Username          string       `json:"username"`
	HasFreeUploadSlot bool         `json:"hasFreeUploadSlot"`
	QueueLength       int          `json:"queueLength"`
	UploadSpeed       int64        `json:"uploadSpeed"`
	Files             []searchFile `json:"files"`
}

// Search runs a network search, waits for it to complete, and returns every
// peer response. The search is deleted from slskd afterwards.
func (c *Client) Search(ctx context.Context, query string) ([]ranking.P2PResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "query must not be empty", nil)
	}
	id := uuid.NewString()
	body := searchRequest{
		ID:            id,
		SearchText:    query,
		SearchTimeout: int(c.searchTimeout / time.Millisecond),
		ResponseLimit: c.responseLimit,
	}
	if err := c.call(ctx, http.MethodPost, "/api/v0/searches", body, nil, "search"); err != nil {
		return nil, err
	}
	defer func() {
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = c.call(cleanup, http.MethodDelete, "/api/v0/searches/"+id, nil, nil, "delete search")
	}()

	// slskd enforces the search timeout itself; allow a margin before giving up.
	waitCtx, cancel := context.WithTimeout(ctx, c.searchTimeout+10*time.Second)
	defer cancel()
	if err := c.poll(waitCtx, func() (bool, error) {
		var state searchState
		if err := c.call(waitCtx, http.MethodGet, "/api/v0/searches/"+id, nil, &state, "search status"); err != nil {
			return false, err
		}
		return state.IsComplete, nil
	}); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.Debug("search did not complete in time; using partial responses",
			logging.String("query", query))
	}

	var raw []searchResponse
	if err := c.call(ctx, http.MethodGet, "/api/v0/searches/"+id+"/responses", nil, &raw, "search responses"); err != nil {
		return nil, err
	}
	out := make([]ranking.P2PResponse, 0, len(raw))
	for _, r := range raw {
		files := make([]ranking.P2PFile, 0, len(r.Files))
		for _, f := range r.Files {
			files = append(files, ranking.P2PFile{Filename: f.Filename, Size: f.Size, BitRate: f.BitRate, Length: f.Length})
		}
		out = append(out, ranking.P2PResponse{
			Username:          r.Username,
			QueueLength:       r.QueueLength,
			HasFreeUploadSlot: r.HasFreeUploadSlot,
			UploadSpeed:       r.UploadSpeed,
			Files:             files,
		})
	}
	return out, nil
}

type enqueueFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type transferFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	State    string `json:"state"`
}

type transferDirectory struct {
	Directory string         `json:"directory"`
	Files     []transferFile `json:"files"`
}

type userTransfers struct {
	Username    string              `json:"username"`
	Directories []transferDirectory `json:"directories"`
}

// Download queues one file from username, waits until slskd finishes it, and
// moves the result to localPath. Cancelling ctx cancels the transfer.
func (c *Client) Download(ctx context.Context, username string, file ranking.P2PFile, localPath string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(file.Filename) == "" {
		return services.Wrap(services.ErrValidation, component, "download", "username and filename required", nil)
	}
	userPath := "/api/v0/transfers/downloads/" + url.PathEscape(username)
	if err := c.call(ctx, http.MethodPost, userPath, []enqueueFile{{Filename: file.Filename, Size: file.Size}}, nil, "enqueue"); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()
	var transfer transferFile
	err := c.poll(waitCtx, func() (bool, error) {
		var transfers userTransfers
		if err := c.call(waitCtx, http.MethodGet, userPath, nil, &transfers, "transfer status"); err != nil {
			return false, err
		}
		found, ok := transfers.find(file.Filename)
		if !ok {
			return false, nil
		}
		transfer = found
		return strings.HasPrefix(found.State, "Completed"), nil
	})
	if err != nil {
		if transfer.ID != "" {
			c.cancelTransfer(ctx, userPath, transfer.ID)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, component, "download",
				fmt.Sprintf("%s did not finish within %s", remoteBase(file.Filename), c.downloadTimeout), nil)
		}
		return err
	}
	if !strings.Contains(transfer.State, "Succeeded") {
		return services.Wrap(services.ErrTransient, component, "download",
			fmt.Sprintf("%s ended as %q", remoteBase(file.Filename), transfer.State), nil)
	}

	src := c.localSource(file.Filename)
	if err := fileutil.MoveFile(src, localPath); err != nil {
		return services.Wrap(services.ErrExternalTool, component, "download", "move finished file", err)
	}
	return nil
}

func (t userTransfers) find(filename string) (transferFile, bool) {
	for _, dir := range t.Directories {
		for _, f := range dir.Files {
			if f.Filename == filename {
				return f, true
			}
		}
	}
	return transferFile{}, false
}

func (c *Client) cancelTransfer(ctx context.Context, userPath, id string) {
	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.call(cleanup, http.MethodDelete, userPath+"/"+url.PathEscape(id)+"?remove=true", nil, nil, "cancel transfer"); err != nil {
		c.logger.Debug("cancel transfer failed", logging.Error(err))
	}
}

// localSource mirrors slskd's layout: finished files land in a directory
// named after the remote parent folder.
func (c *Client) localSource(remote string) string {
	segments := remoteSegments(remote)
	name := segments[len(segments)-1]
	if len(segments) < 2 {
		return filepath.Join(c.downloadDir, name)
	}
	return filepath.Join(c.downloadDir, textmatch.SanitizeFileName(segments[len(segments)-2]), name)
}

func remoteSegments(remote string) []string {
	parts := strings.FieldsFunc(remote, func(r rune) bool { return r == '\\' || r == '/' })
	if len(parts) == 0 {
		return []string{remote}
	}
	return parts
}

func remoteBase(remote string) string {
	segments := remoteSegments(remote)
	return segments[len(segments)-1]
}

func (c *Client) poll(ctx context.Context, check func() (bool, error)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, operation string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transport.RequestError(component, operation, err)
	}
	defer transport.Drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transport.StatusError(component, operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, component, operation, "decode response", err)
	}
	return nil
}
