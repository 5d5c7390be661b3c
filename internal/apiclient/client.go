// Package apiclient is the CLI's HTTP client for the daemon API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cratedig/internal/api"
)

const defaultTimeout = 30 * time.Second

// ErrUnavailable marks errors where nothing answered at the daemon address.
var ErrUnavailable = errors.New("connect to daemon")

// Error is a non-2xx response from the daemon.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Status)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to one daemon.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// New creates a client. address may be a host:port bind address or a full
// http URL.
func New(address string, opts ...Option) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("daemon address required")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	client := &Client{
		baseURL:    strings.TrimRight(address, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BaseURL returns the daemon URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Queue returns queue occupancy and up to limit queued releases. A
// non-positive limit returns every queued release.
func (c *Client) Queue(ctx context.Context, limit int) (api.QueueSnapshot, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out api.QueueSnapshot
	err := c.do(ctx, http.MethodGet, "/api/queue", query, nil, &out)
	return out, err
}

// Enqueue adds releases to the tail, or the head when front is set.
func (c *Client) Enqueue(ctx context.Context, items []api.QueueItem, front bool) ([]api.EnqueueResult, error) {
	path := "/api/queue"
	if front {
		path = "/api/queue/front"
	}
	var out api.EnqueueResponse
	if err := c.do(ctx, http.MethodPost, path, nil, api.EnqueueRequest{Items: items}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Remove drops a queued release by queue key.
func (c *Client) Remove(ctx context.Context, queueKey string) error {
	query := url.Values{"queue_key": {queueKey}}
	return c.do(ctx, http.MethodDelete, "/api/queue", query, nil, nil)
}

// Cancel cancels one release, or every release of the artist when folder is
// empty.
func (c *Client) Cancel(ctx context.Context, artistID, folder string) (api.CancelResponse, error) {
	var out api.CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/cancel", nil, api.CancelRequest{ArtistID: artistID, ReleaseFolder: folder}, &out)
	return out, err
}

// Slots returns the slot snapshot.
func (c *Client) Slots(ctx context.Context) (api.SlotsResponse, error) {
	var out api.SlotsResponse
	err := c.do(ctx, http.MethodGet, "/api/slots", nil, nil, &out)
	return out, err
}

// Resize sets the slot count and returns the resulting snapshot.
func (c *Client) Resize(ctx context.Context, count int) (api.SlotsResponse, error) {
	var out api.SlotsResponse
	err := c.do(ctx, http.MethodPut, "/api/slots", nil, api.ResizeRequest{Count: count}, &out)
	return out, err
}

// History returns up to limit recent attempts, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/history", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ReleaseHistory returns the latest attempt at a release plus its log tail.
func (c *Client) ReleaseHistory(ctx context.Context, artistID, folder string, lines int) (api.ReleaseHistoryResponse, error) {
	query := url.Values{"artist_id": {artistID}, "release_folder": {folder}}
	if lines > 0 {
		query.Set("lines", strconv.Itoa(lines))
	}
	var out api.ReleaseHistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history/release", query, nil, &out)
	return out, err
}

// EventsQuery selects events from the daemon's replay buffer.
type EventsQuery struct {
	Since uint64
	Limit int
	// Wait holds the request until an event newer than Since arrives or the
	// daemon's poll window closes.
	Wait bool
	// Tail returns the newest Limit events and ignores Since.
	Tail  bool
	Topic string
}

// Events fetches events from the daemon.
func (c *Client) Events(ctx context.Context, q EventsQuery) (api.EventsResponse, error) {
	query := url.Values{}
	if q.Since > 0 {
		query.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Wait {
		query.Set("wait", "1")
	}
	if q.Tail {
		query.Set("tail", "1")
	}
	if topic := strings.TrimSpace(q.Topic); topic != "" {
		query.Set("topic", topic)
	}
	var out api.EventsResponse
	err := c.do(ctx, http.MethodGet, "/api/events", query, nil, &out)
	return out, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (api.NotifyResponse, error) {
	var out api.NotifyResponse
	err := c.do(ctx, http.MethodPost, "/api/notify/test", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapDialError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload api.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return &Error{Status: resp.StatusCode, Message: payload.Error}
	}
	var notify api.NotifyResponse
	if err := json.Unmarshal(raw, &notify); err == nil && notify.Message != "" {
		return &Error{Status: resp.StatusCode, Message: notify.Message}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

func (c *Client) wrapDialError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %s refused the connection; start it with `cratedig daemon`", ErrUnavailable, c.baseURL)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}
