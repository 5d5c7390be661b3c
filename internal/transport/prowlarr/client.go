// Package prowlarr adapts the Prowlarr indexer aggregator API to the indexer
// chain.
package prowlarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cratedig/internal/provider"
	"cratedig/internal/ranking"
	"cratedig/internal/services"
	"cratedig/internal/transport"
)

const (
	component = "prowlarr"

	// maxPayload bounds fetched NZB and torrent files.
	maxPayload  = 32 << 20
	searchLimit = 100
)

// Client talks to one Prowlarr instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ provider.IndexerClient = (*Client)(nil)

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

// New creates a Prowlarr client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("prowlarr url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("prowlarr api key required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: transport.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchResult struct {
	GUID        string `json:"guid"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	IndexerID   int    `json:"indexerId"`
	DownloadURL string `json:"downloadUrl"`
	MagnetURL   string `json:"magnetUrl"`
	Protocol    string `json:"protocol"`
}

// Ping checks that the instance is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, c.baseURL+"/api/v1/system/status", true)
	if err != nil {
		return transport.RequestError(component, "ping", err)
	}
	defer transport.Drain(resp)
	if resp.StatusCode != http.StatusOK {
		return transport.StatusError(component, "ping", resp)
	}
	return nil
}

// Search runs a release search restricted to categories and indexerIDs when
// they are set.
func (c *Client) Search(ctx context.Context, query string, categories, indexerIDs []int) ([]ranking.IndexerCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "query must not be empty", nil)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "search")
	params.Set("limit", strconv.Itoa(searchLimit))
	for _, cat := range categories {
		params.Add("categories", strconv.Itoa(cat))
	}
	for _, id := range indexerIDs {
		params.Add("indexerIds", strconv.Itoa(id))
	}

	start := time.Now()
	resp, err := c.get(ctx, c.baseURL+"/api/v1/search?"+params.Encode(), true)
	if err != nil {
		return nil, transport.RequestError(component, "search", err)
	}
	defer transport.Drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, transport.StatusError(component, "search", resp)
	}

	var payload []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, component, "search",
			fmt.Sprintf("decode response (latency=%v)", time.Since(start)), err)
	}
	out := make([]ranking.IndexerCandidate, 0, len(payload))
	for _, r := range payload {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		out = append(out, ranking.IndexerCandidate{
			Title:       r.Title,
			GUID:        r.GUID,
			MagnetURL:   r.MagnetURL,
			DownloadURL: r.DownloadURL,
			SizeBytes:   r.Size,
			IndexerID:   r.IndexerID,
			Protocol:    strings.ToLower(r.Protocol),
		})
	}
	return out, nil
}

// Fetch downloads an NZB or torrent file. The API key is only sent to links
// on the Prowlarr host itself. A link that redirects to a magnet URI is
// reported as a validation error; magnet candidates are handed off directly.
func (c *Client) Fetch(ctx context.Context, link string) ([]byte, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, services.Wrap(services.ErrValidation, component, "fetch", "empty link", nil)
	}
	resp, err := c.get(ctx, link, c.sameHost(link))
	if err != nil {
		return nil, transport.RequestError(component, "fetch", err)
	}
	defer transport.Drain(resp)
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, services.Wrap(services.ErrValidation, component, "fetch",
			"link redirects to "+schemeOf(resp.Header.Get("Location")), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, transport.StatusError(component, "fetch", resp)
	}
	data, err := transport.ReadLimited(resp.Body, maxPayload)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, component, "fetch", "read payload", err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, endpoint string, withKey bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if withKey {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	client := *c.httpClient
	client.CheckRedirect = stopAtForeignScheme
	return client.Do(req)
}

func (c *Client) sameHost(link string) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	target, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Host, target.Host)
}

func stopAtForeignScheme(req *http.Request, via []*http.Request) error {
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return http.ErrUseLastResponse
	}
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
		req.Header.Del("X-Api-Key")
	}
	return nil
}

func schemeOf(location string) string {
	if idx := strings.Index(location, ":"); idx > 0 {
		return location[:idx]
	}
	return "unknown location"
}
