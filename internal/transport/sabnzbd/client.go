// Package sabnzbd hands NZB files to a SABnzbd instance.
package sabnzbd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"cratedig/internal/logging"
	"cratedig/internal/provider"
	"cratedig/internal/services"
	"cratedig/internal/transport"
)

const component = "sabnzbd"

// Client uploads NZBs through the SABnzbd HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	category   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ provider.UsenetClient = (*Client)(nil)

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

// WithLogger sets the logger used for hand-off details.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// New creates a SABnzbd client. Uploads are filed under category when set.
func New(baseURL, apiKey, category string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("sabnzbd url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("sabnzbd api key required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		category:   strings.TrimSpace(category),
		httpClient: &http.Client{Timeout: transport.DefaultTimeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type apiResponse struct {
	Status  bool     `json:"status"`
	Error   string   `json:"error"`
	NzoIDs  []string `json:"nzo_ids"`
	Version string   `json:"version"`
}

// Version returns the SABnzbd version and doubles as a connectivity check.
func (c *Client) Version(ctx context.Context) (string, error) {
	params := c.params("version")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	payload, err := c.do(req, "version")
	if err != nil {
		return "", err
	}
	return payload.Version, nil
}

// UploadNZB submits data as name. SABnzbd decides the final location from the
// category; destination is only recorded in the log.
func (c *Client) UploadNZB(ctx context.Context, data []byte, name, destination string) error {
	if len(data) == 0 {
		return services.Wrap(services.ErrValidation, component, "upload", "empty nzb", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "release.nzb"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("name", name)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}

	params := c.params("addfile")
	params.Set("nzbname", strings.TrimSuffix(name, ".nzb"))
	if c.category != "" {
		params.Set("cat", c.category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api?"+params.Encode(), &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	payload, err := c.do(req, "upload")
	if err != nil {
		return err
	}
	if !payload.Status || len(payload.NzoIDs) == 0 {
		reason := strings.TrimSpace(payload.Error)
		if reason == "" {
			reason = "nzb rejected"
		}
		return services.Wrap(services.ErrExternalTool, component, "upload", reason, nil)
	}
	c.logger.Info("nzb queued",
		logging.String(logging.FieldEventType, "usenet_handoff"),
		logging.String("nzb", name),
		logging.String("nzo_id", payload.NzoIDs[0]),
		logging.String("category", c.category),
		logging.String("destination", destination),
	)
	return nil
}

func (c *Client) params(mode string) url.Values {
	params := url.Values{}
	params.Set("mode", mode)
	params.Set("apikey", c.apiKey)
	params.Set("output", "json")
	return params
}

func (c *Client) do(req *http.Request, operation string) (apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, transport.RequestError(component, operation, err)
	}
	defer transport.Drain(resp)
	if resp.StatusCode != http.StatusOK {
		return apiResponse{}, transport.StatusError(component, operation, resp)
	}
	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return apiResponse{}, services.Wrap(services.ErrExternalTool, component, operation, "decode response", err)
	}
	// SABnzbd reports a bad key with HTTP 200.
	if strings.Contains(strings.ToLower(payload.Error), "api key") {
		return apiResponse{}, services.Wrap(services.ErrConfiguration, component, operation, payload.Error, nil)
	}
	return payload, nil
}
