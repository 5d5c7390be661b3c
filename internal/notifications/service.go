package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cratedig/internal/config"
)

const userAgent = "cratedig/0.1.0"

// Event names a notification type.
type Event string

const (
	EventReleaseCompleted Event = "release_completed"
	EventReleaseFailed    Event = "release_failed"
	EventTest             Event = "test"
)

// Payload carries event fields. Known keys: artist, title, provider, error.
type Payload map[string]any

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventReleaseCompleted: cfg.Notifications.ReleaseCompleted,
			EventReleaseFailed:    cfg.Notifications.ReleaseFailed,
			EventTest:             true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	label := releaseLabel(payload)
	switch event {
	case EventReleaseCompleted:
		body := fmt.Sprintf("Downloaded: %s", label)
		if provider := payloadString(payload, "provider"); provider != "" {
			body = fmt.Sprintf("%s (via %s)", body, provider)
		}
		return message{
			title: "cratedig - Release Downloaded",
			body:  body,
			tags:  []string{"cratedig", "release", "completed"},
		}, true
	case EventReleaseFailed:
		body := fmt.Sprintf("Failed: %s", label)
		if reason := payloadString(payload, "error"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "cratedig - Release Failed",
			body:     body,
			tags:     []string{"cratedig", "release", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "cratedig - Test",
			body:     "Notification system test",
			tags:     []string{"cratedig", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func releaseLabel(payload Payload) string {
	artist := payloadString(payload, "artist")
	title := payloadString(payload, "title")
	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	case artist != "":
		return artist
	default:
		return "unknown release"
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
