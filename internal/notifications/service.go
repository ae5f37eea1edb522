package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"thermolog/internal/config"
)

const userAgent = "thermolog-notify/0.1"

// Event identifies a notification kind.
type Event string

const (
	EventBacklogDrained     Event = "backlog_drained"
	EventSyncStalled        Event = "sync_stalled"
	EventStorageUnavailable Event = "storage_unavailable"
	EventTest               Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// Without a topic a no-op implementation is returned.
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
		drained:  cfg.Notifications.Drained,
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
	drained  bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBacklogDrained:
		if !n.drained {
			return message{}, false
		}
		return message{
			title: "Thermolog - Backlog Synced",
			body:  fmt.Sprintf("✅ %d offline entries delivered", payloadInt(payload, "delivered")),
			tags:  []string{"thermolog", "sync", "drained"},
		}, true
	case EventSyncStalled:
		return message{
			title:    "Thermolog - Sync Stalled",
			body:     fmt.Sprintf("⚠️ %d entries pending for %s while online", payloadInt(payload, "pending"), payloadString(payload, "since")),
			tags:     []string{"thermolog", "sync", "stalled"},
			priority: "high",
		}, true
	case EventStorageUnavailable:
		body := "❌ Queue storage unavailable"
		if detail := payloadString(payload, "error"); detail != "" {
			body += ": " + detail
		}
		return message{
			title:    "Thermolog - Storage Error",
			body:     body,
			tags:     []string{"thermolog", "storage", "alert"},
			priority: "urgent",
		}, true
	case EventTest:
		return message{
			title:    "Thermolog - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"thermolog", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func payloadInt(p Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func payloadString(p Payload, key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case time.Duration:
		return v.Round(time.Second).String()
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
