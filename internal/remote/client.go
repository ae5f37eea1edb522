package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/queue"
)

// ErrNotConfigured is returned when no remote endpoint is set.
var ErrNotConfigured = errors.New("remote endpoint not configured")

// IdempotencyHeader carries the entry's delivery key so the receiving side
// can recognise a redelivery after a lost acknowledgement.
const IdempotencyHeader = "Idempotency-Key"

const offlineAnnotationFormat = "[Recorded offline: %s]"

// Delivery is one queued entry handed to a Deliverer.
type Delivery struct {
	EntryID   int64
	Key       string
	Record    queue.LogRecord
	CreatedAt time.Time
}

// DeliveryFromEntry copies the fields a Deliverer needs out of a queue entry.
func DeliveryFromEntry(entry *queue.Entry) Delivery {
	return Delivery{
		EntryID:   entry.ID,
		Key:       entry.DeliveryKey,
		Record:    entry.Record,
		CreatedAt: entry.CreatedAt,
	}
}

// Deliverer sends a single entry and returns nil only once the remote side
// has acknowledged it.
type Deliverer interface {
	Deliver(ctx context.Context, delivery Delivery) error
}

// Payload is the JSON body accepted by the remote endpoint.
type Payload struct {
	SubjectID string  `json:"subject_id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
	Actor     string  `json:"actor"`
	Status    string  `json:"status"`
	Note      string  `json:"note"`
}

// NewPayload builds the request body for a delivery, appending the offline
// annotation to the note.
func NewPayload(d Delivery) Payload {
	return Payload{
		SubjectID: d.Record.SubjectID,
		Value:     d.Record.Value,
		Timestamp: d.Record.Timestamp.UTC().Format(time.RFC3339),
		Actor:     d.Record.Actor,
		Status:    d.Record.Status,
		Note:      AnnotateOffline(d.Record.Note, d.CreatedAt),
	}
}

// AnnotateOffline appends the "[Recorded offline: <createdAt>]" marker to note.
func AnnotateOffline(note string, createdAt time.Time) string {
	annotation := fmt.Sprintf(offlineAnnotationFormat, createdAt.UTC().Format(time.RFC3339))
	note = strings.TrimSpace(note)
	if note == "" {
		return annotation
	}
	return note + " " + annotation
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether retrying the same request is unlikely to help.
// Used for log hints only; every failure still aborts the sweep.
func (e *StatusError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client posts deliveries to the configured endpoint.
type Client struct {
	endpoint  string
	token     string
	userAgent string
	http      *http.Client
}

// NewClient builds a client from the remote config section. The per-request
// timeout is applied by the caller through the context; the http.Client
// timeout is a backstop at twice that value.
func NewClient(cfg config.Remote) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parse remote endpoint: %w", err)
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:  endpoint,
		token:     strings.TrimSpace(cfg.APIToken),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: 2 * timeout},
	}, nil
}

// Endpoint returns the URL deliveries are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) Deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(NewPayload(d))
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if d.Key != "" {
		req.Header.Set(IdempotencyHeader, d.Key)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post entry %d: %w", d.EntryID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
