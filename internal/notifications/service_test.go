package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBacklogDrained, notifications.Payload{"delivered": 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "backlog drained",
			event:         notifications.EventBacklogDrained,
			payload:       notifications.Payload{"delivered": 12},
			expectTitle:   "Thermolog - Backlog Synced",
			expectMessage: "✅ 12 offline entries delivered",
			expectTags:    "thermolog,sync,drained",
		},
		{
			name:           "sync stalled",
			event:          notifications.EventSyncStalled,
			payload:        notifications.Payload{"pending": 4, "since": 30 * time.Minute},
			expectTitle:    "Thermolog - Sync Stalled",
			expectMessage:  "⚠️ 4 entries pending for 30m0s while online",
			expectTags:     "thermolog,sync,stalled",
			expectPriority: "high",
		},
		{
			name:           "storage unavailable",
			event:          notifications.EventStorageUnavailable,
			payload:        notifications.Payload{"error": errors.New("disk full")},
			expectTitle:    "Thermolog - Storage Error",
			expectMessage:  "❌ Queue storage unavailable: disk full",
			expectTags:     "thermolog,storage,alert",
			expectPriority: "urgent",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Thermolog - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "thermolog,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursDrainedToggle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Drained = false

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBacklogDrained, notifications.Payload{"delivered": 1}); err != nil {
		t.Fatalf("expected no error for suppressed event, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("unknown"), nil); err != nil {
		t.Fatalf("expected unknown events to be ignored, got %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
