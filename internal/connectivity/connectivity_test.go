package connectivity

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/logging"
)

func TestBroadcasterNotifiesOnlyOnTransitions(t *testing.T) {
	b := NewBroadcaster(false)
	var events []Event
	unsubscribe := b.Subscribe(func(e Event) { events = append(events, e) })

	if b.Set(false, "test") {
		t.Fatal("setting the current state should not be a transition")
	}
	if !b.Set(true, "test") {
		t.Fatal("expected offline->online transition")
	}
	b.Set(true, "test")
	b.Set(false, "test")
	b.Set(true, "test")

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	want := []bool{true, false, true}
	for i, e := range events {
		if e.Online != want[i] {
			t.Fatalf("event %d online=%v, want %v", i, e.Online, want[i])
		}
	}

	unsubscribe()
	unsubscribe()
	b.Set(false, "test")
	if len(events) != 3 {
		t.Fatalf("unsubscribed handler still called: %d events", len(events))
	}
}

func TestBroadcasterUnsubscribeKeepsOthers(t *testing.T) {
	b := NewBroadcaster(true)
	var a, c int
	unsubA := b.Subscribe(func(Event) { a++ })
	b.Subscribe(func(Event) { c++ })

	unsubA()
	b.Set(false, "test")
	if a != 0 || c != 1 {
		t.Fatalf("a=%d c=%d, want 0 and 1", a, c)
	}
}

func TestManualObserver(t *testing.T) {
	m := NewManual(false)
	var got []bool
	m.Subscribe(func(e Event) { got = append(got, e.Online) })
	m.SetOnline(true)
	m.SetOnline(true)
	if !m.Online() {
		t.Fatal("expected online")
	}
	if len(got) != 1 || !got[0] {
		t.Fatalf("unexpected events: %v", got)
	}
}

func writeLink(t *testing.T, root, name, operstate, carrier string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "operstate"), []byte(operstate+"\n"), 0o644); err != nil {
		t.Fatalf("write operstate: %v", err)
	}
	if carrier != "" {
		if err := os.WriteFile(filepath.Join(dir, "carrier"), []byte(carrier+"\n"), 0o644); err != nil {
			t.Fatalf("write carrier: %v", err)
		}
	}
}

func TestLinkMonitorRefresh(t *testing.T) {
	cases := []struct {
		name       string
		links      map[string][2]string
		interfaces []string
		want       bool
	}{
		{"loopback only", map[string][2]string{"lo": {"unknown", "1"}}, nil, false},
		{"ethernet up", map[string][2]string{"lo": {"unknown", "1"}, "eth0": {"up", "1"}}, nil, true},
		{"ethernet down", map[string][2]string{"eth0": {"down", "0"}}, nil, false},
		{"unknown with carrier", map[string][2]string{"wg0": {"unknown", "1"}}, nil, true},
		{"unknown without carrier", map[string][2]string{"wg0": {"unknown", ""}}, nil, false},
		{"allow-list excludes up link", map[string][2]string{"eth0": {"up", "1"}, "wlan0": {"down", "0"}}, []string{"wlan0"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			for name, state := range tc.links {
				writeLink(t, root, name, state[0], state[1])
			}
			m := NewLinkMonitor(config.Connectivity{SysfsRoot: root, Interfaces: tc.interfaces, PollInterval: 1}, logging.NewNop())
			m.Refresh("test")
			if got := m.Online(); got != tc.want {
				t.Fatalf("Online() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLinkMonitorPollsForChanges(t *testing.T) {
	root := t.TempDir()
	writeLink(t, root, "eth0", "down", "0")

	m := NewLinkMonitor(config.Connectivity{SysfsRoot: root, PollInterval: 1}, logging.NewNop())
	m.poll = 20 * time.Millisecond

	var mu sync.Mutex
	var events []Event
	m.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()
	if m.Online() {
		t.Fatal("expected offline at startup")
	}

	writeLink(t, root, "eth0", "up", "1")
	deadline := time.Now().Add(2 * time.Second)
	for !m.Online() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never observed link up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || !events[0].Online || events[0].Source != "poll" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestLinkMonitorStartRequiresRoot(t *testing.T) {
	m := NewLinkMonitor(config.Connectivity{SysfsRoot: filepath.Join(t.TempDir(), "missing")}, logging.NewNop())
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing sysfs root")
	}
}

func TestFromConfigSelectsObserver(t *testing.T) {
	tests := []struct {
		mode       string
		wantOnline bool
		wantLink   bool
	}{
		{mode: config.ConnectivityAlways, wantOnline: true},
		{mode: config.ConnectivityNever, wantOnline: false},
		{mode: config.ConnectivityLink, wantLink: true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			obs := FromConfig(config.Connectivity{Mode: tt.mode}, logging.NewNop())
			_, isLink := obs.(*LinkMonitor)
			if isLink != tt.wantLink {
				t.Fatalf("link monitor = %v, want %v", isLink, tt.wantLink)
			}
			if !tt.wantLink && obs.Online() != tt.wantOnline {
				t.Fatalf("online = %v, want %v", obs.Online(), tt.wantOnline)
			}
		})
	}
}
