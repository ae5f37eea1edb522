package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/logging"
)

// LinkMonitor derives reachability from interface link state. The host is
// considered online when at least one non-loopback interface (restricted to
// the allow-list when one is configured) reports operstate "up", or
// "unknown" with carrier present.
type LinkMonitor struct {
	*Broadcaster

	root       string
	interfaces map[string]struct{}
	poll       time.Duration
	useUdev    bool
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLinkMonitor builds a monitor from the connectivity config section.
func NewLinkMonitor(cfg config.Connectivity, logger *slog.Logger) *LinkMonitor {
	allow := make(map[string]struct{}, len(cfg.Interfaces))
	for _, name := range cfg.Interfaces {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			allow[trimmed] = struct{}{}
		}
	}
	poll := time.Duration(cfg.PollInterval) * time.Second
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &LinkMonitor{
		Broadcaster: NewBroadcaster(false),
		root:        cfg.SysfsRoot,
		interfaces:  allow,
		poll:        poll,
		useUdev:     cfg.UdevEvents,
		logger:      logging.NewComponentLogger(logger, "connectivity"),
	}
}

// Start evaluates the link state once and then keeps it current until ctx
// ends or Stop is called. A missing udev socket is logged and polling continues.
func (m *LinkMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if _, err := os.Stat(m.root); err != nil {
		return fmt.Errorf("connectivity sysfs root: %w", err)
	}

	m.Refresh("startup")

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	var events <-chan struct{}
	if m.useUdev {
		events = m.startUdev(runCtx)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(runCtx, events)
	}()

	m.logger.Info("connectivity monitor started",
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
		logging.Bool("online", m.Online()),
		logging.Duration("poll_interval", m.poll),
		logging.Bool("udev", events != nil),
	)
	return nil
}

// Stop halts polling and udev monitoring.
func (m *LinkMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *LinkMonitor) loop(ctx context.Context, events <-chan struct{}) {
	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh("poll")
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.Refresh("udev")
		}
	}
}

// Refresh re-reads link state and publishes a transition when it changed.
func (m *LinkMonitor) Refresh(source string) bool {
	up, err := m.linksUp()
	if err != nil {
		logging.WarnWithContext(m.logger, "link state unreadable; keeping previous connectivity state", "connectivity_read_failed",
			logging.Error(err),
			logging.String("sysfs_root", m.root),
			logging.String(logging.FieldErrorHint, "check connectivity.sysfs_root"),
			logging.String(logging.FieldImpact, "automatic sync may not start when the network returns"),
		)
		return false
	}
	online := len(up) > 0
	changed := m.Set(online, source)
	if changed {
		m.logger.Info("connectivity changed",
			logging.String(logging.FieldEventType, "connectivity_changed"),
			logging.Bool("online", online),
			logging.String("source", source),
			logging.String("interfaces_up", strings.Join(up, ",")),
		)
	}
	return changed
}

func (m *LinkMonitor) linksUp() ([]string, error) {
	dirEntries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, err
	}
	var up []string
	for _, entry := range dirEntries {
		name := entry.Name()
		if name == "lo" {
			continue
		}
		if len(m.interfaces) > 0 {
			if _, ok := m.interfaces[name]; !ok {
				continue
			}
		}
		if linkUp(filepath.Join(m.root, name)) {
			up = append(up, name)
		}
	}
	sort.Strings(up)
	return up, nil
}

func linkUp(dir string) bool {
	state, err := readTrimmed(filepath.Join(dir, "operstate"))
	if err != nil {
		return false
	}
	switch state {
	case "up":
		return true
	case "unknown":
		carrier, err := readTrimmed(filepath.Join(dir, "carrier"))
		return err == nil && carrier == "1"
	default:
		return false
	}
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(string(data))), nil
}
