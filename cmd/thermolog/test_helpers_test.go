package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"thermolog/internal/config"
	"thermolog/internal/connectivity"
	"thermolog/internal/daemon"
	"thermolog/internal/ipc"
	"thermolog/internal/logging"
	"thermolog/internal/queue"
	"thermolog/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	deliverer  *testsupport.RecordingDeliverer
	observer   *connectivity.Manual
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

// setupCLITestEnv starts a daemon with an in-memory deliverer behind a real
// IPC socket and writes a matching config file.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFor(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		deliverer:  testsupport.NewRecordingDeliverer(),
		observer:   connectivity.NewManual(true),
		configPath: configPath,
	}

	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger, daemon.Dependencies{
		Observer:  env.observer,
		Deliverer: env.deliverer,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.DataDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		d.Stop()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env.daemon = d
	env.server = srv
	env.socketPath = socketPath
	env.cancel = cancel

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
	return env
}

// setupOfflineEnv writes a config without starting a daemon. The socket path
// points at a file that never exists.
func setupOfflineEnv(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	configPath := writeConfigFor(t, cfg)
	return cfg, filepath.Join(cfg.Paths.DataDir, "absent.sock"), configPath
}

func writeConfigFor(t *testing.T, cfg *config.Config) string {
	t.Helper()
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("THERMOLOG_REMOTE_ENDPOINT", "")
	t.Setenv("THERMOLOG_API_TOKEN", "")

	path := filepath.Join(base, "home", ".config", "thermolog", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
