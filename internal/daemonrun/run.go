// Package daemonrun wires the daemon process: logger, queue store, observer,
// remote client, notifier, metrics, and the IPC socket.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"thermolog/internal/config"
	"thermolog/internal/connectivity"
	"thermolog/internal/daemon"
	"thermolog/internal/fileutil"
	"thermolog/internal/ipc"
	"thermolog/internal/logging"
	"thermolog/internal/metrics"
	"thermolog/internal/notifications"
	"thermolog/internal/preflight"
	"thermolog/internal/queue"
	"thermolog/internal/remote"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// SocketPath overrides the IPC socket location from the config.
	SocketPath string
}

// Run starts the thermolog daemon and blocks until a signal or an IPC stop request.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		override := *cfg
		override.Logging.Level = level
		cfg = &override
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays)

	pidPath := cfg.PIDPath()
	pidContent := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := fileutil.WriteAtomic(pidPath, pidContent, 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = fileutil.RemoveIfOwned(pidPath, pidContent) }()

	store, err := queue.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open queue store", "queue_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `thermolog queue health` to inspect the database"),
		)
		return err
	}

	m := metrics.New()
	d, err := daemon.New(cfg, store, logger, daemon.Dependencies{
		Observer:  connectivity.FromConfig(cfg.Connectivity, logger),
		Deliverer: buildDeliverer(cfg, logger),
		Notifier:  notifications.NewService(cfg),
		Metrics:   m,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrLocked) {
			return err
		}
		return fmt.Errorf("start daemon: %w", err)
	}

	socketPath := cfg.SocketPath()
	if override := strings.TrimSpace(opts.SocketPath); override != "" {
		socketPath = override
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("thermolog daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// buildDeliverer returns nil when no endpoint is configured so entries simply
// stay queued.
func buildDeliverer(cfg *config.Config, logger *slog.Logger) remote.Deliverer {
	client, err := remote.NewClient(cfg.Remote)
	if err == nil {
		return client
	}
	if errors.Is(err, remote.ErrNotConfigured) {
		logger.Warn("remote endpoint not configured",
			logging.String(logging.FieldEventType, "remote_not_configured"),
			logging.String(logging.FieldImpact, "entries are recorded but never synced"),
			logging.String(logging.FieldErrorHint, "set remote.endpoint or THERMOLOG_REMOTE_ENDPOINT"),
		)
		return nil
	}
	logging.WarnWithContext(logger, "remote client unavailable", "remote_client_invalid",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check remote.endpoint"),
	)
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Bool("remote_configured", cfg.RemoteConfigured()),
		logging.Bool("remote_token_set", cfg.Remote.APIToken != ""),
		logging.Duration("request_timeout", cfg.RequestTimeout()),
		logging.Duration("refresh_interval", cfg.RefreshInterval()),
		logging.String("connectivity_mode", cfg.Connectivity.Mode),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	}
	logger.Info("configuration snapshot", logging.Args(attrs...)...)

	for _, failed := range preflight.Failed(preflight.RunAll(context.Background(), cfg)) {
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
		)
	}
}
