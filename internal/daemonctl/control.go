// Package daemonctl holds the CLI-side helpers that launch, stop, and query
// the background daemon.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/ipc"
	"thermolog/internal/preflight"
	"thermolog/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached thermolog daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	state := StartStateAlreadyRunning
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		state = StartStateStarted
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return StartResult{}, fmt.Errorf("query daemon status: %w", err)
	}
	if !status.Running {
		return StartResult{}, errors.New("daemon process is up but the coordinator is not running; check the daemon log")
	}
	return StartResult{State: state, PID: status.PID}, nil
}

// WaitForShutdown waits for daemon IPC to disappear.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("daemon did not stop: timeout waiting for shutdown")
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon and removes its pid file.
// The flock is released by the kernel when the process dies.
func ForceKillProcess(pidPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate requests daemon shutdown and force-kills the process if it
// is still answering after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil {
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopping}

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil || !alive {
		return result, nil
	}
	if livePID != 0 {
		pid = livePID
	}
	killedPID, err := ForceKillProcess(cfg.PIDPath(), pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// StatusReport is what `thermolog status` renders.
type StatusReport struct {
	Daemon ipc.StatusResponse `json:"daemon"`
	Checks []preflight.Result `json:"checks"`
}

// BuildStatusReport queries the daemon and falls back to reading the queue
// directly when it is not running.
func BuildStatusReport(ctx context.Context, socketPath string, cfg *config.Config) (*StatusReport, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	report := &StatusReport{
		Daemon: ipc.StatusResponse{
			QueueDBPath:      cfg.QueuePath(),
			LockPath:         cfg.LockPath(),
			Endpoint:         cfg.Remote.Endpoint,
			RemoteConfigured: cfg.RemoteConfigured(),
			ConnectivityMode: cfg.Connectivity.Mode,
		},
	}

	if client, err := ipc.Dial(socketPath); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil {
			report.Daemon = *resp
		}
		_ = client.Close()
	}

	if !report.Daemon.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, err := queue.Open(cfg); err == nil {
			if count, countErr := store.CountPending(queryCtx); countErr == nil {
				report.Daemon.PendingCount = count
				report.Daemon.PendingKnown = true
			}
			_ = store.Close()
		}
	}

	report.Checks = preflight.RunAll(ctx, cfg)
	return report, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
