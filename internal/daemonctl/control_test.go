package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"thermolog/internal/testsupport"
)

func TestBuildStatusReportFallsBackToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustEnqueue(t, store, 3)

	report, err := BuildStatusReport(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusReport: %v", err)
	}
	if report.Daemon.Running {
		t.Fatal("expected daemon to be reported as not running")
	}
	if !report.Daemon.PendingKnown || report.Daemon.PendingCount != 3 {
		t.Fatalf("expected 3 pending from store fallback, got %+v", report.Daemon)
	}
	if len(report.Checks) == 0 {
		t.Fatal("expected preflight checks in report")
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	_, err := StopAndTerminate(cfg.SocketPath(), cfg, 100*time.Millisecond)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "thermolog.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
}

func TestForceKillProcessNeedsPID(t *testing.T) {
	if _, err := ForceKillProcess(filepath.Join(t.TempDir(), "missing.pid"), 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
