package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"thermolog/internal/logging"
)

func TestLogsCommandFiltersByEntry(t *testing.T) {
	cfg, socket, configPath := setupOfflineEnv(t)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := strings.Join([]string{
		`{"level":"INFO","msg":"entry queued","event_type":"entry_queued","entry_id":1}`,
		`{"level":"INFO","msg":"entry queued","event_type":"entry_queued","entry_id":2}`,
		`{"level":"WARN","msg":"delivery failed","event_type":"delivery_failed","entry_id":2}`,
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--entry", "2"}, socket, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("expected 2 lines for entry 2, got %d:\n%s", got, out)
	}

	out, _, err = runCLI(t, []string{"logs", "--level", "warn", "-n", "1"}, socket, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "delivery_failed")
}
