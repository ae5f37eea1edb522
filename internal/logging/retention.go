package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RotatedPattern matches backups produced by the rotating file writer
// (thermolog-<timestamp>.log).
const RotatedPattern = "thermolog-*.log"

// CleanupOldLogs removes rotated log files in dir older than retentionDays.
// A retentionDays value of 0 disables pruning. The active log file is never
// matched by the pattern and so is never removed.
func CleanupOldLogs(logger *slog.Logger, dir string, retentionDays int) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(RotatedPattern, entry.Name())
		if err != nil || !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
