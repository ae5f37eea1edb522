package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"thermolog/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on /api/ requests.
	APIToken string `toml:"api_token"`
}

// Remote describes the endpoint that accepts synced log entries.
type Remote struct {
	Endpoint       string `toml:"endpoint"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Sync contains coordinator and status refresh timing.
type Sync struct {
	RefreshInterval int  `toml:"refresh_interval"`
	SweepOnStart    bool `toml:"sweep_on_start"`
}

// Connectivity selects how reachability is derived from the host.
type Connectivity struct {
	Mode         string   `toml:"mode"`
	Interfaces   []string `toml:"interfaces"`
	SysfsRoot    string   `toml:"sysfs_root"`
	PollInterval int      `toml:"poll_interval"`
	UdevEvents   bool     `toml:"udev_events"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	StallAfter     int    `toml:"stall_after"`
	Drained        bool   `toml:"drained"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
}

// Connectivity modes.
const (
	ConnectivityLink   = "link"
	ConnectivityAlways = "always"
	ConnectivityNever  = "never"
)

// Config encapsulates all configuration values for thermolog.
//
// Configuration sections by subsystem:
//   - Paths: queue database, logs, and API bind address
//   - Remote: endpoint, credentials, and per-request timeout for delivery
//   - Sync: pending-count refresh cadence and startup behaviour
//   - Connectivity: link monitoring mode and interface filter
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, rotation, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Sync          Sync          `toml:"sync"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/thermolog/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("thermolog.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for queue and daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueuePath returns the location of the durable queue database.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the coordinator lock file guarding the queue database.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "thermolog.lock")
}

// PIDPath returns the file the daemon writes its process id to.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "thermolog.pid")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "thermolog.sock")
}

// RequestTimeout returns the per-delivery timeout applied to remote calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Remote.RequestTimeout) * time.Second
}

// RefreshInterval returns the pending-count refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Sync.RefreshInterval) * time.Second
}

// PollInterval returns the link-state poll period for the connectivity monitor.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Connectivity.PollInterval) * time.Second
}

// RemoteConfigured reports whether an endpoint has been provided.
func (c *Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.Remote.Endpoint) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := fileutil.WriteAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
