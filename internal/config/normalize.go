package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeSync()
	if err := c.normalizeConnectivity(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.Endpoint = strings.TrimSpace(c.Remote.Endpoint)
	if c.Remote.Endpoint == "" {
		if value, ok := os.LookupEnv("THERMOLOG_REMOTE_ENDPOINT"); ok {
			c.Remote.Endpoint = strings.TrimSpace(value)
		}
	}
	c.Remote.APIToken = strings.TrimSpace(c.Remote.APIToken)
	if c.Remote.APIToken == "" {
		if value, ok := os.LookupEnv("THERMOLOG_API_TOKEN"); ok {
			c.Remote.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRemoteRequestTimeout
	}
	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultRemoteUserAgent
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.RefreshInterval <= 0 {
		c.Sync.RefreshInterval = defaultSyncRefreshInterval
	}
}

func (c *Config) normalizeConnectivity() error {
	c.Connectivity.Mode = strings.ToLower(strings.TrimSpace(c.Connectivity.Mode))
	if c.Connectivity.Mode == "" {
		c.Connectivity.Mode = defaultConnectivityMode
	}
	if strings.TrimSpace(c.Connectivity.SysfsRoot) == "" {
		c.Connectivity.SysfsRoot = defaultConnectivitySysfsRoot
	}
	var err error
	if c.Connectivity.SysfsRoot, err = expandPath(c.Connectivity.SysfsRoot); err != nil {
		return fmt.Errorf("connectivity.sysfs_root: %w", err)
	}
	if c.Connectivity.PollInterval <= 0 {
		c.Connectivity.PollInterval = defaultConnectivityPollInterval
	}
	interfaces := make([]string, 0, len(c.Connectivity.Interfaces))
	seen := make(map[string]struct{}, len(c.Connectivity.Interfaces))
	for _, name := range c.Connectivity.Interfaces {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		interfaces = append(interfaces, trimmed)
	}
	c.Connectivity.Interfaces = interfaces
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.StallAfter < 0 {
		c.Notifications.StallAfter = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
}
