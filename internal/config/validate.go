package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

// validateRemote accepts an empty endpoint: entries are recorded and stay
// queued until one is configured.
func (c *Config) validateRemote() error {
	if c.Remote.Endpoint == "" {
		return nil
	}
	parsed, err := url.Parse(c.Remote.Endpoint)
	if err != nil {
		return fmt.Errorf("remote.endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("remote.endpoint must use http or https, got %q", c.Remote.Endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("remote.endpoint is missing a host: %q", c.Remote.Endpoint)
	}
	if c.Remote.RequestTimeout <= 0 {
		return errors.New("remote.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RefreshInterval <= 0 {
		return errors.New("sync.refresh_interval must be positive")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	switch c.Connectivity.Mode {
	case ConnectivityLink, ConnectivityAlways, ConnectivityNever:
	default:
		return fmt.Errorf("connectivity.mode must be one of link, always, never; got %q", c.Connectivity.Mode)
	}
	if c.Connectivity.PollInterval <= 0 {
		return errors.New("connectivity.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}
