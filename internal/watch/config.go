package watch

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the watch plugin configuration.
type Config struct {
	URL              string            `mapstructure:"url"`
	CheckInterval    time.Duration     `mapstructure:"check_interval"`
	CheckTimeout     time.Duration     `mapstructure:"check_timeout"`
	FailureThreshold int               `mapstructure:"failure_threshold"`
	HistoryLimit     int               `mapstructure:"history_limit"`
	Diagnostics      DiagnosticsConfig `mapstructure:"diagnostics"`
}

// DiagnosticsConfig controls the ICMP reachability probe that runs when a
// down-alert fires.
type DiagnosticsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	PingCount   int           `mapstructure:"ping_count"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// DefaultConfig returns the configuration defaults. Diagnostics are off by
// default: ICMP sockets usually need elevated privileges.
func DefaultConfig() Config {
	return Config{
		CheckInterval:    10 * time.Second,
		CheckTimeout:     10 * time.Second,
		FailureThreshold: 3,
		HistoryLimit:     50,
		Diagnostics: DiagnosticsConfig{
			Enabled:     false,
			PingCount:   3,
			PingTimeout: 2 * time.Second,
		},
	}
}

// Validate checks the configuration for startup-time misconfiguration.
// A validation error is fatal: the monitor loop must not start with a
// target it can never probe.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", c.URL)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %v", c.CheckInterval)
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("check_timeout must be positive, got %v", c.CheckTimeout)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", c.HistoryLimit)
	}
	if c.Diagnostics.Enabled {
		if c.Diagnostics.PingCount < 1 {
			return fmt.Errorf("diagnostics.ping_count must be at least 1, got %d", c.Diagnostics.PingCount)
		}
		if c.Diagnostics.PingTimeout <= 0 {
			return fmt.Errorf("diagnostics.ping_timeout must be positive, got %v", c.Diagnostics.PingTimeout)
		}
	}
	return nil
}
