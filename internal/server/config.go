package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the server section of the configuration.
type Config struct {
	Host     string
	Port     int
	DevMode  bool
	DemoMode bool
}

// Addr formats the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConfigFromViper reads the server section key by key, so each field gets
// the full env > file > default cascade.
func ConfigFromViper(v *viper.Viper) Config {
	return Config{
		Host:     v.GetString("server.host"),
		Port:     v.GetInt("server.port"),
		DevMode:  v.GetBool("server.dev_mode"),
		DemoMode: v.GetBool("server.demo_mode"),
	}
}

var configDefaults = map[string]any{
	"server.host":      "0.0.0.0",
	"server.port":      8080,
	"server.dev_mode":  false,
	"server.demo_mode": false,

	"logging.level":  "info",
	"logging.format": "json",

	"plugins.watch.enabled":                  true,
	"plugins.watch.url":                      "",
	"plugins.watch.check_interval":           "10s",
	"plugins.watch.check_timeout":            "10s",
	"plugins.watch.failure_threshold":        3,
	"plugins.watch.history_limit":            50,
	"plugins.watch.diagnostics.enabled":      false,
	"plugins.watch.diagnostics.ping_count":   3,
	"plugins.watch.diagnostics.ping_timeout": "2s",

	"plugins.notify.enabled":         true,
	"plugins.notify.webhook.url":     "",
	"plugins.notify.webhook.timeout": "10s",
	"plugins.notify.webhook.secret":  "",
}

// LoadConfig merges defaults, an optional YAML file, and SW_* environment
// variables, in increasing order of precedence. Without an explicit path it
// searches for sitewatch.yaml in the working directory, $HOME/.sitewatch,
// and /etc/sitewatch.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	for key, val := range configDefaults {
		v.SetDefault(key, val)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sitewatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sitewatch")
		v.AddConfigPath("/etc/sitewatch")
	}

	// SW_SERVER_PORT=9090 overrides server.port.
	v.SetEnvPrefix("SW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file at all is fine; defaults and environment carry the run.
	}

	return v, nil
}
