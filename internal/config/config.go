package config

import (
	"time"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

// Config holds client configuration values, including the static server list
// the selector probes at startup.
type Config struct {
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	DownloadDir  string        `mapstructure:"download_dir" yaml:"download_dir"`
	Servers      []chat.Server `mapstructure:"servers" yaml:"servers"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:     "info",
		PollInterval: time.Second,
		ProbeTimeout: 2 * time.Second,
		DownloadDir:  "downloads",
		Servers: []chat.Server{
			{ID: "local", Host: "127.0.0.1", Port: 8080, MaxUsers: 100},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.PollInterval != 0 {
		c.PollInterval = other.PollInterval
	}
	if other.ProbeTimeout != 0 {
		c.ProbeTimeout = other.ProbeTimeout
	}
	if other.DownloadDir != "" {
		c.DownloadDir = other.DownloadDir
	}
	if len(other.Servers) > 0 {
		c.Servers = other.Servers
	}
}
