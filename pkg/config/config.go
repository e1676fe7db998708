// oreon/sentinel · watchthelight <wtl>

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from a TOML file.
type Config struct {
	Daemon    DaemonConfig    `toml:"daemon"`
	Engine    EngineConfig    `toml:"engine"`
	Scanning  ScanningConfig  `toml:"scanning"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Logging   LoggingConfig   `toml:"logging"`
}

// DaemonConfig covers the daemon's own runtime paths.
type DaemonConfig struct {
	SocketPath string `toml:"socket_path"`
	DBPath     string `toml:"db_path"`
}

// EngineConfig describes the external analysis engine endpoint.
type EngineConfig struct {
	// HostName is the native messaging host identifier. The channel
	// socket path is derived from it unless SocketPath overrides it.
	HostName   string `toml:"host_name"`
	SocketPath string `toml:"socket_path"`
}

// ScanningConfig tunes the local pre-filter and download watching.
type ScanningConfig struct {
	// WatchDirs are download directories observed for new files.
	WatchDirs []string `toml:"watch_dirs"`
	// SafeDomains short-circuit URL scans with a LOW verdict.
	SafeDomains []string `toml:"safe_domains"`
}

// DashboardConfig covers the read-only HTTP surface.
type DashboardConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig tunes the wide-event emitter.
type LoggingConfig struct {
	SampleRate float64 `toml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Daemon: DaemonConfig{
			SocketPath: "/run/oreon/sentinel.sock",
			DBPath:     "/var/lib/oreon/sentinel.db",
		},
		Engine: EngineConfig{
			HostName: "com.sentinel.host",
		},
		Scanning: ScanningConfig{
			WatchDirs: []string{filepath.Join(home, "Downloads")},
			SafeDomains: []string{
				"google.com", "youtube.com", "facebook.com", "twitter.com",
				"instagram.com", "linkedin.com", "netflix.com", "amazon.com",
				"microsoft.com", "apple.com", "github.com", "stackoverflow.com",
				"reddit.com", "wikipedia.org",
			},
		},
		Dashboard: DashboardConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:7465",
		},
		Logging: LoggingConfig{
			SampleRate: 1.0,
		},
	}
}

// Load reads the config file at path, applying defaults for anything
// the file does not set. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// EngineSocket resolves the channel socket path for the native host.
func (c *Config) EngineSocket() string {
	if c.Engine.SocketPath != "" {
		return c.Engine.SocketPath
	}
	return filepath.Join("/run/oreon", c.Engine.HostName+".sock")
}
