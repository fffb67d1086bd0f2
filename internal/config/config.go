// Package config loads the optional on-disk configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the on-disk config.yaml schema. Zero values select the
// built-in defaults.
type Config struct {
	// DebounceMS coalesces bursts of raw git metadata events.
	DebounceMS int `yaml:"debounce_ms"`
	// PollIntervalMS paces the stat-polling fallback.
	PollIntervalMS int `yaml:"poll_interval_ms"`
	// GitBin overrides the git binary used for worktree and status calls.
	GitBin string `yaml:"git_bin"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`
	// DataDir overrides where the repository catalog database lives.
	DataDir string `yaml:"data_dir"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DebounceMS:     500,
		PollIntervalMS: 1000,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads path and overlays it on the defaults. A missing file is not an
// error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DebounceMS <= 0 {
		cfg.DebounceMS = Default().DebounceMS
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = Default().PollIntervalMS
	}
	return cfg, nil
}

// Debounce returns the debounce interval as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// PollInterval returns the polling interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
