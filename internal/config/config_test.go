package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Fatalf("default debounce = %v", cfg.Debounce())
	}
	if cfg.PollInterval() != time.Second {
		t.Fatalf("default poll interval = %v", cfg.PollInterval())
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("default logging = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "debounce_ms: 250\npoll_interval_ms: -5\nlog_level: debug\ngit_bin: /usr/local/bin/git\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Debounce() != 250*time.Millisecond {
		t.Fatalf("debounce = %v, want 250ms", cfg.Debounce())
	}
	// Nonsense intervals fall back to the default.
	if cfg.PollInterval() != time.Second {
		t.Fatalf("poll interval = %v, want 1s", cfg.PollInterval())
	}
	if cfg.GitBin != "/usr/local/bin/git" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides lost: %+v", cfg)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("debounce_ms: [not an int"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}
