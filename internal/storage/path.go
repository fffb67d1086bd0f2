package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "gitsync"

// DataDir resolves and creates the per-user directory holding the catalog
// database and the config file. The base follows each platform's
// convention: XDG on Linux, Application Support on macOS, APPDATA on
// Windows.
func DataDir() (string, error) {
	base, err := baseDataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

func baseDataDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	case "windows":
		if base := os.Getenv("APPDATA"); base != "" {
			return base, nil
		}
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve config directory: %w", err)
		}
		return base, nil
	default:
		if base := os.Getenv("XDG_DATA_HOME"); base != "" {
			return base, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}
