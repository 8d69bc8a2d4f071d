// Package infra provides infrastructure utilities.
package infra

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tradterm/tradterm/internal/config"
)

// Paths holds commonly used paths.
var Paths = struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	LogDir    string
}{
	ConfigDir: resolveConfigDir(),
	DataDir:   resolveDataDir(),
	CacheDir:  resolveCacheDir(),
	LogDir:    resolveLogDir(),
}

func resolveConfigDir() string {
	return config.StateDir()
}

func resolveDataDir() string {
	stateDir := config.StateDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(stateDir, "data")
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, "Tradterm", "data")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Tradterm", "data")
	default:
		xdg := os.Getenv("XDG_DATA_HOME")
		if xdg != "" {
			return filepath.Join(xdg, "tradterm")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "tradterm")
	}
}

func resolveCacheDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "tradterm")
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, "Tradterm", "cache")
		}
		return filepath.Join(home, "Tradterm", "cache")
	default:
		xdg := os.Getenv("XDG_CACHE_HOME")
		if xdg != "" {
			return filepath.Join(xdg, "tradterm")
		}
		return filepath.Join(home, ".cache", "tradterm")
	}
}

func resolveLogDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "tradterm")
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, "Tradterm", "logs")
		}
		return filepath.Join(home, "Tradterm", "logs")
	default:
		return filepath.Join(home, ".local", "state", "tradterm", "logs")
	}
}

// EnsureDirs creates all required directories.
func EnsureDirs() error {
	dirs := []string{
		Paths.ConfigDir,
		Paths.DataDir,
		Paths.CacheDir,
		Paths.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}
