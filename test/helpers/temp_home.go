// Package test provides test utilities and helpers for tradterm tests.
package test

import (
	"os"
	"path/filepath"
	"testing"
)

// TempHome creates a temporary home directory for isolated tests.
type TempHome struct {
	Dir     string
	restore map[string]string
}

// NewTempHome creates a new temporary home directory and sets HOME.
func NewTempHome(t *testing.T) *TempHome {
	t.Helper()

	dir := t.TempDir()
	th := &TempHome{
		Dir:     dir,
		restore: make(map[string]string),
	}

	envVars := []string{
		"HOME",
		"TRADTERM_CONFIG_PATH",
		"TRADTERM_STATE_DIR",
	}
	for _, key := range envVars {
		th.restore[key] = os.Getenv(key)
	}

	_ = os.Setenv("HOME", dir)
	_ = os.Unsetenv("TRADTERM_CONFIG_PATH")
	_ = os.Unsetenv("TRADTERM_STATE_DIR")

	_ = os.MkdirAll(filepath.Join(dir, ".tradterm"), 0755)
	return th
}

// Cleanup restores the original environment.
func (th *TempHome) Cleanup() {
	for key, value := range th.restore {
		if value == "" {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, value)
		}
	}
}

// StateDir returns the tradterm state directory in the temp home.
func (th *TempHome) StateDir() string {
	return filepath.Join(th.Dir, ".tradterm")
}

// WriteConfig writes a config file to the temp home.
func (th *TempHome) WriteConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(th.StateDir(), "tradterm.json")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return configPath
}
