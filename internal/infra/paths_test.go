package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathResolution(t *testing.T) {
	tempDir := t.TempDir()
	oldHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tempDir)
	_ = os.Setenv("TRADTERM_STATE_DIR", filepath.Join(tempDir, ".tradterm"))
	defer func() { _ = os.Setenv("HOME", oldHome) }()
	defer func() { _ = os.Unsetenv("TRADTERM_STATE_DIR") }()

	// Paths is resolved at package load, so call the resolvers directly to
	// exercise them against the mock HOME.
	configDir := resolveConfigDir()
	assert.Contains(t, configDir, ".tradterm")

	dataDir := resolveDataDir()
	assert.True(t, strings.Contains(dataDir, "data") || strings.Contains(dataDir, "tradterm"),
		"dataDir should contain 'data' or 'tradterm': %s", dataDir)
}

func TestEnsureDirs(t *testing.T) {
	tempDir := t.TempDir()

	oldPaths := Paths
	defer func() { Paths = oldPaths }()

	Paths.ConfigDir = tempDir + "/config"
	Paths.DataDir = tempDir + "/data"
	Paths.CacheDir = tempDir + "/cache"
	Paths.LogDir = tempDir + "/log"

	err := EnsureDirs()
	assert.NoError(t, err)

	assert.DirExists(t, Paths.ConfigDir)
	assert.DirExists(t, Paths.DataDir)
	assert.DirExists(t, Paths.CacheDir)
	assert.DirExists(t, Paths.LogDir)
}
