package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tradterm.json")

	initialConfig := `{"gateway": {"url": "ws://10.0.0.5:9300/ws"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(initialConfig), 0644))

	// Isolate from real ~/.tradterm
	os.Setenv("TRADTERM_CONFIG_PATH", configPath)
	os.Setenv("TRADTERM_STATE_DIR", tempDir)
	defer os.Unsetenv("TRADTERM_CONFIG_PATH")
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	// 1. Test 'config get'
	getCmd := newConfigGetCommand()
	b := bytes.NewBufferString("")
	getCmd.SetOut(b)
	getCmd.SetArgs([]string{"gateway.url"})

	err := getCmd.Execute()
	assert.NoError(t, err)
	assert.Contains(t, b.String(), "ws://10.0.0.5:9300/ws")

	// 2. Test 'config set'
	setCmd := newConfigSetCommand()
	b.Reset()
	setCmd.SetOut(b)
	setCmd.SetArgs([]string{"gateway.pingIntervalMs", "10000"})

	err = setCmd.Execute()
	assert.NoError(t, err)
	assert.Contains(t, b.String(), "Updated gateway.pingIntervalMs = 10000")

	// 3. Verify file was written (viper may write in different format)
	data, err := os.ReadFile(configPath)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "10000")
}
