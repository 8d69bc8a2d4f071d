package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tradterm.json")
	os.Setenv("TRADTERM_CONFIG_PATH", configPath)
	os.Setenv("TRADTERM_STATE_DIR", tempDir)
	defer os.Unsetenv("TRADTERM_CONFIG_PATH")
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	cmd := NewConfigureCommand()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetArgs([]string{"--gateway-url", "wss://gw.example.com/ws"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, b.String(), "wss://gw.example.com/ws")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wss://gw.example.com/ws")
}

func TestConfigureRejectsBadGatewayURL(t *testing.T) {
	tempDir := t.TempDir()
	os.Setenv("TRADTERM_CONFIG_PATH", filepath.Join(tempDir, "tradterm.json"))
	os.Setenv("TRADTERM_STATE_DIR", tempDir)
	defer os.Unsetenv("TRADTERM_CONFIG_PATH")
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	cmd := NewConfigureCommand()
	cmd.SetOut(bytes.NewBufferString(""))
	cmd.SetErr(bytes.NewBufferString(""))
	cmd.SetArgs([]string{"--gateway-url", "http://not-a-ws-url"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws://")
}
