package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/tradterm/tradterm/test/helpers"
)

func TestStatusCommandReportsReadyGateway(t *testing.T) {
	gw := testhelpers.NewMockGateway(t)

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tradterm.json")
	cfg := fmt.Sprintf(`{"gateway": {"url": %q, "pingIntervalMs": 100}}`, gw.URL())
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	os.Setenv("TRADTERM_CONFIG_PATH", configPath)
	os.Setenv("TRADTERM_STATE_DIR", tempDir)
	defer os.Unsetenv("TRADTERM_CONFIG_PATH")
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	cmd := NewStatusCommand()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute())
	out := b.String()
	assert.Contains(t, out, `"reachable": true`)
	assert.Contains(t, out, `"protocolVersion": 2`)
}

func TestStatusCommandReportsUnreachableGateway(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tradterm.json")
	cfg := `{"gateway": {"url": "ws://127.0.0.1:1/ws"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	os.Setenv("TRADTERM_CONFIG_PATH", configPath)
	os.Setenv("TRADTERM_STATE_DIR", tempDir)
	defer os.Unsetenv("TRADTERM_CONFIG_PATH")
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	cmd := NewStatusCommand()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, b.String(), "unreachable")
}
