package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPath(t *testing.T) {
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", "/test/home")
	defer os.Setenv("HOME", oldHome)

	path := ConfigPath()
	expected := "/test/home/.tradterm/tradterm.json"

	if path != expected {
		t.Errorf("Expected %q, got %q", expected, path)
	}
}

func TestConfigDir(t *testing.T) {
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", "/test/home")
	defer os.Setenv("HOME", oldHome)

	dir := ConfigDir()
	expected := "/test/home/.tradterm"

	if dir != expected {
		t.Errorf("Expected %q, got %q", expected, dir)
	}
}

func TestStateDirOverride(t *testing.T) {
	os.Setenv("TRADTERM_STATE_DIR", "/opt/tradterm-state")
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	if dir := StateDir(); dir != "/opt/tradterm-state" {
		t.Errorf("Expected override to win, got %q", dir)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".tradterm")
	_ = os.MkdirAll(configDir, 0755)

	configPath := filepath.Join(configDir, "tradterm.json")
	configContent := `{
  "gateway": {
    "url": "wss://gw.example.com/ws",
    "pingIntervalMs": 5000
  },
  "api": {
    "baseUrl": "https://api.example.com"
  }
}`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tempDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Gateway.URL != "wss://gw.example.com/ws" {
		t.Errorf("Expected gateway url from file, got %q", cfg.Gateway.URL)
	}

	if cfg.Gateway.PingIntervalMs != 5000 {
		t.Errorf("Expected ping interval 5000, got %d", cfg.Gateway.PingIntervalMs)
	}

	// Defaults fill what the file omits.
	if cfg.Gateway.ReconnectDelayMs != 500 {
		t.Errorf("Expected default reconnect delay 500, got %d", cfg.Gateway.ReconnectDelayMs)
	}

	if !cfg.Gateway.ExponentialBackoff {
		t.Error("Expected exponential backoff on by default")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_TOKEN", "secret-token-value")
	defer os.Unsetenv("TEST_TOKEN")

	cfg := &Config{
		Auth: AuthConfig{
			Token: "${TEST_TOKEN}",
		},
	}

	expandEnvVars(cfg)

	if cfg.Auth.Token != "secret-token-value" {
		t.Errorf("Expected expanded token, got %q", cfg.Auth.Token)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Gateway: GatewayConfig{URL: "ws://127.0.0.1:9300/ws"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	cfg.Gateway.URL = "http://127.0.0.1:9300"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for non-websocket gateway url")
	}

	cfg.Gateway.URL = "ws://ok"
	cfg.API.BaseURL = "ftp://nope"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for non-http api base url")
	}
}

func TestSaveAndReload(t *testing.T) {
	tempDir := t.TempDir()
	os.Setenv("TRADTERM_STATE_DIR", tempDir)
	defer os.Unsetenv("TRADTERM_STATE_DIR")

	cfg := &Config{
		Gateway: GatewayConfig{URL: "wss://gw.example.com/ws", ClientName: "desk-7"},
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}

	if loaded.Gateway.URL != "wss://gw.example.com/ws" {
		t.Errorf("Expected saved url, got %q", loaded.Gateway.URL)
	}
	if loaded.Gateway.ClientName != "desk-7" {
		t.Errorf("Expected saved client name, got %q", loaded.Gateway.ClientName)
	}
}
