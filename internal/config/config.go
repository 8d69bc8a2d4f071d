// Package config provides configuration management for tradterm.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfigNotFound indicates no usable config file was found.
var ErrConfigNotFound = errors.New("config not found")

// Config matches the structure of tradterm.json
type Config struct {
	Meta    MetaConfig        `json:"meta" yaml:"meta" mapstructure:"meta"`
	Env     map[string]string `json:"env" yaml:"env" mapstructure:"env"`
	Gateway GatewayConfig     `json:"gateway" yaml:"gateway" mapstructure:"gateway"`
	API     APIConfig         `json:"api" yaml:"api" mapstructure:"api"`
	Auth    AuthConfig        `json:"auth" yaml:"auth" mapstructure:"auth"`
	Metrics MetricsConfig     `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Logging LoggingConfig     `json:"logging" yaml:"logging" mapstructure:"logging"`
}

type MetaConfig struct {
	LastTouchedVersion string `json:"lastTouchedVersion" yaml:"lastTouchedVersion" mapstructure:"lastTouchedVersion"`
	LastTouchedAt      string `json:"lastTouchedAt" yaml:"lastTouchedAt" mapstructure:"lastTouchedAt"`
}

// GatewayConfig configures the WebSocket session with the trading gateway.
type GatewayConfig struct {
	URL                 string `json:"url" yaml:"url" mapstructure:"url" validate:"required"`
	ClientName          string `json:"clientName" yaml:"clientName" mapstructure:"clientName"`
	PingIntervalMs      int    `json:"pingIntervalMs" yaml:"pingIntervalMs" mapstructure:"pingIntervalMs" validate:"gte=0"`
	ReconnectDelayMs    int    `json:"reconnectDelayMs" yaml:"reconnectDelayMs" mapstructure:"reconnectDelayMs" validate:"gte=0"`
	MaxReconnectDelayMs int    `json:"maxReconnectDelayMs" yaml:"maxReconnectDelayMs" mapstructure:"maxReconnectDelayMs" validate:"gte=0"`
	ExponentialBackoff  bool   `json:"exponentialBackoff" yaml:"exponentialBackoff" mapstructure:"exponentialBackoff"`
}

// APIConfig configures the REST collaborator used for account and profile
// reads outside the WebSocket protocol.
type APIConfig struct {
	BaseURL   string `json:"baseUrl" yaml:"baseUrl" mapstructure:"baseUrl"`
	TimeoutMs int    `json:"timeoutMs" yaml:"timeoutMs" mapstructure:"timeoutMs" validate:"gte=0"`
}

// AuthConfig configures credential handling.
type AuthConfig struct {
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	// Token is an identity-provider token; ${VAR} references are expanded.
	Token string `json:"token" yaml:"token" mapstructure:"token"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" yaml:"listen" mapstructure:"listen"`
}

type LoggingConfig struct {
	Level   string `json:"level" yaml:"level" mapstructure:"level"`
	Verbose bool   `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// StateDir returns the tradterm state directory path.
// Can be overridden via TRADTERM_STATE_DIR environment variable.
// Default: ~/.tradterm
func StateDir() string {
	if override := strings.TrimSpace(os.Getenv("TRADTERM_STATE_DIR")); override != "" {
		return expandPath(override)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".tradterm"
	}
	return filepath.Join(home, ".tradterm")
}

// ConfigDir returns the config directory path (alias for StateDir).
func ConfigDir() string {
	return StateDir()
}

// ConfigPath returns the default config file path.
// Can be overridden via TRADTERM_CONFIG_PATH environment variable.
// Default: ~/.tradterm/tradterm.json
func ConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("TRADTERM_CONFIG_PATH")); override != "" {
		return expandPath(override)
	}
	return filepath.Join(StateDir(), "tradterm.json")
}

// expandPath expands ~ to home directory and resolves the path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

// LoadViper loads the configuration into a Viper instance.
func LoadViper() (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if configPath := strings.TrimSpace(os.Getenv("TRADTERM_CONFIG_PATH")); configPath != "" {
		expandedPath := expandPath(configPath)
		fileInfo, err := os.Stat(expandedPath)
		if err == nil && fileInfo.IsDir() {
			v.SetConfigName("tradterm")
			v.AddConfigPath(expandedPath)
		} else {
			v.SetConfigFile(expandedPath)
		}
	} else {
		v.SetConfigName("tradterm")
		v.AddConfigPath(StateDir()) // ~/.tradterm/
	}

	// Env vars - use TRADTERM_ prefix
	v.SetEnvPrefix("TRADTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Fallback: try config.yaml for hand-rolled setups
		v.SetConfigName("config")
		if err2 := v.ReadInConfig(); err2 != nil {
			if _, ok := err2.(viper.ConfigFileNotFoundError); ok {
				return nil, ErrConfigNotFound
			}
			return nil, err2
		}
	}

	return v, nil
}

// Load reads the configuration from file or environment variables.
func Load() (*Config, error) {
	v, err := LoadViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Inject the config.env block into the OS environment before expansion
	// so ${VAR} references to it resolve.
	for k, val := range cfg.Env {
		expandedVal := os.ExpandEnv(val)
		_ = os.Setenv(k, expandedVal)
		cfg.Env[k] = expandedVal
	}

	expandEnvVars(&cfg)

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.url", "ws://127.0.0.1:9300/ws")
	v.SetDefault("gateway.clientName", "tradterm")
	v.SetDefault("gateway.pingIntervalMs", 15000)
	v.SetDefault("gateway.reconnectDelayMs", 500)
	v.SetDefault("gateway.maxReconnectDelayMs", 16000)
	v.SetDefault("gateway.exponentialBackoff", true)

	v.SetDefault("api.timeoutMs", 10000)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9301")

	v.SetDefault("logging.level", "info")
}

// expandEnvVars expands environment variables in sensitive fields.
func expandEnvVars(cfg *Config) {
	cfg.Auth.Token = os.ExpandEnv(cfg.Auth.Token)
	cfg.API.BaseURL = os.ExpandEnv(cfg.API.BaseURL)
}

// Save saves the configuration to the config file.
// Uses ConfigPath() for consistency with Load(). Only JSON is supported.
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks for semantic errors in the config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Gateway.URL, "ws://") && !strings.HasPrefix(c.Gateway.URL, "wss://") {
		return fmt.Errorf("gateway.url must be a ws:// or wss:// address, got %q", c.Gateway.URL)
	}
	if c.API.BaseURL != "" &&
		!strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.baseUrl must be an http(s) address, got %q", c.API.BaseURL)
	}
	return nil
}
