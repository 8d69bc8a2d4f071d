package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/config"
	"github.com/tradterm/tradterm/internal/version"
)

// NewConfigureCommand creates the configure subcommand.
func NewConfigureCommand() *cobra.Command {
	var (
		gatewayURL string
		apiURL     string
		username   string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Create or update the tradterm config file",
		Example: `  # Write a default config
  tradterm configure

  # Point the terminal at a gateway
  tradterm configure --gateway-url wss://gw.example.com/ws`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				if !errors.Is(err, config.ErrConfigNotFound) {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = &config.Config{}
			} else if _, statErr := os.Stat(config.ConfigPath()); statErr == nil && !force {
				cmd.Printf("Config already exists at %s\n", config.ConfigPath())
				cmd.Println("Use --force to overwrite, or 'tradterm config set' for single values.")
				return nil
			}

			if gatewayURL != "" {
				cfg.Gateway.URL = gatewayURL
			}
			if cfg.Gateway.URL == "" {
				cfg.Gateway.URL = "ws://127.0.0.1:9300/ws"
			}
			if apiURL != "" {
				cfg.API.BaseURL = apiURL
			}
			if username != "" {
				cfg.Auth.Username = username
			}
			cfg.Meta.LastTouchedVersion = version.Version
			cfg.Meta.LastTouchedAt = time.Now().UTC().Format(time.RFC3339)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			cmd.Printf("Wrote %s\n", config.ConfigPath())
			cmd.Printf("  Gateway: %s\n", cfg.Gateway.URL)
			if cfg.API.BaseURL != "" {
				cmd.Printf("  API:     %s\n", cfg.API.BaseURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gatewayURL, "gateway-url", "", "WebSocket gateway address")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "REST API base address")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	return cmd
}
