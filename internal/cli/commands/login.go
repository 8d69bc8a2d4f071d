package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/auth"
	"github.com/tradterm/tradterm/internal/config"
	"github.com/tradterm/tradterm/internal/session"
	"github.com/tradterm/tradterm/internal/settings"
	"github.com/tradterm/tradterm/internal/terminal"
	"github.com/tradterm/tradterm/internal/version"
)

const loginTimeout = 10 * time.Second

// NewLoginCommand creates the login subcommand.
func NewLoginCommand() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the gateway and cache the token",
		Example: `  tradterm login --token "$TRAD_TOKEN"
  TRADTERM_AUTH_TOKEN=... tradterm login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if token == "" {
				token = cfg.Auth.Token
			}
			if token == "" {
				return fmt.Errorf("no token given; pass --token or set auth.token in the config")
			}

			tokens, err := openTokenStore()
			if err != nil {
				return err
			}

			term := terminal.New(terminal.Options{
				Gateway: cfg.Gateway,
				Build:   version.Version,
				Logger:  zerolog.Nop(),
			})
			if err := term.Start(context.Background()); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer term.Close()

			if err := waitReady(term, loginTimeout); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
			defer cancel()
			if err := term.Login(ctx, token); err != nil {
				return fmt.Errorf("login rejected: %w", err)
			}

			if err := tokens.SetToken(token); err != nil {
				return fmt.Errorf("cache token: %w", err)
			}

			state := term.State()
			cmd.Printf("Logged in as %s\n", state.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "identity-provider token")
	return cmd
}

// NewLogoutCommand creates the logout subcommand.
func NewLogoutCommand() *cobra.Command {
	var allSessions bool

	cmd := &cobra.Command{
		Use:     "logout",
		Short:   "Drop the cached token and end the server session",
		Example: `  tradterm logout --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := openTokenStore()
			if err != nil {
				return err
			}

			// Best effort remote logout; the local purge is what matters.
			if cfg, err := config.Load(); err == nil {
				term := terminal.New(terminal.Options{
					Gateway: cfg.Gateway,
					Build:   version.Version,
					Logger:  zerolog.Nop(),
					Tokens:  tokens,
				})
				if err := term.Start(context.Background()); err == nil {
					if waitReady(term, 3*time.Second) == nil {
						_, _ = term.Logout(allSessions)
						time.Sleep(200 * time.Millisecond)
					}
					term.Close()
				}
			}

			if err := tokens.Purge(); err != nil {
				return fmt.Errorf("purge token: %w", err)
			}
			cmd.Println("Logged out.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&allSessions, "all", false, "log out every session of this user")
	return cmd
}

func openTokenStore() (*auth.Store, error) {
	store := settings.New(filepath.Join(config.StateDir(), "settings.json"), zerolog.Nop())
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return auth.NewStore(store, zerolog.Nop()), nil
}

func waitReady(term *terminal.Terminal, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		state := term.State()
		switch state.Status {
		case session.StatusReady:
			return nil
		case session.StatusError:
			return fmt.Errorf("session failed: %s", state.LastError)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("gateway did not answer within %s", timeout)
}
