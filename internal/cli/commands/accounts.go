package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/api"
	"github.com/tradterm/tradterm/internal/config"
)

// NewAccountsCommand creates the accounts subcommand.
func NewAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage exchange accounts via the REST API",
		Example: `  tradterm accounts list
  tradterm accounts delete-key mylabel`,
	}

	cmd.AddCommand(newAccountsListCommand())
	cmd.AddCommand(newAccountsUpsertKeyCommand())
	cmd.AddCommand(newAccountsDeleteKeyCommand())
	return cmd
}

func newRESTClient() (*api.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.baseUrl is not configured")
	}
	tokens, err := openTokenStore()
	if err != nil {
		return nil, err
	}
	return api.New(cfg.API, tokens, zerolog.Nop()), nil
}

func newAccountsListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List exchange accounts",
		Example: `  tradterm accounts list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRESTClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			accounts, err := client.ListAccounts(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(accounts, "", "  ")
				cmd.Println(string(data))
				return nil
			}
			if len(accounts) == 0 {
				cmd.Println("No accounts.")
				return nil
			}
			for _, account := range accounts {
				if account.Network != "" {
					cmd.Printf("%s  %s (%s)\n", account.ID, account.Label, account.Network)
				} else {
					cmd.Printf("%s  %s\n", account.ID, account.Label)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newAccountsUpsertKeyCommand() *cobra.Command {
	var keyID, secret string

	cmd := &cobra.Command{
		Use:     "upsert-key [label]",
		Short:   "Create or replace the API key stored under a label",
		Example: `  tradterm accounts upsert-key main --key-id k123 --secret s456`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRESTClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			account, err := client.UpsertKey(ctx, api.UpsertKeyRequest{
				Label:  args[0],
				KeyID:  keyID,
				Secret: secret,
			})
			if err != nil {
				return err
			}
			cmd.Printf("Stored key %q for account %s\n", args[0], account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyID, "key-id", "", "exchange API key id")
	cmd.Flags().StringVar(&secret, "secret", "", "exchange API key secret")
	_ = cmd.MarkFlagRequired("key-id")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newAccountsDeleteKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete-key [label]",
		Short:   "Delete the API key stored under a label",
		Example: `  tradterm accounts delete-key main`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRESTClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.DeleteKey(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted key %q\n", args[0])
			return nil
		},
	}
}
