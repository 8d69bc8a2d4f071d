// Package cli provides the command-line interface for tradterm.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/cli/commands"
	"github.com/tradterm/tradterm/internal/config"
	"github.com/tradterm/tradterm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "tradterm",
	Short: "tradterm - trading terminal client",
	Long: `tradterm is a terminal client for the trading gateway.
It maintains the WebSocket session, reconstructs live device state
from the event stream and tracks issued commands.`,
	Version: version.Version,
	Run: func(cmd *cobra.Command, args []string) {
		if !isConfigured() {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "No tradterm config found.")
			_, _ = fmt.Fprintf(out, "Run 'tradterm configure' to create %s\n", config.ConfigPath())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(commands.NewTerminalCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewConfigureCommand())
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewLogoutCommand())
	rootCmd.AddCommand(commands.NewAccountsCommand())
	rootCmd.AddCommand(commands.NewLogsCommand())

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ~/.tradterm/tradterm.json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func isConfigured() bool {
	if _, err := os.Stat(config.ConfigPath()); err != nil {
		return false
	}
	return true
}
