// Package commands provides CLI subcommands for tradterm.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/protocol"
	"github.com/tradterm/tradterm/internal/version"
)

// NewVersionCommand creates the version subcommand.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the version number",
		Example: `  tradterm version`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("tradterm %s\n", version.Version)
			cmd.Printf("  Commit:   %s\n", version.Commit)
			cmd.Printf("  Built:    %s\n", version.BuildDate)
			cmd.Printf("  Protocol: %d\n", protocol.ProtocolVersion)
		},
	}
}
