package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config helpers (get/set)",
		Long:  `Get and set configuration values in the active config file.`,
		Example: `  # Get config value
  tradterm config get gateway.url

  # Set config value
  tradterm config set gateway.pingIntervalMs 10000`,
	}

	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get [key]",
		Short:   "Get a configuration value",
		Example: `  tradterm config get gateway.url`,
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := config.LoadViper()
			if err != nil {
				cmd.Printf("Failed to load config: %v\n", err)
				return
			}

			key := args[0]
			val := v.Get(key)
			if val == nil {
				cmd.Println("null")
				return
			}
			cmd.Printf("%v\n", val)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Example: `  tradterm config set gateway.url wss://gw.example.com/ws
  tradterm config set gateway.exponentialBackoff true`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := config.LoadViper()
			if err != nil {
				cmd.Printf("Failed to load config: %v\n", err)
				return
			}

			key := args[0]
			valStr := args[1]
			var val interface{} = valStr

			// Type inference attempt
			if vInt, err := strconv.Atoi(valStr); err == nil {
				val = vInt
			} else if vBool, err := strconv.ParseBool(valStr); err == nil {
				val = vBool
			} else if strings.HasPrefix(valStr, "[") || strings.HasPrefix(valStr, "{") {
				// Detected JSON array/object, keep as string for now
				val = valStr
			}

			v.Set(key, val)

			if err := v.WriteConfig(); err != nil {
				// If WriteConfig fails, try WriteConfigAs with the determined path
				target := v.ConfigFileUsed()
				if target == "" {
					target = config.ConfigPath()
				}
				if err := v.WriteConfigAs(target); err != nil {
					cmd.Printf("Failed to write config: %v\n", err)
					return
				}
			}

			cmd.Printf("Updated %s = %v\n", key, val)
		},
	}
}
