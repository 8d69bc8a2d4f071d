package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/config"
)

func NewLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "View terminal logs (tail -f)",
		Long:  `View the real-time logs of a detached tradterm terminal.`,
		Example: `  # View logs (follows by default)
  tradterm logs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile := filepath.Join(config.StateDir(), "logs", "terminal.log")

			if _, err := os.Stat(logFile); os.IsNotExist(err) {
				return fmt.Errorf("log file not found at %s; is the terminal running in detached mode?", logFile)
			}

			fmt.Printf("Displaying logs from: %s\n", logFile)
			fmt.Println("Press Ctrl+C to exit.")
			fmt.Println("---")

			tailPath, err := exec.LookPath("tail")
			if err != nil {
				return fmt.Errorf("'tail' command not found in PATH")
			}

			c := exec.Command(tailPath, "-f", logFile)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			return c.Run()
		},
	}
}
