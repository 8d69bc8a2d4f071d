package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/config"
	"github.com/tradterm/tradterm/internal/session"
	"github.com/tradterm/tradterm/internal/terminal"
	"github.com/tradterm/tradterm/internal/version"
)

const statusTimeout = 3 * time.Second

// StatusReport is the probe result printed by the status command.
type StatusReport struct {
	Reachable       bool   `json:"reachable"`
	GatewayURL      string `json:"gatewayUrl"`
	ProtocolVersion int    `json:"protocolVersion,omitempty"`
	LatencyMs       int64  `json:"latencyMs,omitempty"`
	ClientID        string `json:"clientId,omitempty"`
	DetachedPID     int    `json:"detachedPid,omitempty"`
	Error           string `json:"error,omitempty"`
}

// NewStatusCommand creates the status subcommand.
func NewStatusCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the trading gateway",
		Long:  `Open a short-lived session against the configured gateway and report handshake and latency.`,
		Example: `  tradterm status
  tradterm status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			report := probeGateway(cfg)
			printStatus(cmd.OutOrStdout(), report, jsonOutput)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func probeGateway(cfg *config.Config) StatusReport {
	report := StatusReport{GatewayURL: cfg.Gateway.URL}
	if pid, err := readTerminalPID(); err == nil && checkProcessRunning(pid) {
		report.DetachedPID = pid
	}

	gw := cfg.Gateway
	// A probe should fail fast, not retry.
	gw.ReconnectDelayMs = int(time.Hour / time.Millisecond)
	gw.PingIntervalMs = 200

	term := terminal.New(terminal.Options{
		Gateway: gw,
		Build:   version.Version,
		Logger:  zerolog.Nop(),
	})
	if err := term.Start(context.Background()); err != nil {
		report.Error = err.Error()
		term.Close()
		return report
	}
	defer term.Close()

	deadline := time.Now().Add(statusTimeout)
	for time.Now().Before(deadline) {
		state := term.State()
		if state.Status == session.StatusError {
			report.Error = state.LastError
			return report
		}
		if state.Status == session.StatusReady && state.Latency > 0 {
			report.Reachable = true
			report.ProtocolVersion = state.ProtocolVersion
			report.LatencyMs = state.Latency.Milliseconds()
			report.ClientID = state.ClientID.String()
			return report
		}
		time.Sleep(10 * time.Millisecond)
	}

	state := term.State()
	if state.Status == session.StatusReady {
		report.Reachable = true
		report.ProtocolVersion = state.ProtocolVersion
		report.ClientID = state.ClientID.String()
	} else {
		report.Error = "gateway did not answer within " + statusTimeout.String()
	}
	return report
}

func printStatus(out io.Writer, report StatusReport, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	fmt.Fprintf(out, "Gateway: %s\n", report.GatewayURL)
	if report.DetachedPID > 0 {
		fmt.Fprintf(out, "Detached terminal: running (PID %d)\n", report.DetachedPID)
	}
	if !report.Reachable {
		fmt.Fprintln(out, "Status:  unreachable")
		if report.Error != "" {
			fmt.Fprintf(out, "Error:   %s\n", report.Error)
		}
		return
	}

	fmt.Fprintln(out, "Status:  ready")
	fmt.Fprintf(out, "Protocol: %d\n", report.ProtocolVersion)
	if report.LatencyMs > 0 {
		fmt.Fprintf(out, "Latency:  %dms\n", report.LatencyMs)
	}
	fmt.Fprintf(out, "Client:   %s\n", report.ClientID)
}
