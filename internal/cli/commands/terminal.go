package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tradterm/tradterm/internal/auth"
	"github.com/tradterm/tradterm/internal/config"
	"github.com/tradterm/tradterm/internal/infra"
	"github.com/tradterm/tradterm/internal/metrics"
	"github.com/tradterm/tradterm/internal/settings"
	"github.com/tradterm/tradterm/internal/terminal"
	"github.com/tradterm/tradterm/internal/version"
)

// NewTerminalCommand creates the terminal subcommand.
func NewTerminalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminal",
		Short: "Run the trading terminal session",
		Long:  `Connect to the trading gateway and keep the session alive: handshake, heartbeats, device state reconstruction and command tracking.`,
		Example: `  tradterm terminal
  tradterm terminal --detached`,
	}

	cmd.PersistentFlags().String("url", "", "gateway WebSocket address (overrides config)")
	cmd.PersistentFlags().BoolP("detached", "d", false, "run in background")

	cmd.AddCommand(newTerminalStartCommand())
	cmd.AddCommand(newTerminalStopCommand())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runTerminalStart(cmd)
	}
	return cmd
}

func newTerminalStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Short:   "Start the terminal session",
		Example: `  tradterm terminal start --detached`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminalStart(cmd)
		},
	}
}

func newTerminalStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop a detached terminal session",
		Example: `  tradterm terminal stop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminalStop(cmd)
		},
	}
}

func runTerminalStart(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			fmt.Fprintln(out, "No tradterm config found.")
			fmt.Fprintln(out, "Run: tradterm configure")
			return err
		}
		return fmt.Errorf("load config: %w", err)
	}
	if urlFlag, _ := cmd.Flags().GetString("url"); urlFlag != "" {
		cfg.Gateway.URL = urlFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	detached, _ := cmd.Flags().GetBool("detached")
	if detached {
		return spawnDetachedTerminal(out, cfg.Gateway.URL)
	}

	if err := infra.EnsureDirs(); err != nil {
		return fmt.Errorf("create state dirs: %w", err)
	}

	// Single instance per state dir. Two sessions racing one settings
	// file corrupt the token cache.
	if err := os.MkdirAll(config.StateDir(), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	lockPath := filepath.Join(config.StateDir(), "tradterm-terminal.lock")
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("check lock file: %w", err)
	}
	if !locked {
		fmt.Fprintln(out, "Error: a tradterm terminal is already running.")
		fmt.Fprintf(out, "Lock file: %s\n", lockPath)
		return fmt.Errorf("terminal already running")
	}
	defer func() { _ = fileLock.Unlock() }()

	if err := writeTerminalPID(); err != nil {
		return err
	}
	defer func() { _ = removeTerminalPID() }()

	logger := newRuntimeLogger(cfg.Logging)
	logger.Info().
		Str("version", version.Version).
		Str("url", cfg.Gateway.URL).
		Msg("starting terminal")

	store := settings.New(filepath.Join(config.StateDir(), "settings.json"), logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	tokens := auth.NewStore(store, logger)
	if tokens.Token() == "" && cfg.Auth.Token != "" {
		if err := tokens.SetToken(cfg.Auth.Token); err != nil {
			logger.Warn().Err(err).Msg("failed to cache configured token")
		}
	}

	var instruments *metrics.Metrics
	if cfg.Metrics.Enabled {
		instruments = metrics.New()
		server := metrics.NewServer(cfg.Metrics.Listen, instruments, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}()
	}

	term := terminal.New(terminal.Options{
		Gateway: cfg.Gateway,
		Build:   version.Version,
		Logger:  logger,
		Metrics: instruments,
		Tokens:  tokens,
	})
	if err := term.Start(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("initial connect failed, reconnecting in background")
	}
	defer term.Close()

	fmt.Fprintf(out, "tradterm terminal connected to %s\n", cfg.Gateway.URL)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	return nil
}

func spawnDetachedTerminal(out io.Writer, url string) error {
	if err := ensureTerminalNotRunning(); err != nil {
		return err
	}

	logDir := filepath.Join(config.StateDir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logPath := filepath.Join(logDir, "terminal.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		executable = "tradterm"
	}

	// Do NOT pass --detached to avoid an infinite spawn loop.
	childArgs := []string{"terminal", "start", "--url", url}
	c := exec.Command(executable, childArgs...)
	c.Stdout = logFile
	c.Stderr = logFile

	if err := c.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("start background process: %w", err)
	}
	logFile.Close()

	fmt.Fprintf(out, "tradterm terminal started in background (PID: %d)\n", c.Process.Pid)
	fmt.Fprintf(out, "Logs: %s\n", logPath)
	return nil
}

func runTerminalStop(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	pid, err := readTerminalPID()
	if err != nil {
		return fmt.Errorf("terminal not running (pid file missing)")
	}
	if !checkProcessRunning(pid) {
		_ = removeTerminalPID()
		return fmt.Errorf("terminal process not running (stale pid file)")
	}
	if err := terminateProcess(pid); err != nil {
		return fmt.Errorf("stop terminal (pid %d): %w", pid, err)
	}

	fmt.Fprintf(out, "Sent stop signal to terminal (PID %d)\n", pid)
	waitForProcessExit(pid, 3*time.Second)
	return nil
}

func newRuntimeLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func terminalPIDPath() string {
	return filepath.Join(config.StateDir(), "tradterm-terminal.pid")
}

func writeTerminalPID() error {
	if err := os.MkdirAll(config.StateDir(), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(terminalPIDPath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readTerminalPID() (int, error) {
	data, err := os.ReadFile(terminalPIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file")
	}
	return pid, nil
}

func removeTerminalPID() error {
	return os.Remove(terminalPIDPath())
}

func ensureTerminalNotRunning() error {
	if err := os.MkdirAll(config.StateDir(), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	lockPath := filepath.Join(config.StateDir(), "tradterm-terminal.lock")
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("check lock file: %w", err)
	}
	if !locked {
		return fmt.Errorf("terminal already running")
	}
	_ = fileLock.Unlock()
	return nil
}
