// Package main provides declutterd, the daemon that tracks tab activity,
// sweeps idle tabs and serves the declutter API on a unix socket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/declutter/pkg/daemon"
	"github.com/jamesainslie/declutter/pkg/declutter/config"
	"github.com/jamesainslie/declutter/pkg/declutter/logging"
)

// Set by go build -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile      string
	consoleLevel string
)

var rootCmd = &cobra.Command{
	Use:           "declutterd",
	Short:         "Tab idle policy daemon",
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("declutterd {{.Version}} (commit %s, built %s)\n", commit, date))
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/declutter/config.yaml)")
	rootCmd.Flags().StringVar(&consoleLevel, "console", "", "also log to stderr at this level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "declutterd: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.ConsoleLevel = consoleLevel
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := daemon.Run(ctx, cfg); err != nil {
		logging.Get("daemon").Error("daemon exited", "error", err)
		return err
	}
	return nil
}
