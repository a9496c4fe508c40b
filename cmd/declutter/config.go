package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/declutter/pkg/declutter/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage declutter configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/declutter/config.yaml (if set)
  2. ~/.config/declutter/config.yaml

Environment variables override config file settings using the DECLUTTER_ prefix:
  DECLUTTER_BROWSER_CDP_URL=http://127.0.0.1:9222
  DECLUTTER_DEFAULTS_THRESHOLD_MINUTES=120
  DECLUTTER_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.
A running daemon picks up changes to the media section without a restart.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.File != "" {
		fmt.Printf("Config file: %s\n\n", cfg.File)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("defaults.threshold_minutes:    %v\n", cfg.Defaults.ThresholdMinutes)
	fmt.Printf("defaults.auto_approve:         %t\n", cfg.Defaults.AutoApprove)
	fmt.Printf("defaults.alarm_period_minutes: %v\n", cfg.Defaults.AlarmPeriodMinutes)
	fmt.Printf("media.patterns:                %v\n", cfg.Media.Patterns)
	fmt.Printf("media.probe_timeout:           %s\n", cfg.Media.ProbeTimeout)
	fmt.Printf("browser.cdp_url:               %s\n", orNone(cfg.Browser.CDPURL))
	fmt.Printf("browser.review_url:            %s\n", cfg.Browser.ReviewURL)
	fmt.Printf("logging.level:                 %s\n", cfg.Logging.Level)
	fmt.Printf("logging.path:                  %s\n", cfg.LoggingConfig().Path)
	fmt.Printf("daemon.auto_start:             %t\n", cfg.Daemon.AutoStart)
	fmt.Printf("daemon.socket_path:            %s\n", cfg.SocketPath())
	fmt.Printf("daemon.pid_path:               %s\n", cfg.PIDPath())
	fmt.Printf("daemon.db_path:                %s\n", cfg.DBPath())

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	overrides := envOverrides(os.Environ())
	if len(overrides) == 0 {
		fmt.Println("(none)")
	}
	for _, kv := range overrides {
		fmt.Println(kv)
	}

	return nil
}

// envOverrides returns the DECLUTTER_ variables in env.
func envOverrides(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "DECLUTTER_") {
			out = append(out, kv)
		}
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none, daemon runs detached)"
	}
	return s
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(_ *cobra.Command, _ []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configPath, err := config.ConfigFile()
	if err != nil {
		return err
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigFile()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'declutter config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigFile()
	if err != nil {
		return err
	}

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}
