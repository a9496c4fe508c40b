package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/declutter/pkg/declutter/config"
	"github.com/jamesainslie/declutter/pkg/declutter/manifest"
	"github.com/jamesainslie/declutter/pkg/declutter/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List tabs declutter closed",
	Long: `List the tabs declutter closed, newest first.

Every close, from the review batch or by auto-approve, is recorded with
the titles and URLs of the tabs so they can be found again. The history
is read from disk and does not need the daemon.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the tabs closed by one operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove history entries older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show (0 for all)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory returns the history at the configured directory.
func openHistory() (*manifest.Manifest, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	m, err := manifest.New(cfg.HistoryDir())
	if err != nil {
		return nil, nil, fmt.Errorf("opening history: %w", err)
	}
	return m, cfg, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	m, cfg, err := openHistory()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		printVerbose("history recording is disabled; showing existing entries")
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	var buf bytes.Buffer
	if err := output.FormatHistory(&buf, viper.GetString("output"), entries, time.Now()); err != nil {
		return err
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return err
	}
	if len(entries) > 0 {
		printVerbose("use 'declutter history show <id>' for the tabs of one entry")
	}
	return nil
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	m, _, err := openHistory()
	if err != nil {
		return err
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := output.FormatHistoryEntry(&buf, viper.GetString("output"), entry); err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	m, cfg, err := openHistory()
	if err != nil {
		return err
	}

	days := cfg.History.RetentionDays
	if days <= 0 {
		days = config.DefaultHistoryRetentionDays
	}

	removed, err := m.Cleanup(days)
	if err != nil {
		return fmt.Errorf("cleaning history: %w", err)
	}
	printInfo("Removed %d %s older than %d days", removed, plural(removed, "entry", "entries"), days)
	return nil
}
