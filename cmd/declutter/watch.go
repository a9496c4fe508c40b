package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/declutter/pkg/client"
	"github.com/jamesainslie/declutter/pkg/declutter/output"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

var eventKinds = []types.EventKind{
	types.EventSweepFinished,
	types.EventQueueReplaced,
	types.EventQueueCleared,
	types.EventTabsClosed,
	types.EventReviewOpened,
	types.EventSettingsChanged,
	types.EventImportantChanged,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow what the daemon does",
	Long: `Print engine events as they happen: sweeps, review batches, closed
tabs and settings changes. Stop with Ctrl-C.

Examples:
  declutter watch
  declutter watch --kind tabs_closed --kind queue_replaced
  declutter watch -o json | jq .`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSlice("kind", nil, "only show these event kinds (repeatable)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	names, _ := cmd.Flags().GetStringSlice("kind")
	kinds, err := parseEventKinds(names)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths := daemonPaths(cfg)
	if !client.IsDaemonRunning(paths.PID) {
		return errDaemonNotRunning
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return err
	}
	defer c.Close()

	events, err := c.WatchEvents(ctx, kinds...)
	if err != nil {
		return err
	}

	format := viper.GetString("output")
	var buf bytes.Buffer
	for ev := range events {
		buf.Reset()
		if err := output.FormatEvent(&buf, format, ev); err != nil {
			return err
		}
		if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func parseEventKinds(names []string) ([]types.EventKind, error) {
	kinds := make([]types.EventKind, 0, len(names))
	for _, n := range names {
		k := types.EventKind(n)
		if !slices.Contains(eventKinds, k) {
			return nil, fmt.Errorf("unknown event kind %q (want one of %v)", n, eventKinds)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
