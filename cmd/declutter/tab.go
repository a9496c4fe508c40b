package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	declutterv1 "github.com/jamesainslie/declutter/pkg/api/declutter/v1"
	"github.com/jamesainslie/declutter/pkg/client"
)

var tabEventKinds = []string{declutterv1.TabActivated, declutterv1.TabUpdated, declutterv1.TabRemoved}

var tabCmd = &cobra.Command{
	Use:   "tab <activated|updated|removed> <tab-id>",
	Short: "Report a tab event to the daemon",
	Long: `Report a tab event on behalf of a browser the daemon is not attached to.
Bridges and scripts use this to feed activity into the tracker.

Examples:
  declutter tab activated 42
  declutter tab updated 42 --status complete --url https://example.com
  declutter tab removed 42`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: tabEventKinds,
	RunE:      runTab,
}

func init() {
	rootCmd.AddCommand(tabCmd)
	tabCmd.Flags().String("status", "", "load status for updated events (e.g. complete)")
	tabCmd.Flags().String("url", "", "new URL for updated events")
}

func runTab(cmd *cobra.Command, args []string) error {
	ev, err := buildTabEvent(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, c *client.Client) error {
		if err := c.TabEvent(ctx, ev); err != nil {
			return err
		}
		printVerbose("reported %s for tab %v", ev.Kind, ev.TabID)
		return nil
	})
}

func buildTabEvent(cmd *cobra.Command, kind, id string) (declutterv1.TabEventRequest, error) {
	if !slices.Contains(tabEventKinds, kind) {
		return declutterv1.TabEventRequest{}, fmt.Errorf("unknown tab event %q (want one of %v)", kind, tabEventKinds)
	}
	if id == "" {
		return declutterv1.TabEventRequest{}, errors.New("tab id must not be empty")
	}
	ev := declutterv1.TabEventRequest{Kind: kind, TabID: id}
	if kind == declutterv1.TabUpdated {
		ev.Status, _ = cmd.Flags().GetString("status")
		ev.URL, _ = cmd.Flags().GetString("url")
	}
	return ev, nil
}
