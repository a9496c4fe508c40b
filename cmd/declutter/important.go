package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/declutter/pkg/client"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

var importantCmd = &cobra.Command{
	Use:   "important",
	Short: "Mark tabs that must never be offered for closing",
}

var importantToggleCmd = &cobra.Command{
	Use:   "toggle <tab-id>",
	Short: "Flip the important flag of a tab",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportantToggle,
}

var importantStateCmd = &cobra.Command{
	Use:   "state <tab-id>",
	Short: "Show whether a tab is important",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportantState,
}

func init() {
	rootCmd.AddCommand(importantCmd)
	importantCmd.AddCommand(importantToggleCmd)
	importantCmd.AddCommand(importantStateCmd)
}

func runImportantToggle(_ *cobra.Command, args []string) error {
	id := types.TabID(args[0])
	return withClient(func(ctx context.Context, c *client.Client) error {
		important, err := c.ToggleImportant(ctx, id)
		if err != nil {
			return err
		}
		printInfo("Tab %s %s", id, importantLabel(important))
		return nil
	})
}

func runImportantState(_ *cobra.Command, args []string) error {
	id := types.TabID(args[0])
	return withClient(func(ctx context.Context, c *client.Client) error {
		_, important, err := c.TabState(ctx, id)
		if err != nil {
			return err
		}
		printInfo("Tab %s %s", id, importantLabel(important))
		return nil
	})
}

func importantLabel(important bool) string {
	if important {
		return "is important"
	}
	return "is not important"
}
