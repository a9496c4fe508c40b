package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/declutter/pkg/client"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep now and open the review page",
	Long: `Run a sweep immediately instead of waiting for the next alarm, then
bring the review page to the front.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			if err := c.RunNow(ctx); err != nil {
				return err
			}
			printInfo("Sweep finished")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
