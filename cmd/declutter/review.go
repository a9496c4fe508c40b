package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/declutter/pkg/client"
	"github.com/jamesainslie/declutter/pkg/declutter/output"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect and act on the review batch",
	Long: `The review batch holds the idle tabs found by the latest sweep. Close
them all, or clear the batch to keep them open.`,
}

var reviewListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tabs waiting for review",
	Args:    cobra.NoArgs,
	RunE:    runReviewList,
}

var reviewCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close every tab in the review batch",
	Args:  cobra.NoArgs,
	RunE:  runReviewClose,
}

var reviewClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the review batch without closing anything",
	Args:  cobra.NoArgs,
	RunE:  runReviewClear,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewCloseCmd)
	reviewCmd.AddCommand(reviewClearCmd)
}

func runReviewList(_ *cobra.Command, _ []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		cands, cfg, err := c.ReviewCandidates(ctx)
		if err != nil {
			return err
		}
		return render(&output.Report{Candidates: nonNil(cands), Settings: &cfg})
	})
}

func runReviewClose(_ *cobra.Command, _ []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		closed, err := c.CloseReview(ctx)
		if err != nil {
			return err
		}
		printInfo("Closed %d %s", closed, plural(closed, "tab", "tabs"))
		return nil
	})
}

func runReviewClear(_ *cobra.Command, _ []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		if err := c.ClearReview(ctx); err != nil {
			return err
		}
		printInfo("Review batch cleared")
		return nil
	})
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// nonNil keeps an empty batch printable as an empty table.
func nonNil(cands []types.Candidate) []types.Candidate {
	if cands == nil {
		return []types.Candidate{}
	}
	return cands
}
