package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/declutter/pkg/client"
	"github.com/jamesainslie/declutter/pkg/declutter/output"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the declutter policy",
	Long: `The policy is stored by the daemon and survives restarts. The
defaults section of the config file only seeds a fresh install.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current policy",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the policy",
	Long: `Change one or more policy fields. Fields that are not given keep their
current value.

Examples:
  declutter settings set --threshold 120
  declutter settings set --auto-approve=true --period 10`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

var errEmptyPatch = errors.New("nothing to change: pass --threshold, --auto-approve or --period")

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	addSettingsFlags(settingsSetCmd)
}

func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", 0, "idle minutes before a tab is offered for closing (>= 1)")
	cmd.Flags().Bool("auto-approve", false, "close idle tabs without review")
	cmd.Flags().Float64("period", 0, "minutes between sweeps (> 0)")
}

func runSettingsShow(_ *cobra.Command, _ []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		cfg, _, err := c.TabState(ctx, "")
		if err != nil {
			return err
		}
		return render(&output.Report{Settings: &cfg})
	})
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	patch, err := buildPatch(cmd)
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, c *client.Client) error {
		cfg, err := c.UpdateSettings(ctx, patch)
		if err != nil {
			return err
		}
		return render(&output.Report{Settings: &cfg})
	})
}

// buildPatch turns the changed flags into a settings patch, rejecting
// values the policy cannot use before anything is sent.
func buildPatch(cmd *cobra.Command) (map[string]any, error) {
	flags := cmd.Flags()
	patch := map[string]any{}

	if flags.Changed("threshold") {
		v, _ := flags.GetFloat64("threshold")
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
			return nil, fmt.Errorf("--threshold must be at least 1 minute, got %v", v)
		}
		patch[settings.FieldThresholdMinutes] = v
	}
	if flags.Changed("auto-approve") {
		v, _ := flags.GetBool("auto-approve")
		patch[settings.FieldAutoApprove] = v
	}
	if flags.Changed("period") {
		v, _ := flags.GetFloat64("period")
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, fmt.Errorf("--period must be greater than 0, got %v", v)
		}
		patch[settings.FieldAlarmPeriodMinutes] = v
	}

	if len(patch) == 0 {
		return nil, errEmptyPatch
	}
	return patch, nil
}
