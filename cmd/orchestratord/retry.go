package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var retryFeatureCmd = &cobra.Command{
	Use:   "retry-feature FEATURE_ID",
	Short: "Reset a failed feature's retry budget",
	Long:  `retry_feature: resets attempts to 0 and status to pending. A no-op if the feature is already pending.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRetryFeature,
}

func init() {
	rootCmd.AddCommand(retryFeatureCmd)
}

func runRetryFeature(cmd *cobra.Command, args []string) error {
	projectDir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	inst, err := reg.Get(cmd.Context(), projectDir)
	if err != nil {
		return err
	}
	if err := inst.Ops.RetryFeature(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "feature reset to pending")
	return nil
}
