package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	markCompleteSuccess bool
	markCompleteNotes   string
	markCompleteForce   bool
)

var markCompleteCmd = &cobra.Command{
	Use:   "mark-complete FEATURE_ID",
	Short: "Report a feature's worker outcome and apply the retry policy",
	Long: `mark_complete: with --success, requires the worker's .done marker
(or an already-recorded completed/crashed WorkerStatus) to confirm the
worker actually finished, unless --force overrides that check. Without
--success, applies the retry policy: resets to pending if attempts remain,
or marks the feature permanently failed once the retry budget is
exhausted — either outcome is a normal return, never an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runMarkComplete,
}

func init() {
	markCompleteCmd.Flags().BoolVar(&markCompleteSuccess, "success", false, "Report success rather than failure")
	markCompleteCmd.Flags().StringVar(&markCompleteNotes, "notes", "", "Notes or failure reason")
	markCompleteCmd.Flags().BoolVar(&markCompleteForce, "force", false, "Operator override: accept success without a confirmed .done signal")
	rootCmd.AddCommand(markCompleteCmd)
}

func runMarkComplete(cmd *cobra.Command, args []string) error {
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

	retryScheduled, err := inst.Ops.MarkComplete(cmd.Context(), args[0], markCompleteSuccess, markCompleteNotes, markCompleteForce)
	if err != nil {
		return err
	}
	switch {
	case markCompleteSuccess:
		fmt.Fprintln(os.Stdout, "feature marked complete")
	case retryScheduled:
		fmt.Fprintln(os.Stdout, "failure recorded, retry scheduled")
	default:
		fmt.Fprintln(os.Stdout, "failure recorded, retry budget exhausted: feature is now failed")
	}
	return nil
}
