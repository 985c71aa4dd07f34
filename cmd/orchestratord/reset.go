package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resetConfirm bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Kill all workers and clear session state for this project",
	Long: `orchestrator_reset: kills every live worker session and removes
state.json, feature_list.json, and the notebook. Requires --confirm; this
is the one operation in this system that is destructive and irreversible
from the orchestrator's point of view.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "confirm", false, "Required: confirms the destructive reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
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

	if err := inst.Ops.Reset(cmd.Context(), resetConfirm); err != nil {
		return err
	}
	reg.Teardown(projectDir)
	fmt.Fprintln(os.Stdout, "session reset")
	return nil
}
