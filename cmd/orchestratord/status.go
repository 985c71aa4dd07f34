package main

import (
	"github.com/spf13/cobra"
)

var statusFeatureFlag string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session, or a single feature's detail",
	Long: `orchestrator_status (and the supplemented get_feature/list_features
read-only operations): prints the whole session as a table, or with
--feature, just that feature's detail. --output json dumps the sanitised
Session (or Feature) as formatted JSON.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFeatureFlag, "feature", "", "Show only this feature's detail")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if statusFeatureFlag != "" {
		f, err := inst.Ops.GetFeature(statusFeatureFlag)
		if err != nil {
			return err
		}
		return renderFeature(f)
	}

	sess, err := inst.Ops.Status()
	if err != nil {
		return err
	}
	return renderSession(cmd, sess)
}
