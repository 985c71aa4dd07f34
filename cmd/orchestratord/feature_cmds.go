package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/orchestratord/internal/ops"
)

var (
	addFeatureDescription string
	addFeatureDependsOn   []string
	addFeatureMaxRetries  int
)

var addFeatureCmd = &cobra.Command{
	Use:   "add-feature FEATURE_ID",
	Short: "Append a new pending feature to the session",
	Long: `add_feature: appends a pending feature with the given id and
description. Dependencies must name existing features and must not form a
cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: runAddFeature,
}

var setDependenciesCmd = &cobra.Command{
	Use:   "set-dependencies FEATURE_ID [DEP_ID...]",
	Short: "Replace a feature's dependency set",
	Long: `set_dependencies: replaces FEATURE_ID's dependsOn set with the given
ids (possibly none, clearing it). Unknown ids and cycles are rejected
before anything is written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSetDependencies,
}

func init() {
	addFeatureCmd.Flags().StringVar(&addFeatureDescription, "description", "", "Feature description (required)")
	addFeatureCmd.Flags().StringSliceVar(&addFeatureDependsOn, "depends-on", nil, "Feature ids this feature depends on")
	addFeatureCmd.Flags().IntVar(&addFeatureMaxRetries, "max-retries", 0, "Retry budget override (0 = configured default)")

	rootCmd.AddCommand(addFeatureCmd, setDependenciesCmd)
}

func runAddFeature(cmd *cobra.Command, args []string) error {
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
	err = inst.Ops.AddFeature(ops.FeatureInput{
		ID:          args[0],
		Description: addFeatureDescription,
		DependsOn:   addFeatureDependsOn,
		MaxRetries:  addFeatureMaxRetries,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "feature %s added\n", args[0])
	return nil
}

func runSetDependencies(cmd *cobra.Command, args []string) error {
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
	if err := inst.Ops.SetDependencies(args[0], args[1:]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "dependencies for %s set to %s\n", args[0], joinOrDash(args[1:]))
	return nil
}
