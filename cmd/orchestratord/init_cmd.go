package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/orchestratord/internal/ops"
)

var (
	initTask     string
	initFeatures []string
	initReplace  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new orchestration session for this project",
	Long: `orchestrator_init: creates (or, with --replace, clobbers) a Session
with every named feature pending, and regenerates init.sh.

Each --feature value has the shape "id:description[:dep1,dep2,...]", e.g.:

  orchestratord init --task "ship login" \
    --feature "auth:add OAuth login" \
    --feature "ui:wire login button:auth"`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initTask, "task", "", "Task description for the session")
	initCmd.Flags().StringArrayVar(&initFeatures, "feature", nil, `Feature spec "id:description[:dep1,dep2]" (repeatable)`)
	initCmd.Flags().BoolVar(&initReplace, "replace", false, "Replace an existing session for this project directory")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir, err := resolveProjectDir()
	if err != nil {
		return err
	}

	features := make([]ops.FeatureInput, 0, len(initFeatures))
	for _, spec := range initFeatures {
		in, err := parseFeatureSpec(spec)
		if err != nil {
			return err
		}
		features = append(features, in)
	}

	reg, err := newRegistry()
	if err != nil {
		return err
	}
	inst, err := reg.Get(cmd.Context(), projectDir)
	if err != nil {
		return err
	}

	sess, err := inst.Ops.Init(projectDir, initTask, features, initReplace)
	if err != nil {
		return err
	}
	return renderSession(cmd, sess)
}

// parseFeatureSpec parses "id:description[:dep1,dep2]" into a
// FeatureInput. The description may itself contain colons; only the first
// and (if present) last colon are treated as separators, so
// "id:fix: handle nil:dep1" is description "fix: handle nil" with
// dependsOn ["dep1"]. Text after the last colon that looks like an
// identifier list is always taken as dependsOn, so a description cannot
// end in such a segment.
func parseFeatureSpec(spec string) (ops.FeatureInput, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) < 2 {
		return ops.FeatureInput{}, fmt.Errorf("invalid --feature %q: expected id:description[:deps]", spec)
	}
	id := strings.TrimSpace(parts[0])
	rest := parts[1]

	description := rest
	var dependsOn []string
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		candidate := strings.TrimSpace(rest[idx+1:])
		if candidate != "" && looksLikeDependencyList(candidate) {
			description = rest[:idx]
			for _, dep := range strings.Split(candidate, ",") {
				dependsOn = append(dependsOn, strings.TrimSpace(dep))
			}
		}
	}

	return ops.FeatureInput{ID: id, Description: strings.TrimSpace(description), DependsOn: dependsOn}, nil
}

// looksLikeDependencyList is a conservative heuristic: a dependsOn segment
// must look like a comma-separated list of identifiers (the same character
// class feature ids use), so prose ending in, say, "...see: the README."
// isn't misparsed as a dependency list. A single identifier-like word such
// as "none" after the last colon still reads as a dependency.
func looksLikeDependencyList(s string) bool {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return false
		}
		for _, r := range part {
			if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
	}
	return true
}

// marshalJSON is a tiny local helper so each command file doesn't repeat
// the indentation options.
func marshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
