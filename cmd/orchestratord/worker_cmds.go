package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/orchestratord/internal/ops"
)

var (
	startWorkerPrompt string
	checkHeartbeat    bool
	checkCursor       int64
	sendMessageText   string
)

var startWorkerCmd = &cobra.Command{
	Use:   "start-worker FEATURE_ID",
	Short: "Admit and spawn a worker session for a feature",
	Long: `start_worker: admits FEATURE_ID (pending, dependencies satisfied,
retry budget remaining) and spawns a detached terminal-multiplexer session
running the configured agent binary against the --prompt text, which is
handed to the worker as given.`,
	Args: cobra.ExactArgs(1),
	RunE: runStartWorker,
}

var startParallelCmd = &cobra.Command{
	Use:   "start-parallel-workers FEATURE_ID...",
	Short: "Validate and spawn workers for multiple features atomically",
	Long: `start_parallel_workers: validates every given feature id (unknown
id, non-pending, unmet dependency, duplicate) before spawning anything; a
single validation failure refuses the whole batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStartParallelWorkers,
}

var checkWorkerCmd = &cobra.Command{
	Use:   "check-worker FEATURE_ID",
	Short: "Poll a feature's worker session",
	Long: `check_worker: prints the sanitised log tail by default (resuming
from --cursor if given), or with --heartbeat, a compact { status,
lastToolUsed, lastFile, lastActivity, runningFor } summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckWorker,
}

var checkAllWorkersCmd = &cobra.Command{
	Use:   "check-all-workers",
	Short: "Poll every in-flight worker session",
	RunE:  runCheckAllWorkers,
}

var sendWorkerMessageCmd = &cobra.Command{
	Use:   "send-worker-message FEATURE_ID",
	Short: "Write a message to a running worker's inbox file and nudge its session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSendWorkerMessage,
}

func init() {
	startWorkerCmd.Flags().StringVar(&startWorkerPrompt, "prompt", "", "Prompt text handed to the worker (required)")
	startParallelCmd.Flags().StringVar(&startWorkerPrompt, "prompt", "", "Prompt text handed to every worker in the batch")
	checkWorkerCmd.Flags().BoolVar(&checkHeartbeat, "heartbeat", false, "Return the compact heartbeat summary instead of the raw log tail")
	checkWorkerCmd.Flags().Int64Var(&checkCursor, "cursor", 0, "Byte offset to resume the log tail from (a prior call's next cursor)")
	checkAllWorkersCmd.Flags().BoolVar(&checkHeartbeat, "heartbeat", false, "Return the compact heartbeat summary instead of the raw log tail")
	sendWorkerMessageCmd.Flags().StringVar(&sendMessageText, "text", "", "Message text (required)")

	rootCmd.AddCommand(startWorkerCmd, startParallelCmd, checkWorkerCmd, checkAllWorkersCmd, sendWorkerMessageCmd)
}

func runStartWorker(cmd *cobra.Command, args []string) error {
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

	ws, err := inst.Ops.StartWorker(cmd.Context(), args[0], startWorkerPrompt)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "started worker %s for feature %s\n", ws.SessionName, args[0])
	return nil
}

func runStartParallelWorkers(cmd *cobra.Command, args []string) error {
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

	reqs := make([]ops.ParallelStartRequest, len(args))
	for i, id := range args {
		reqs[i] = ops.ParallelStartRequest{FeatureID: id, Prompt: startWorkerPrompt}
	}
	results, err := inst.Ops.StartParallelWorkers(cmd.Context(), reqs)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stdout, "%s: error: %v\n", r.FeatureID, r.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: started worker %s\n", r.FeatureID, r.SessionName)
	}
	return nil
}

func runCheckWorker(cmd *cobra.Command, args []string) error {
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

	result, err := inst.Ops.CheckWorker(cmd.Context(), args[0], checkCursor, checkHeartbeat)
	if err != nil {
		return err
	}
	return renderCheckResult(args[0], result)
}

func runCheckAllWorkers(cmd *cobra.Command, args []string) error {
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

	results, err := inst.Ops.CheckAllWorkers(cmd.Context(), checkHeartbeat)
	if err != nil {
		return err
	}
	for featureID, result := range results {
		if err := renderCheckResult(featureID, result); err != nil {
			return err
		}
	}
	return nil
}

func renderCheckResult(featureID string, result ops.CheckResult) error {
	if outputFlag == "json" {
		data, err := marshalJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", featureID, string(data))
		return nil
	}
	if result.Heartbeat != nil {
		hb := result.Heartbeat
		fmt.Fprintf(os.Stdout, "%s: %s tool=%s file=%s running_for=%s\n", featureID, hb.Status, dashIfEmpty(hb.LastToolUsed), dashIfEmpty(hb.LastFile), hb.RunningFor)
		return nil
	}
	fmt.Fprintf(os.Stdout, "--- %s (next cursor %d) ---\n%s\n", featureID, result.NextCursor, result.LogTail)
	return nil
}

func runSendWorkerMessage(cmd *cobra.Command, args []string) error {
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
	if err := inst.Ops.SendWorkerMessage(cmd.Context(), args[0], sendMessageText); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "message sent")
	return nil
}
