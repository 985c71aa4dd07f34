package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var commitMessageFlag string

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the session, killing all running workers",
	Long: `pause_session: flips the session to paused and best-effort kills
every live worker session. Features that were in_progress return to
pending with their worker record cleared; restart them with start-worker
after resume.`,
	RunE: runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused session",
	Long: `resume_session: flips a paused session back to in_progress and
restarts the completion monitor. Workers are not relaunched automatically;
a paused worker's process is gone, not suspended.`,
	RunE: runResume,
}

var commitProgressCmd = &cobra.Command{
	Use:   "commit-progress",
	Short: "Commit the project's working tree and journal the result",
	Long: `commit_progress: runs "git commit -am <message>" through the
verification runner's allow-list from the project directory, then appends
a journal entry. Fails if the project directory is not a git repository.`,
	RunE: runCommitProgress,
}

func init() {
	commitProgressCmd.Flags().StringVarP(&commitMessageFlag, "message", "m", "", "Commit message (required)")

	rootCmd.AddCommand(pauseCmd, resumeCmd, commitProgressCmd)
}

func runPause(cmd *cobra.Command, args []string) error {
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
	if err := inst.Ops.PauseSession(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "session paused")
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
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
	if err := inst.Ops.ResumeSession(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "session resumed")
	return nil
}

func runCommitProgress(cmd *cobra.Command, args []string) error {
	if commitMessageFlag == "" {
		return fmt.Errorf("--message is required")
	}
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
	result, err := inst.Ops.CommitProgress(cmd.Context(), commitMessageFlag)
	if err != nil {
		return err
	}
	if !result.Ok {
		fmt.Fprintf(os.Stdout, "commit failed (exit %d):\n%s\n", result.ExitCode, result.Stderr)
		code := result.ExitCode
		if code == 0 {
			code = 1
		}
		os.Exit(code)
	}
	fmt.Fprintln(os.Stdout, "progress committed")
	return nil
}
