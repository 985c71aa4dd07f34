package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyTimeoutSec int

var runVerificationCmd = &cobra.Command{
	Use:   "run-verification COMMAND",
	Short: "Run an allow-listed verification command",
	Long: `run_verification: tokenises COMMAND, rejects it outright if it does
not match any entry of the built-in verification command allow-list, and
otherwise executes it by argv (never through a shell), capped at a wall
clock timeout and bounded captured output.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunVerification,
}

func init() {
	runVerificationCmd.Flags().IntVar(&verifyTimeoutSec, "timeout", 0, "Timeout in seconds (default: 300)")
	rootCmd.AddCommand(runVerificationCmd)
}

func runRunVerification(cmd *cobra.Command, args []string) error {
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

	result, err := inst.Ops.RunVerification(cmd.Context(), args[0], verifyTimeoutSec)
	if err != nil {
		return err
	}

	if outputFlag == "json" {
		data, err := marshalJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	fmt.Fprintf(os.Stdout, "exit=%d ok=%v duration=%dms\n--- stdout ---\n%s\n--- stderr ---\n%s\n",
		result.ExitCode, result.Ok, result.DurationMs, result.Stdout, result.Stderr)
	if !result.Ok {
		code := result.ExitCode
		if code == 0 {
			code = 1
		}
		os.Exit(code)
	}
	return nil
}
