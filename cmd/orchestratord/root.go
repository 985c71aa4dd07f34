package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/boshu2/orchestratord/internal/config"
	"github.com/boshu2/orchestratord/internal/registry"
)

var (
	projectDirFlag string
	outputFlag     string
	verboseFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "orchestratord",
	Short: "Durable multi-agent feature supervisor",
	Long: `orchestratord supervises a fleet of externally spawned coding-agent
processes to completion on a decomposed task: it tracks feature and worker
state durably on disk, enforces dependency ordering, retries failures, and
journals everything that happened in a human-readable notebook.

Every subcommand below is a thin wrapper over the orchestrator's boundary
operations layer; state always lives under
<project-dir>/.claude/orchestrator/, so these commands are safe to run from
any directory as long as --project-dir points at the right place.`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting nonzero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cwd, _ := os.Getwd()
	rootCmd.PersistentFlags().StringVar(&projectDirFlag, "project-dir", cwd, "Project directory to operate on")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug-level logging")
}

// newLogger builds the process-wide zerolog.Logger threaded into every
// component, writing human-readable console output to stderr so stdout
// stays reserved for command output (table/json).
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// newRegistry loads configuration and constructs a Registry. Each CLI
// invocation is its own short-lived process, so the registry it builds is
// local to that invocation — orchestratord serve is the one subcommand
// that keeps it (and therefore the monitor) alive past a single operation.
func newRegistry() (*registry.Registry, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return registry.New(cfg, newLogger()), nil
}

// resolveProjectDir validates the --project-dir flag once per command.
func resolveProjectDir() (string, error) {
	return registry.Resolve(projectDirFlag)
}
