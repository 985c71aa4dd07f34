package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run resident, polling workers until signaled to stop",
	Long: `serve keeps the process alive with the completion monitor running
against --project-dir, reconciling worker .done markers and crashed
sessions into state on every poll. On SIGINT or SIGTERM it stops the
monitor, flushes state, and best-effort kills every live worker session
before exiting.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	projectDir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	// Get starts the project's monitor as a side effect; serve's only extra
	// job is to stay alive until a signal arrives.
	if _, err := reg.Get(cmd.Context(), projectDir); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return reg.Shutdown(ctx)
}
