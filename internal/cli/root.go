package cli

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cctally",
	Short: "Usage telemetry for AI coding-assistant sessions",
	Long: `cctally turns coding-assistant lifecycle events into durable usage records.

The host runtime invokes "cctally hook" once per event; the engine updates
per-session state and appends rows to the category ledgers (sessions, turns,
tools, costs, prompts, git operations, compactions, commits).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// The host runtime may close our output stream early; that is a
		// normal shutdown, not a failure.
		if isBrokenPipe(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}

func init() {
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
}
