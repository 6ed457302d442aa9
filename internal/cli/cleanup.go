package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune stale session state files",
	Long: `Delete per-session state files that have not been touched recently.

State files are never deleted when a session stops, because some host
integrations fire Stop after every turn. This command is the retention hook.

Examples:
  cctally cleanup --older-than 720h            # Prune state idle for 30 days
  cctally cleanup --older-than 720h --dry-run  # Preview what would be pruned`,
	RunE: runCleanup,
}

// Flags
var (
	cleanupOlderThan time.Duration
	cleanupDryRun    bool
)

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "Prune state files idle for at least this long (e.g. 720h)")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Preview what would be pruned")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupOlderThan <= 0 {
		return fmt.Errorf("--older-than is required and must be positive")
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := newStateStore(cfg)
	if err != nil {
		return err
	}

	stale, err := store.StaleSessions(cleanupOlderThan)
	if err != nil {
		return fmt.Errorf("failed to list stale sessions: %w", err)
	}

	if len(stale) == 0 {
		fmt.Println("No stale session state to prune")
		return nil
	}

	if cleanupDryRun {
		fmt.Printf("Would prune %d session state file(s):\n", len(stale))
		for _, id := range stale {
			fmt.Printf("  - %s\n", id)
		}
		return nil
	}

	removed, err := store.Prune(stale)
	if err != nil {
		return fmt.Errorf("failed to prune state: %w", err)
	}
	fmt.Printf("Pruned %d session state file(s)\n", removed)
	return nil
}
