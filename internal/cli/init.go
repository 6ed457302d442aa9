package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create ledger files with their current headers",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	w, err := newLedgerWriter(cfg)
	if err != nil {
		return err
	}

	if err := w.InitAll(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize ledgers: %w", err)
	}

	fmt.Printf("Initialized ledgers in %s\n", cfg.DataDir)
	return nil
}
