package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cctally/cctally/internal/ledger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate ledger files to the current schema",
	Long: `Checks every ledger file's header against the current schema and rewrites
any that have drifted. Rows are remapped by column name; the original file is
kept next to the migrated one with a .bak suffix.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	w, err := newLedgerWriter(cfg)
	if err != nil {
		return err
	}

	migrated := 0
	for _, c := range ledger.AllCategories() {
		did, err := w.Ensure(c)
		if err != nil {
			return fmt.Errorf("failed to migrate %s: %w", c, err)
		}
		if did {
			fmt.Printf("Migrated %s (backup at %s.bak)\n", c, w.Path(c))
			migrated++
		}
	}

	if migrated == 0 {
		fmt.Println("All ledgers up to date")
	}
	return nil
}
