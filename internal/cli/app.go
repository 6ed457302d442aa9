package cli

import (
	"path/filepath"
	"time"

	"github.com/cctally/cctally/internal/domain"
	"github.com/cctally/cctally/internal/gitinfo"
	"github.com/cctally/cctally/internal/infrastructure/config"
	"github.com/cctally/cctally/internal/ledger"
	"github.com/cctally/cctally/internal/state"
	"github.com/cctally/cctally/internal/tracker"
)

// repoCacheTTL bounds how long repository facts are reused before git is
// queried again.
const repoCacheTTL = 15 * time.Minute

// testSettingsOverride redirects data and state directories in tests.
var testSettingsOverride *config.Settings

func loadSettings() (*config.Settings, error) {
	if testSettingsOverride != nil {
		return testSettingsOverride, nil
	}
	return config.Load()
}

func newLedgerWriter(cfg *config.Settings) (*ledger.Writer, error) {
	return ledger.NewWriter(cfg.DataDir, cfg.WriteRetries)
}

func newStateStore(cfg *config.Settings) (*state.Store, error) {
	return state.NewStore(cfg.StateDir)
}

// buildTracker assembles the event pipeline from settings.
func buildTracker(cfg *config.Settings) (*tracker.Tracker, error) {
	w, err := newLedgerWriter(cfg)
	if err != nil {
		return nil, err
	}
	s, err := newStateStore(cfg)
	if err != nil {
		return nil, err
	}
	pricing, err := domain.NewPricingTable(cfg.PricingFile)
	if err != nil {
		return nil, err
	}
	repo := gitinfo.NewResolver(filepath.Join(cfg.StateDir, "repo-cache.json"), repoCacheTTL)
	return tracker.New(w, s, repo, pricing), nil
}
