package config

import (
	"github.com/kelseyhightower/envconfig"

	"github.com/cctally/cctally/internal/util"
)

// Settings holds runtime configuration for the telemetry engine.
type Settings struct {
	DataDir       string `envconfig:"CCTALLY_DATA_DIR"`
	StateDir      string `envconfig:"CCTALLY_STATE_DIR"`
	MaxInputBytes int64  `envconfig:"CCTALLY_MAX_INPUT_BYTES" default:"10485760"`
	WriteRetries  int    `envconfig:"CCTALLY_WRITE_RETRIES" default:"5"`
	PricingFile   string `envconfig:"CCTALLY_PRICING_FILE"`
}

// Load reads settings from environment variables, falling back to the
// XDG directories when no explicit paths are configured.
func Load() (*Settings, error) {
	var cfg Settings
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		dir, err := util.GetXDGDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if cfg.StateDir == "" {
		dir, err := util.GetXDGStateDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}

	return &cfg, nil
}
