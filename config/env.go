package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DAILYBOARD_"

// loadFromEnv overlays environment variables onto cfg. Unset variables keep
// the value already present in cfg.
func loadFromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
