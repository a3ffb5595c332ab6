package main

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/placegw/internal/config"
	"github.com/vyrodovalexey/placegw/internal/observability"
)

// loadConfig loads and validates the configuration. A missing file yields
// the defaults, which still need a signing secret to validate.
func loadConfig(configPath string, logger observability.Logger) (*config.GatewayConfig, error) {
	var cfg *config.GatewayConfig

	path, err := config.ResolveConfigPath(configPath)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		logger.Warn("configuration file not found, using defaults",
			observability.String("config", configPath),
		)
		cfg = config.DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	default:
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("configuration loaded",
		observability.String("config", path),
		observability.Int("backends", len(cfg.Backends)),
		observability.Int("routes", len(cfg.Routes)),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled),
		observability.Bool("vault_secret", cfg.Auth.JWT.Vault.Enabled()),
	)

	return cfg, nil
}
