package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/orbitune/internal/repositories"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the example config when none exists and initializes the configured storage,
// running migrations for SQLite.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.logger.Info("config file created", "path", configPath)
	}

	r.logger.Info("initializing storage", "driver", r.config.Storage.Driver)

	storage, err := repositories.Open(ctx, r.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := storage.Close(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config: %s\n", configPath)
	r.writePlain("Storage: %s\n", r.config.Storage.Driver)
	return nil
}
