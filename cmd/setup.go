package main

import (
	"context"
	"fmt"
	"os"

	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing and migrates the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("using existing config file", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	config, err := r.loadConfig(configPath)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenHistory(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	r.writePlain("✓ config: %s\n", configPath)
	r.writePlain("✓ database: %s\n", config.Database.Path)
	if config.Credentials.Spotify.ClientID == "" {
		r.writePlain("\nNext: set %s and %s (or fill in [credentials.spotify]) and run `shuffler serve`.\n",
			shared.EnvClientID, shared.EnvClientSecret)
	}
	return nil
}
