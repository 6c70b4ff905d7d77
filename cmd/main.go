package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "1.0.0"

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	shared.SetLogLevel(logger, os.Getenv(shared.EnvLogLevel))

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:           "shuffler",
		Usage:          "Play your Spotify playlists in true random order",
		Version:        version,
		DefaultCommand: "serve",
		Commands:       runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
