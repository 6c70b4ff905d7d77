package main

import (
	"context"
	"fmt"

	"github.com/teremich/spotify-true-random/internal/formatter"
	"github.com/teremich/spotify-true-random/internal/repositories"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints the most recent replay runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	limit := cmd.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := shared.OpenHistory(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(map[string]any{
		"limit":  limit,
		"status": cmd.String("status"),
	})
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, format, runs); err != nil {
			return err
		}
		r.logger.Info("history written", "path", path, "runs", len(runs))
		return nil
	}
	return formatter.Write(r.output, format, runs)
}
