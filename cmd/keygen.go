package main

import (
	"context"
	"encoding/hex"

	"github.com/teremich/spotify-true-random/internal/session"
	"github.com/urfave/cli/v3"
)

// Keygen prints a hex session key.
func (r *Runner) Keygen(ctx context.Context, cmd *cli.Command) error {
	key, err := session.GenerateKey()
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", hex.EncodeToString(key))
}
