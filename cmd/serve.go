package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teremich/spotify-true-random/internal/reporting"
	"github.com/teremich/spotify-true-random/internal/repositories"
	"github.com/teremich/spotify-true-random/internal/server"
	"github.com/teremich/spotify-true-random/internal/services"
	"github.com/teremich/spotify-true-random/internal/session"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/teremich/spotify-true-random/internal/tasks"
	"github.com/urfave/cli/v3"
)

const enqueueRetryInterval = 500 * time.Millisecond

// Serve starts the web service and blocks until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}
	if err := config.Validate(); err != nil {
		return err
	}
	shared.SetLogLevel(r.logger, config.Log.Level)

	flush, err := reporting.Init(config.Sentry, "shuffler@"+version)
	if err != nil {
		return fmt.Errorf("failed to initialize error reporting: %w", err)
	}
	defer flush()

	srv, cleanup, err := r.buildServer(config)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(srv.LoginURL()); err != nil {
			r.logger.Warn("failed to open browser", "url", srv.LoginURL(), "error", err)
		}
	}

	return srv.ListenAndServe(ctx)
}

// buildServer wires codec, provider, history and replay engine into a [server.Server].
//
// History is optional: when the database cannot be opened runs are simply not recorded.
func (r *Runner) buildServer(config *shared.Config) (*server.Server, func(), error) {
	cleanup := func() {}

	key, ephemeral, err := session.KeyFromConfig(config.Session.Key)
	if err != nil {
		return nil, cleanup, err
	}
	if ephemeral {
		r.logger.Warn("no session key configured, tokens will not survive a restart", "hint", "shuffler keygen")
	}
	codec, err := session.NewCodec(key)
	if err != nil {
		return nil, cleanup, err
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify, config.RedirectURI())
	if err != nil {
		return nil, cleanup, err
	}
	spotify.SetHTTPClient(r.httpClient)
	spotify.SetTimeout(config.ProviderTimeout())
	spotify.SetPageSize(config.Playback.PageSize)
	spotify.SetEnqueueRetries(config.Playback.EnqueueRetries, enqueueRetryInterval)
	spotify.SetLogger(shared.WithLogger(r.logger, "service", "spotify"))

	var recorder tasks.RunRecorder
	if db, err := shared.OpenHistory(config.Database); err != nil {
		r.logger.Warn("replay history disabled", "path", config.Database.Path, "error", err)
	} else {
		recorder = repositories.NewRunRepository(db)
		cleanup = func() { db.Close() }
	}

	engine := tasks.NewReplayEngine(spotify, recorder, shared.WithLogger(r.logger, "component", "replay"), tasks.OptionsFromConfig(config.Playback))

	srv, err := server.New(server.Deps{
		Config:   config,
		Provider: spotify,
		Replayer: engine,
		Codec:    codec,
		Logger:   r.logger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return srv, cleanup, nil
}
