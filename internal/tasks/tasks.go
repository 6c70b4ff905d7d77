package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/services"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/teremich/spotify-true-random/internal/shuffle"
	"golang.org/x/time/rate"
)

// Replayer shuffles a playlist and replays it on the user's device.
type Replayer interface {
	ReplayShuffled(ctx context.Context, progress chan<- ProgressUpdate, selector string, cred models.SessionCredential) (*ReplayResult, error)
}

// RunRecorder persists finished runs (repositories.RunRepository).
type RunRecorder interface {
	Create(run *models.ReplayRun) error
}

// ReplayOptions contains the limits of a replay.
type ReplayOptions struct {
	PlayBatch           int           // tracks sent with the initial play request
	QueueCap            int           // tracks processed across play and queue; the rest are dropped
	RefreshWindow       time.Duration // refresh when the token expires within this window
	QueueWithoutSession bool          // keep queueing when playback failed for lack of an active session
	EnqueuePerSecond    float64       // queue call pacing, 0 disables it
}

// DefaultReplayOptions returns the provider limits: 50 tracks played, 400 processed, refresh 60s before expiry.
func DefaultReplayOptions() ReplayOptions {
	return ReplayOptions{
		PlayBatch:           services.MaxPlayURIs,
		QueueCap:            400,
		RefreshWindow:       time.Minute,
		QueueWithoutSession: true,
	}
}

// OptionsFromConfig maps the [playback] config section onto ReplayOptions.
func OptionsFromConfig(cfg shared.PlaybackConfig) ReplayOptions {
	return ReplayOptions{
		PlayBatch:           cfg.PlayBatch,
		QueueCap:            cfg.QueueCap,
		RefreshWindow:       time.Duration(cfg.RefreshWindowSeconds) * time.Second,
		QueueWithoutSession: cfg.QueueWithoutSession,
		EnqueuePerSecond:    cfg.EnqueuePerSecond,
	}
}

// PlaybackOutcome is the soft result of the initial play request.
//
// A failed start does not fail the run: queueing continues unless the failure was a missing
// session and [ReplayOptions.QueueWithoutSession] is off.
type PlaybackOutcome struct {
	Started bool
	Err     error
}

// NoActiveSession reports whether playback failed because the device had no session.
func (o PlaybackOutcome) NoActiveSession() bool {
	return errors.Is(o.Err, shared.ErrNoActiveSession)
}

// ReplayResult contains everything a replay did, including partial progress when it failed.
type ReplayResult struct {
	RunID       string                   // history id, empty when no recorder is configured
	Selector    string                   // playlist selector that was replayed
	Credential  models.SessionCredential // credential after an eventual refresh
	Refreshed   bool                     // a refresh succeeded and its token was used
	RefreshErr  error                    // refresh failed and the stale token was used
	Device      models.Device            // target device
	TotalTracks int                      // tracks fetched
	Played      int                      // tracks in a successful play request
	Queued      int                      // tracks queued
	Playback    PlaybackOutcome
	Status      models.RunStatus
}

// ReplayEngine implements [Replayer] on top of a [services.Provider].
type ReplayEngine struct {
	provider services.Provider
	recorder RunRecorder
	logger   *log.Logger
	opts     ReplayOptions
	now      func() time.Time
	shuffle  func([]models.Track) []models.Track
}

// NewReplayEngine creates an engine. recorder may be nil to skip history.
//
// PlayBatch is clamped to [services.MaxPlayURIs]: anything past it would be counted as played
// without reaching the device.
func NewReplayEngine(provider services.Provider, recorder RunRecorder, logger *log.Logger, opts ReplayOptions) *ReplayEngine {
	if logger == nil {
		logger = log.Default()
	}
	opts.PlayBatch = min(opts.PlayBatch, services.MaxPlayURIs)
	return &ReplayEngine{
		provider: provider,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		shuffle:  shuffle.Shuffle[models.Track],
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *ReplayEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ReplayShuffled fetches every track behind selector, shuffles them and replays them on the first device:
// the first batch as a play request, the rest (up to the queue cap) appended to the queue one by one in
// shuffled order.
//
// The returned result is never nil and carries partial progress alongside an error.
// Every run, failed or not, is handed to the recorder.
func (e *ReplayEngine) ReplayShuffled(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	selector string,
	cred models.SessionCredential,
) (*ReplayResult, error) {
	result := &ReplayResult{Selector: selector, Credential: cred, Status: models.RunStatusFailed}

	err := e.replay(ctx, progress, result)
	e.record(result)

	if err != nil {
		return result, err
	}
	e.sendProgress(progress, doneUpdate(result.Played, result.Queued))
	return result, nil
}

func (e *ReplayEngine) replay(ctx context.Context, progress chan<- ProgressUpdate, result *ReplayResult) error {
	logger := shared.WithLogger(e.logger, "selector", result.Selector)

	if result.Credential.NeedsRefresh(e.now(), e.opts.RefreshWindow) {
		e.sendProgress(progress, refreshingUpdate())
		e.refresh(ctx, logger, result)
	}

	lib := e.provider.Library(ctx, result.Credential)

	e.sendProgress(progress, fetchingTracksUpdate(result.Selector))
	tracks, err := lib.Tracks(ctx, result.Selector)
	if err != nil {
		return fmt.Errorf("failed to fetch tracks: %w", err)
	}
	result.TotalTracks = len(tracks)

	shuffled := e.shuffle(tracks)
	e.sendProgress(progress, shuffledUpdate(len(shuffled)))

	devices, err := lib.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		result.Status = models.RunStatusNoDevice
		return shared.ErrNoActiveDevice
	}
	target := devices[0]
	result.Device = target
	e.sendProgress(progress, deviceSelectedUpdate(target.Name, len(devices)))

	if len(shuffled) == 0 {
		result.Status = models.RunStatusEmpty
		return fmt.Errorf("%w: %s", shared.ErrEmptyPlaylist, result.Selector)
	}

	uris := lo.Map(shuffled, func(t models.Track, _ int) string { return t.URI })
	limit := min(len(uris), e.opts.QueueCap)
	batch := uris[:min(limit, e.opts.PlayBatch)]

	err = lib.StartPlayback(ctx, batch, target.ID)
	result.Playback = PlaybackOutcome{Started: err == nil, Err: err}
	e.sendProgress(progress, playbackUpdate(len(batch), err))

	if err != nil {
		logger.Warn("playback start failed, continuing with queue", "device", target.Name, "err", err)
		if result.Playback.NoActiveSession() && !e.opts.QueueWithoutSession {
			result.Status = models.RunStatusStopped
			return nil
		}
	} else {
		result.Played = len(batch)
	}

	if err := e.enqueue(ctx, progress, lib, uris[len(batch):limit], target.ID, result); err != nil {
		return err
	}

	if result.Playback.Started {
		result.Status = models.RunStatusStarted
	} else {
		result.Status = models.RunStatusQueued
	}

	logger.Info("replay finished",
		"device", target.Name, "tracks", result.TotalTracks, "played", result.Played, "queued", result.Queued)
	return nil
}

// refresh swaps the credential for a refreshed one. Failure is logged and the stale token is kept.
func (e *ReplayEngine) refresh(ctx context.Context, logger *log.Logger, result *ReplayResult) {
	res, err := e.provider.Refresh(ctx, result.Credential.RefreshToken)
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty refresh response", shared.ErrRefresh)
	}
	if err != nil {
		logger.Warn("token refresh failed, continuing with current token", "err", err)
		result.RefreshErr = err
		return
	}

	result.Credential = res.Apply(result.Credential, e.now())
	result.Refreshed = true
	logger.Debug("token refreshed", "expires", result.Credential.ExpiresAt)
}

// enqueue appends uris one at a time, each call awaited before the next, paced by the configured limiter.
func (e *ReplayEngine) enqueue(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	lib services.Library,
	uris []string,
	deviceID string,
	result *ReplayResult,
) error {
	var limiter *rate.Limiter
	if e.opts.EnqueuePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.opts.EnqueuePerSecond), 1)
	}

	for i, uri := range uris {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %w", shared.ErrEnqueue, err)
			}
		}

		if err := lib.Enqueue(ctx, uri, deviceID); err != nil {
			return err
		}
		result.Queued++
		e.sendProgress(progress, enqueuedUpdate(i+1, len(uris)))
	}
	return nil
}

// record stores the run. Errors are logged, never returned: history must not fail a replay.
func (e *ReplayEngine) record(result *ReplayResult) {
	if e.recorder == nil {
		return
	}

	run := models.NewReplayRun(0, result.Selector)
	run.SetDevice(result.Device)
	run.SetTotalTracks(result.TotalTracks)
	run.SetPlayed(result.Played)
	run.SetQueued(result.Queued)
	run.SetRefreshed(result.Refreshed)
	run.SetStatus(result.Status)
	if result.Playback.Err != nil {
		run.SetPlaybackError(result.Playback.Err.Error())
	}

	if err := e.recorder.Create(run); err != nil {
		e.logger.Warn("failed to record replay run", "selector", result.Selector, "err", err)
		return
	}
	result.RunID = run.ID()
}
