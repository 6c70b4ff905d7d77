package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/teremich/spotify-true-random/internal/reporting"
	"github.com/teremich/spotify-true-random/internal/services"
	"github.com/teremich/spotify-true-random/internal/session"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/teremich/spotify-true-random/internal/tasks"
)

// PlaylistHandler replays the chosen playlist shuffled on the user's device.
type PlaylistHandler struct {
	replayer tasks.Replayer
	codec    *session.Codec
	logger   *log.Logger
}

func NewPlaylistHandler(replayer tasks.Replayer, codec *session.Codec, logger *log.Logger) *PlaylistHandler {
	return &PlaylistHandler{replayer: replayer, codec: codec, logger: logger}
}

func (h *PlaylistHandler) Routes() []string {
	return []string{"GET /playlist/{uri}"}
}

func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred, err := h.codec.Decode(r.URL.Query().Get("token"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid session token")
		return
	}

	selector := services.SelectorFromURI(r.PathValue("uri"))
	logger := shared.WithLogger(h.logger, "selector", selector)

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			logger.Debug("replay progress", "phase", update.Phase, "step", update.Step, "total", update.Total, "msg", update.Message)
		}
	}()

	span := reporting.StartSpan(r.Context(), "replay")
	result, err := h.replayer.ReplayShuffled(span.Context(), progress, selector, cred)
	span.Finish()
	close(progress)
	wg.Wait()

	if err != nil {
		status := replayStatus(err)
		if status == http.StatusBadGateway {
			reporting.Capture(r.Context(), err)
		}
		logger.Warn("replay failed", "status", status, "err", err)
		writeText(w, status, err.Error())
		return
	}

	logger.Info("replay done", "status", result.Status, "played", result.Played, "queued", result.Queued)
	http.Redirect(w, r, "/success", http.StatusFound)
}

// replayStatus maps a replay error to the response status.
func replayStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrTokenDecode):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNoActiveDevice):
		return http.StatusConflict
	case errors.Is(err, shared.ErrEmptyPlaylist):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
