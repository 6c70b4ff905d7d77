package tasks

import "fmt"

// ProgressUpdate represents a progress event during a replay.
//
// Used to send real-time updates to the caller (the HTTP handler logs them) without blocking the run.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	RefreshToken Phase = iota
	FetchTracks
	ShuffleTracks
	SelectDevice
	StartPlayback
	EnqueueTracks
	Done
)

func (p Phase) String() string {
	switch p {
	case RefreshToken:
		return "refresh_token"
	case FetchTracks:
		return "fetch_tracks"
	case ShuffleTracks:
		return "shuffle_tracks"
	case SelectDevice:
		return "select_device"
	case StartPlayback:
		return "start_playback"
	case EnqueueTracks:
		return "enqueue_tracks"
	case Done:
		return "done"
	default:
		return ""
	}
}

func refreshingUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: RefreshToken, Step: 1, Total: 1, Message: "Access token is about to expire, refreshing..."}
}

func fetchingTracksUpdate(selector string) ProgressUpdate {
	return ProgressUpdate{Phase: FetchTracks, Step: 1, Total: 1, Message: fmt.Sprintf("Fetching tracks for %q...", selector)}
}

func shuffledUpdate(count int) ProgressUpdate {
	return ProgressUpdate{Phase: ShuffleTracks, Step: 1, Total: 1, Message: fmt.Sprintf("Shuffled %d tracks", count)}
}

func deviceSelectedUpdate(name string, available int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectDevice,
		Step:    1,
		Total:   available,
		Message: fmt.Sprintf("Playing on %s (%d device(s) available)", name, available),
	}
}

func playbackUpdate(batch int, err error) ProgressUpdate {
	msg := fmt.Sprintf("Started playback with %d tracks", batch)
	if err != nil {
		msg = fmt.Sprintf("Playback did not start: %v", err)
	}
	return ProgressUpdate{Phase: StartPlayback, Step: 1, Total: 1, Message: msg}
}

func enqueuedUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{Phase: EnqueueTracks, Step: step, Total: total, Message: fmt.Sprintf("Queued %d/%d", step, total)}
}

func doneUpdate(played, queued int) ProgressUpdate {
	return ProgressUpdate{Phase: Done, Step: 1, Total: 1, Message: fmt.Sprintf("Done: %d played, %d queued", played, queued)}
}
