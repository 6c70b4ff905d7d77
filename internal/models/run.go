package models

import (
	"fmt"
	"time"
)

// RunStatus is the terminal state of a [ReplayRun].
type RunStatus string

const (
	RunStatusStarted  RunStatus = "started"   // first batch played and the remainder queued
	RunStatusQueued   RunStatus = "queued"    // playback start soft-failed, queueing went ahead
	RunStatusStopped  RunStatus = "stopped"   // playback start failed without an active session and queueing was skipped
	RunStatusNoDevice RunStatus = "no_device" // no device was available
	RunStatusEmpty    RunStatus = "empty"     // the selection had no playable tracks
	RunStatusFailed   RunStatus = "failed"
)

// ReplayRun records one shuffle-and-replay execution.
type ReplayRun struct {
	id          string
	sequence    int
	selector    string
	deviceID    string
	deviceName  string
	totalTracks int
	played      int
	queued      int
	playbackErr string
	refreshed   bool
	status      RunStatus
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewReplayRun creates a run for the given playlist selector with timestamps set to now.
func NewReplayRun(sequence int, selector string) *ReplayRun {
	now := time.Now()
	return &ReplayRun{
		sequence:  sequence,
		selector:  selector,
		status:    RunStatusFailed,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *ReplayRun) ID() string            { return r.id }
func (r *ReplayRun) Sequence() int         { return r.sequence }
func (r *ReplayRun) Selector() string      { return r.selector }
func (r *ReplayRun) DeviceID() string      { return r.deviceID }
func (r *ReplayRun) DeviceName() string    { return r.deviceName }
func (r *ReplayRun) TotalTracks() int      { return r.totalTracks }
func (r *ReplayRun) Played() int           { return r.played }
func (r *ReplayRun) Queued() int           { return r.queued }
func (r *ReplayRun) PlaybackError() string { return r.playbackErr }
func (r *ReplayRun) Refreshed() bool       { return r.refreshed }
func (r *ReplayRun) Status() RunStatus     { return r.status }
func (r *ReplayRun) CreatedAt() time.Time  { return r.createdAt }
func (r *ReplayRun) UpdatedAt() time.Time  { return r.updatedAt }
func (r *ReplayRun) DeletedAt() *time.Time { return r.deletedAt }

func (r *ReplayRun) SetID(id string)                 { r.id = id }
func (r *ReplayRun) SetSequence(seq int)             { r.sequence = seq }
func (r *ReplayRun) SetTotalTracks(n int)            { r.totalTracks = n }
func (r *ReplayRun) SetPlayed(n int)                 { r.played = n }
func (r *ReplayRun) SetQueued(n int)                 { r.queued = n }
func (r *ReplayRun) SetPlaybackError(msg string)     { r.playbackErr = msg }
func (r *ReplayRun) SetRefreshed(refreshed bool)     { r.refreshed = refreshed }
func (r *ReplayRun) SetStatus(status RunStatus)      { r.status = status }
func (r *ReplayRun) SetCreatedAt(t time.Time)        { r.createdAt = t }
func (r *ReplayRun) SetUpdatedAt(t time.Time)        { r.updatedAt = t }
func (r *ReplayRun) SetDeletedAt(t *time.Time)       { r.deletedAt = t }
func (r *ReplayRun) SetDevice(device Device)         { r.deviceID, r.deviceName = device.ID, device.Name }
func (r *ReplayRun) SetDeviceFields(id, name string) { r.deviceID, r.deviceName = id, name }

// Validate checks required fields and counters.
func (r *ReplayRun) Validate() error {
	if r.selector == "" {
		return fmt.Errorf("selector is required")
	}
	switch r.status {
	case RunStatusStarted, RunStatusQueued, RunStatusStopped, RunStatusNoDevice, RunStatusEmpty, RunStatusFailed:
	default:
		return fmt.Errorf("invalid status: %q", r.status)
	}
	if r.totalTracks < 0 || r.played < 0 || r.queued < 0 {
		return fmt.Errorf("track counters must not be negative")
	}
	if r.played+r.queued > r.totalTracks {
		return fmt.Errorf("played (%d) + queued (%d) exceeds total tracks (%d)", r.played, r.queued, r.totalTracks)
	}
	return nil
}
