// Package tasks implements the shuffle-and-replay operation.
//
// # Replay
//
// [ReplayEngine.ReplayShuffled] runs the whole flow for one request:
//
//  1. Refresh the access token synchronously when it expires within the refresh window, and use
//     the new token for the rest of the run. A failed refresh is logged and the old token is kept.
//  2. Fetch every track behind the selector and shuffle them.
//  3. Pick the first device the provider lists. No device fails with [shared.ErrNoActiveDevice]
//     before any play or queue call.
//  4. Play the first batch (50 tracks). A failure here is a soft result, [PlaybackOutcome].
//  5. Queue the remaining tracks one by one, in shuffled order, up to the queue cap (400 in total).
//
// # Progress Reporting
//
// Operations accept an optional channel for [ProgressUpdate] values. Updates use select with
// default so a slow or missing reader never blocks a replay.
//
// # History
//
// The optional [RunRecorder] (repositories.RunRepository) receives a [models.ReplayRun] for every
// run. Recording errors are logged and otherwise ignored.
package tasks
