// Package repositories implements SQLite persistence for the replay history.
//
// [RunRepository] implements [models.Repository] for [models.ReplayRun] with soft deletes:
// deleted runs keep their row with deleted_at set and are excluded from every query.
//
// Sequence numbers give runs a stable, human-readable order (run #1, #2, ...) independent of
// UUIDs and timestamps. [NextSequence] atomically increments the counter in the table's
// dedicated "<table>_sequence" table.
package repositories
