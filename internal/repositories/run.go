package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/shared"
)

const runColumns = `id, sequence, selector, device_id, device_name, total_tracks, played, queued,
	playback_error, refreshed, status, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.ReplayRun].
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with a generated ID and the next sequence number
func (r *RunRepository) Create(run *models.ReplayRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "replay_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	query := `INSERT INTO replay_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		run.Selector(),
		run.DeviceID(),
		run.DeviceName(),
		run.TotalTracks(),
		run.Played(),
		run.Queued(),
		run.PlaybackError(),
		run.Refreshed(),
		string(run.Status()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert replay run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.ReplayRun, error) {
	query := `SELECT ` + runColumns + ` FROM replay_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Update stores the outcome fields of an existing run
func (r *RunRepository) Update(run *models.ReplayRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE replay_runs
		SET device_id = ?, device_name = ?, total_tracks = ?, played = ?, queued = ?,
			playback_error = ?, refreshed = ?, status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.DeviceID(),
		run.DeviceName(),
		run.TotalTracks(),
		run.Played(),
		run.Queued(),
		run.PlaybackError(),
		run.Refreshed(),
		string(run.Status()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update replay run: %w", err)
	}

	return expectAffected(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE replay_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete replay run: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves runs newest first, excluding soft-deleted runs.
//
// Supported criteria: "selector" (string), "status" (string or [models.RunStatus]) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.ReplayRun, error) {
	query := `SELECT ` + runColumns + ` FROM replay_runs WHERE deleted_at IS NULL`
	args := []any{}

	if selector, ok := criteria["selector"].(string); ok && selector != "" {
		query += " AND selector = ?"
		args = append(args, selector)
	}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query replay runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ReplayRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.ReplayRun, error) {
	var (
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
		status      string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := s.Scan(&id, &sequence, &selector, &deviceID, &deviceName, &totalTracks, &played, &queued,
		&playbackErr, &refreshed, &status, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan replay run: %w", err)
	}

	run := models.NewReplayRun(sequence, selector)
	run.SetID(id)
	run.SetDeviceFields(deviceID, deviceName)
	run.SetTotalTracks(totalTracks)
	run.SetPlayed(played)
	run.SetQueued(queued)
	run.SetPlaybackError(playbackErr)
	run.SetRefreshed(refreshed)
	run.SetStatus(models.RunStatus(status))
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

var _ models.Repository[*models.ReplayRun] = (*RunRepository)(nil)
