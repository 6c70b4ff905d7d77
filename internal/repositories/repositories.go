package repositories

import (
	"database/sql"
	"fmt"
)

// sequenced lists the tables that own a "<table>_sequence" counter. The name is spliced into SQL,
// so only these are accepted.
var sequenced = map[string]bool{
	"replay_runs": true,
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// The sequence is what `shuffler history` shows as the run number.
func NextSequence(db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("no sequence for table %q", table)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
