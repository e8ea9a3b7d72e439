// package repositories provides SQLite persistence for the sync run journal.
package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers are the run numbers shown by the history commands (run #42);
// the UUID remains the primary key.
func NextSequence(db *sql.DB, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
