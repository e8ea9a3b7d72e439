package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a SQLite database at path.
//
// ":memory:" opens an in-memory database pinned to a single connection so that
// every query sees the same schema.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenJournal opens the run journal described by c and migrates it.
func OpenJournal(c DatabaseConfig) (*sql.DB, error) {
	if !c.Enabled {
		return nil, ErrJournalDisabled
	}

	db, err := NewDatabase(c.Path)
	if err != nil {
		return nil, err
	}
	ConfigureDatabase(db, c.MaxOpenConns, c.MaxIdleConns)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
