package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB

	log *slog.Logger
	now func() time.Time
}

// Open connects to the sqlite database at path (":memory:" is accepted) and
// brings the schema up to date.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serializes writers anyway; a single connection also keeps
	// in-memory databases alive across calls.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: conn, log: logger, now: time.Now}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("Database migrations applied", "path", path, "version", version, "dirty", dirty)

	return db, nil
}

// SetClock replaces the time source used for created/updated/synced timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

func (db *DB) Now() time.Time {
	return db.now().UTC()
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
