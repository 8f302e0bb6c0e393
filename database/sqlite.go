package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions enables foreign keys, waits on locks instead of failing, and starts
// every transaction with BEGIN IMMEDIATE so read-then-write transactions
// (import dedup) never deadlock on lock upgrade.
const dsnOptions = "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

// OpenDB opens and pings the SQLite database at path
func OpenDB(path string) (*sql.DB, error) {
	dsn := "file:" + path
	if strings.Contains(dsn, "?") {
		dsn += "&" + dsnOptions
	} else {
		dsn += "?" + dsnOptions
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitializeDatabase opens the database connection and runs migrations
func InitializeDatabase(path string) (*sql.DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database initialized", "path", path)
	return db, nil
}
