// Package database provides sqlx repositories for the puzzle trainer over
// sqlite (default) or postgres, selected with the DB_TYPE environment
// variable the same way for both drivers.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the database selected by the environment: DB_TYPE is
// "sqlite" (default) or "postgres", DATABASE_URL overrides the DSN.
// The schema is created on first use.
func Connect() (*sqlx.DB, error) {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	switch dbType {
	case "sqlite":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			dataDir := "data"
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
			dsn = filepath.Join(dataDir, "puzzletrainer.db")
		}
		return ConnectURL("sqlite3", dsn)
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set when DB_TYPE=postgres")
		}
		return ConnectURL("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}
}

// ConnectURL opens a connection with an explicit driver and DSN and
// initializes the schema. Tests use it with in-memory sqlite.
func ConnectURL(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist.
func initializeSchema(db *sqlx.DB) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			telegram_id BIGINT UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			chess_beginner BOOLEAN NOT NULL DEFAULT true,
			is_admin BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS puzzles (
			id %s,
			lesson_id BIGINT NOT NULL,
			fen TEXT NOT NULL,
			move_tree TEXT NOT NULL,
			is_atomic BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS lesson_progress (
			id %s,
			user_id BIGINT NOT NULL,
			lesson_id BIGINT NOT NULL,
			progression INTEGER NOT NULL DEFAULT 0,
			completed_lesson BOOLEAN NOT NULL DEFAULT false,
			completed_test BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, lesson_id)
		)`, serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS test_sessions (
			id %s,
			user_id BIGINT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP
		)`, serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS puzzle_completions (
			id %s,
			user_id BIGINT NOT NULL,
			puzzle_id BIGINT NOT NULL REFERENCES puzzles(id),
			attempts INTEGER NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			test_session_id BIGINT REFERENCES test_sessions(id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, serial),
		`CREATE INDEX IF NOT EXISTS idx_completions_user_puzzle ON puzzle_completions(user_id, puzzle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_session ON puzzle_completions(test_session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_test_sessions_user ON test_sessions(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
