package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/puzzletrainer/internal/engine"
	"github.com/example/puzzletrainer/pkg/models"
)

// TestSessionRepository handles database operations for test sessions.
type TestSessionRepository struct {
	db *sqlx.DB
}

// NewTestSessionRepository creates a new repository instance.
func NewTestSessionRepository(db *sqlx.DB) *TestSessionRepository {
	return &TestSessionRepository{db: db}
}

// Create opens a new session for the user. Ids are assigned sequentially
// by the database.
func (r *TestSessionRepository) Create(ctx context.Context, userID int64, start time.Time) (*models.TestSession, error) {
	session := &models.TestSession{UserID: userID, StartTime: start}

	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO test_sessions (user_id, start_time)
			VALUES ($1, $2)
			RETURNING id
		`
		if err := r.db.QueryRowContext(ctx, query, userID, start).Scan(&session.ID); err != nil {
			return nil, fmt.Errorf("failed to create test session: %w", err)
		}
		return session, nil
	}

	result, err := r.db.ExecContext(ctx, "INSERT INTO test_sessions (user_id, start_time) VALUES (?, ?)", userID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	session.ID = id
	return session, nil
}

// Get returns the session with the given id, or nil when none exists.
func (r *TestSessionRepository) Get(ctx context.Context, sessionID int64) (*models.TestSession, error) {
	var session models.TestSession
	query := r.db.Rebind("SELECT * FROM test_sessions WHERE id = ?")
	err := r.db.GetContext(ctx, &session, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test session: %w", err)
	}
	return &session, nil
}

// Close sets the session's end time. Unknown ids yield
// engine.ErrSessionNotFound; closing an already closed session just
// rewrites its end time.
func (r *TestSessionRepository) Close(ctx context.Context, sessionID int64, end time.Time) error {
	query := r.db.Rebind("UPDATE test_sessions SET end_time = ? WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, end, sessionID)
	if err != nil {
		return fmt.Errorf("failed to close test session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.ErrSessionNotFound
	}
	return nil
}

// ListStaleOpen returns open sessions started before the given cutoff,
// for the housekeeping sweep.
func (r *TestSessionRepository) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]models.TestSession, error) {
	var sessions []models.TestSession
	query := r.db.Rebind("SELECT * FROM test_sessions WHERE end_time IS NULL AND start_time < ? ORDER BY start_time")
	if err := r.db.SelectContext(ctx, &sessions, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return sessions, nil
}
