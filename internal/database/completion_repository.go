package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/puzzletrainer/pkg/models"
)

// CompletionRepository is the append-only ledger of puzzle attempt
// outcomes. Records are never updated or deleted here; queries narrow
// them by lesson and test session as the selection engine requires.
type CompletionRepository struct {
	db *sqlx.DB
}

// NewCompletionRepository creates a new repository instance.
func NewCompletionRepository(db *sqlx.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// RecordCompletion appends one completion record. Duplicate (user, puzzle)
// pairs are allowed; each record is one full attempt cycle.
func (r *CompletionRepository) RecordCompletion(ctx context.Context, completion *models.PuzzleCompletion) error {
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO puzzle_completions (user_id, puzzle_id, attempts, start_time, end_time, test_session_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`
		return r.db.QueryRowContext(ctx, query,
			completion.UserID,
			completion.PuzzleID,
			completion.Attempts,
			completion.StartTime,
			completion.EndTime,
			completion.TestSessionID,
		).Scan(&completion.ID, &completion.CreatedAt)
	}

	query := `
		INSERT INTO puzzle_completions (user_id, puzzle_id, attempts, start_time, end_time, test_session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := r.db.ExecContext(ctx, query,
		completion.UserID,
		completion.PuzzleID,
		completion.Attempts,
		completion.StartTime,
		completion.EndTime,
		completion.TestSessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	completion.ID = id
	return nil
}

// CountDistinctCompleted counts distinct puzzle ids among the user's
// completion records. A nil lessonID spans all lessons; a nil sessionID
// spans open practice and every session.
func (r *CompletionRepository) CountDistinctCompleted(ctx context.Context, userID int64, lessonID, sessionID *int64) (int, error) {
	conditions := []string{"c.user_id = ?"}
	args := []interface{}{userID}

	if lessonID != nil {
		conditions = append(conditions, "p.lesson_id = ?")
		args = append(args, *lessonID)
	}
	if sessionID != nil {
		conditions = append(conditions, "c.test_session_id = ?")
		args = append(args, *sessionID)
	}

	query := r.db.Rebind(`
		SELECT COUNT(DISTINCT c.puzzle_id)
		FROM puzzle_completions c
		JOIN puzzles p ON p.id = c.puzzle_id
		WHERE ` + strings.Join(conditions, " AND "))

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count distinct completions: %w", err)
	}
	return count, nil
}

// PuzzlesCompletedAtLeast returns the puzzle ids the user has completed
// at least minCount times in open practice (records without a session).
func (r *CompletionRepository) PuzzlesCompletedAtLeast(ctx context.Context, userID int64, lessonID *int64, minCount int) (map[int64]struct{}, error) {
	conditions := []string{"c.user_id = ?", "c.test_session_id IS NULL"}
	args := []interface{}{userID}

	if lessonID != nil {
		conditions = append(conditions, "p.lesson_id = ?")
		args = append(args, *lessonID)
	}
	args = append(args, minCount)

	query := r.db.Rebind(`
		SELECT c.puzzle_id
		FROM puzzle_completions c
		JOIN puzzles p ON p.id = c.puzzle_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY c.puzzle_id
		HAVING COUNT(*) >= ?`)

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get puzzles completed at least %d times: %w", minCount, err)
	}
	return idSet(ids), nil
}

// MaxPracticeCompletions returns the highest open-practice completion
// count of any single puzzle for the user, zero when there are none.
func (r *CompletionRepository) MaxPracticeCompletions(ctx context.Context, userID int64, lessonID *int64) (int, error) {
	conditions := []string{"c.user_id = ?", "c.test_session_id IS NULL"}
	args := []interface{}{userID}

	if lessonID != nil {
		conditions = append(conditions, "p.lesson_id = ?")
		args = append(args, *lessonID)
	}

	query := r.db.Rebind(`
		SELECT COALESCE(MAX(n), 0) FROM (
			SELECT COUNT(*) AS n
			FROM puzzle_completions c
			JOIN puzzles p ON p.id = c.puzzle_id
			WHERE ` + strings.Join(conditions, " AND ") + `
			GROUP BY c.puzzle_id
		) counts`)

	var max int
	if err := r.db.GetContext(ctx, &max, query, args...); err != nil {
		return 0, fmt.Errorf("failed to get max practice completions: %w", err)
	}
	return max, nil
}

// SessionCompletedPuzzleIDs returns the puzzle ids with at least one
// record inside the given session. First outcome is final within a
// session, so one record is enough to mark a puzzle done.
func (r *CompletionRepository) SessionCompletedPuzzleIDs(ctx context.Context, userID, sessionID int64) (map[int64]struct{}, error) {
	query := r.db.Rebind(`
		SELECT DISTINCT puzzle_id
		FROM puzzle_completions
		WHERE user_id = ? AND test_session_id = ?`)

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, userID, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get session completions: %w", err)
	}
	return idSet(ids), nil
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
