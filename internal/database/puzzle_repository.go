package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/puzzletrainer/pkg/models"
)

// PuzzleRepository handles database operations for puzzles.
type PuzzleRepository struct {
	db *sqlx.DB
}

// NewPuzzleRepository creates a new repository instance.
func NewPuzzleRepository(db *sqlx.DB) *PuzzleRepository {
	return &PuzzleRepository{db: db}
}

// All returns every puzzle in the curriculum.
func (r *PuzzleRepository) All(ctx context.Context) ([]models.Puzzle, error) {
	var puzzles []models.Puzzle
	err := r.db.SelectContext(ctx, &puzzles, "SELECT * FROM puzzles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get puzzles: %w", err)
	}
	return puzzles, nil
}

// ByLesson returns the puzzles belonging to one lesson.
func (r *PuzzleRepository) ByLesson(ctx context.Context, lessonID int64) ([]models.Puzzle, error) {
	var puzzles []models.Puzzle
	query := r.db.Rebind("SELECT * FROM puzzles WHERE lesson_id = ? ORDER BY id")
	err := r.db.SelectContext(ctx, &puzzles, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get puzzles by lesson: %w", err)
	}
	return puzzles, nil
}

// GetByID returns a puzzle by ID, or nil when it does not exist.
func (r *PuzzleRepository) GetByID(ctx context.Context, id int64) (*models.Puzzle, error) {
	var puzzle models.Puzzle
	query := r.db.Rebind("SELECT * FROM puzzles WHERE id = ?")
	err := r.db.GetContext(ctx, &puzzle, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get puzzle by ID: %w", err)
	}
	return &puzzle, nil
}

// Create inserts a new puzzle. Puzzles are immutable once created, so
// there is no update counterpart.
func (r *PuzzleRepository) Create(ctx context.Context, puzzle *models.Puzzle) error {
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO puzzles (lesson_id, fen, move_tree, is_atomic)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`
		return r.db.QueryRowContext(ctx, query,
			puzzle.LessonID,
			puzzle.FEN,
			puzzle.MoveTree,
			puzzle.IsAtomic,
		).Scan(&puzzle.ID, &puzzle.CreatedAt)
	}

	// SQLite path without RETURNING.
	query := `
		INSERT INTO puzzles (lesson_id, fen, move_tree, is_atomic, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := r.db.ExecContext(ctx, query,
		puzzle.LessonID,
		puzzle.FEN,
		puzzle.MoveTree,
		puzzle.IsAtomic,
	)
	if err != nil {
		return fmt.Errorf("failed to create puzzle: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	puzzle.ID = id
	return r.db.QueryRowContext(ctx, r.db.Rebind("SELECT created_at FROM puzzles WHERE id = ?"), puzzle.ID).Scan(&puzzle.CreatedAt)
}

// CountByLesson returns the number of puzzles in one lesson's pool.
func (r *PuzzleRepository) CountByLesson(ctx context.Context, lessonID int64) (int, error) {
	var count int
	query := r.db.Rebind("SELECT COUNT(*) FROM puzzles WHERE lesson_id = ?")
	if err := r.db.GetContext(ctx, &count, query, lessonID); err != nil {
		return 0, fmt.Errorf("failed to count puzzles: %w", err)
	}
	return count, nil
}
