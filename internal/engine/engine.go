// Package engine implements the puzzle selection and progression core:
// lesson progress tracking, open-practice puzzle selection with threshold
// widening, and the bounded final-test session flow. It depends only on
// the narrow persistence interfaces below; the frontend and the sqlx
// repositories are wired to it at startup.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/example/puzzletrainer/pkg/models"
)

// ErrSessionNotFound is returned when an operation names a test session
// id that does not exist. It is the only failure in the engine that is
// not a plain storage error; empty pools and drained sessions are normal
// results, not errors.
var ErrSessionNotFound = errors.New("test session not found")

// DefaultRequiredPuzzles is how many distinct puzzles make up a full
// final test in the reference deployment.
const DefaultRequiredPuzzles = 5

// PuzzleSource lists the puzzle pool. Puzzles are immutable once created.
type PuzzleSource interface {
	// All returns every puzzle in the curriculum.
	All(ctx context.Context) ([]models.Puzzle, error)
	// ByLesson returns the puzzles belonging to one lesson.
	ByLesson(ctx context.Context, lessonID int64) ([]models.Puzzle, error)
}

// CompletionLedger is the append-only record store of attempt outcomes.
type CompletionLedger interface {
	// RecordCompletion appends one completion record. No dedup check is
	// performed here; callers decide whether duplicates are meaningful.
	RecordCompletion(ctx context.Context, completion *models.PuzzleCompletion) error
	// CountDistinctCompleted counts distinct puzzle ids among the user's
	// records, optionally narrowed to one lesson and/or one session.
	// Omitting sessionID counts across practice and every session.
	CountDistinctCompleted(ctx context.Context, userID int64, lessonID, sessionID *int64) (int, error)
	// PuzzlesCompletedAtLeast returns the puzzle ids the user has
	// completed at least minCount times in open practice (records with
	// no session id), optionally narrowed to one lesson.
	PuzzlesCompletedAtLeast(ctx context.Context, userID int64, lessonID *int64, minCount int) (map[int64]struct{}, error)
	// MaxPracticeCompletions returns the highest open-practice completion
	// count of any single puzzle for the user, optionally narrowed to one
	// lesson. Zero when the user has no practice records.
	MaxPracticeCompletions(ctx context.Context, userID int64, lessonID *int64) (int, error)
	// SessionCompletedPuzzleIDs returns the puzzle ids with at least one
	// record inside the given session.
	SessionCompletedPuzzleIDs(ctx context.Context, userID, sessionID int64) (map[int64]struct{}, error)
}

// ProgressStore persists per-(user, lesson) progress rows.
type ProgressStore interface {
	// Get returns the row for (user, lesson), or nil when none exists.
	Get(ctx context.Context, userID, lessonID int64) (*models.LessonProgress, error)
	// Upsert applies a partial update, creating the row with zero-valued
	// defaults for unsupplied fields when it does not exist yet. Repeating
	// an identical call leaves the stored state unchanged.
	Upsert(ctx context.Context, userID, lessonID int64, update models.ProgressUpdate) error
}

// SessionStore persists test sessions.
type SessionStore interface {
	// Create opens a new session for the user starting at the given time.
	Create(ctx context.Context, userID int64, start time.Time) (*models.TestSession, error)
	// Get returns the session with the given id, or nil when none exists.
	Get(ctx context.Context, sessionID int64) (*models.TestSession, error)
	// Close sets the session's end time. It returns ErrSessionNotFound
	// when the id is unknown.
	Close(ctx context.Context, sessionID int64, end time.Time) error
}
