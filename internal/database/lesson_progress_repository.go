package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/example/puzzletrainer/pkg/models"
)

// LessonProgressRepository handles the per-(user, lesson) progress rows.
// Rows are created lazily on first write and unique on the pair.
type LessonProgressRepository struct {
	db *sqlx.DB
}

// NewLessonProgressRepository creates a new repository instance.
func NewLessonProgressRepository(db *sqlx.DB) *LessonProgressRepository {
	return &LessonProgressRepository{db: db}
}

// Get returns the progress row for (user, lesson), or nil when none
// exists. Absence means "not started" and is not an error.
func (r *LessonProgressRepository) Get(ctx context.Context, userID, lessonID int64) (*models.LessonProgress, error) {
	var progress models.LessonProgress
	query := r.db.Rebind("SELECT * FROM lesson_progress WHERE user_id = ? AND lesson_id = ?")
	err := r.db.GetContext(ctx, &progress, query, userID, lessonID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return &progress, nil
}

// Upsert applies a partial update to the (user, lesson) row, creating it
// with zero-valued defaults for unsupplied fields when missing. Fields
// update independently, so concurrent updates resolve last-write-wins
// per field. Repeating an identical call is a no-op.
func (r *LessonProgressRepository) Upsert(ctx context.Context, userID, lessonID int64, update models.ProgressUpdate) error {
	existing, err := r.Get(ctx, userID, lessonID)
	if err != nil {
		return err
	}

	if existing == nil {
		row := models.LessonProgress{UserID: userID, LessonID: lessonID}
		if update.Progression != nil {
			row.Progression = *update.Progression
		}
		if update.CompletedLesson != nil {
			row.CompletedLesson = *update.CompletedLesson
		}
		if update.CompletedTest != nil {
			row.CompletedTest = *update.CompletedTest
		}
		err := r.insert(ctx, &row)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		// A concurrent first write landed between the select and the
		// insert; apply the supplied fields to the winner's row instead.
	}

	if update.IsEmpty() {
		return nil
	}

	setClauses := []string{}
	args := []interface{}{}
	if update.Progression != nil {
		setClauses = append(setClauses, "progression = ?")
		args = append(args, *update.Progression)
	}
	if update.CompletedLesson != nil {
		setClauses = append(setClauses, "completed_lesson = ?")
		args = append(args, *update.CompletedLesson)
	}
	if update.CompletedTest != nil {
		setClauses = append(setClauses, "completed_test = ?")
		args = append(args, *update.CompletedTest)
	}
	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, userID, lessonID)

	query := r.db.Rebind(`
		UPDATE lesson_progress SET ` + strings.Join(setClauses, ", ") + `
		WHERE user_id = ? AND lesson_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update lesson progress: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether the error is a UNIQUE constraint
// failure on either supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (r *LessonProgressRepository) insert(ctx context.Context, row *models.LessonProgress) error {
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO lesson_progress (user_id, lesson_id, progression, completed_lesson, completed_test)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`
		return r.db.QueryRowContext(ctx, query,
			row.UserID,
			row.LessonID,
			row.Progression,
			row.CompletedLesson,
			row.CompletedTest,
		).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
	}

	query := `
		INSERT INTO lesson_progress (user_id, lesson_id, progression, completed_lesson, completed_test, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	result, err := r.db.ExecContext(ctx, query,
		row.UserID,
		row.LessonID,
		row.Progression,
		row.CompletedLesson,
		row.CompletedTest,
	)
	if err != nil {
		return fmt.Errorf("failed to create lesson progress: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	row.ID = id
	return nil
}

// AllForUser returns every progress row the user has, for dashboards.
func (r *LessonProgressRepository) AllForUser(ctx context.Context, userID int64) ([]models.LessonProgress, error) {
	var rows []models.LessonProgress
	query := r.db.Rebind("SELECT * FROM lesson_progress WHERE user_id = ? ORDER BY lesson_id")
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return rows, nil
}
