package engine

import (
	"context"
	"fmt"

	"github.com/example/puzzletrainer/internal/catalog"
	"github.com/example/puzzletrainer/pkg/models"
)

// ProgressTracker reads and writes per-(user, lesson) progress and derives
// completion percentages against the static lesson catalog.
type ProgressTracker struct {
	store   ProgressStore
	catalog *catalog.Catalog
}

// NewProgressTracker creates a tracker backed by the given store and catalog.
func NewProgressTracker(store ProgressStore, cat *catalog.Catalog) *ProgressTracker {
	return &ProgressTracker{store: store, catalog: cat}
}

// Progress returns the user's state for one lesson. A missing row means
// the lesson was never started and yields zero-valued state, not an error.
func (t *ProgressTracker) Progress(ctx context.Context, userID, lessonID int64) (models.LessonProgress, error) {
	row, err := t.store.Get(ctx, userID, lessonID)
	if err != nil {
		return models.LessonProgress{}, fmt.Errorf("get lesson progress: %w", err)
	}
	if row == nil {
		return models.LessonProgress{UserID: userID, LessonID: lessonID}, nil
	}
	return *row, nil
}

// Update applies a partial update to the user's progress for one lesson,
// creating the row on first write. Unsupplied fields keep their stored
// value; on creation they default to zero. Progression bounds are the
// caller's responsibility, validated against the catalog before calling.
func (t *ProgressTracker) Update(ctx context.Context, userID, lessonID int64, update models.ProgressUpdate) error {
	if err := t.store.Upsert(ctx, userID, lessonID, update); err != nil {
		return fmt.Errorf("update lesson progress: %w", err)
	}
	return nil
}

// MarkLessonComplete marks both the lesson and its test complete in one
// update, setting progression to the given value. Used at registration
// for users who already know the subject.
func (t *ProgressTracker) MarkLessonComplete(ctx context.Context, userID, lessonID int64, progression int) error {
	done := true
	return t.Update(ctx, userID, lessonID, models.ProgressUpdate{
		Progression:     &progression,
		CompletedLesson: &done,
		CompletedTest:   &done,
	})
}

// PercentComplete derives the user's completion percentage for one lesson.
// A completed lesson is always 100 regardless of the stored progression;
// otherwise the result is progression/max_progression rounded up. The
// lesson must exist in the catalog.
func (t *ProgressTracker) PercentComplete(ctx context.Context, userID, lessonID int64) (int, error) {
	lesson, ok := t.catalog.ByID(lessonID)
	if !ok {
		return 0, fmt.Errorf("lesson %d not in catalog", lessonID)
	}
	progress, err := t.Progress(ctx, userID, lessonID)
	if err != nil {
		return 0, err
	}
	if progress.CompletedLesson {
		return 100, nil
	}
	// Integer ceiling; the catalog guarantees MaxProgression >= 1.
	return (progress.Progression*100 + lesson.MaxProgression - 1) / lesson.MaxProgression, nil
}
