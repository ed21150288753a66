package models

import "time"

// LessonProgress tracks how far a user has advanced through one lesson.
// One row per (user, lesson) pair; a missing row means "not started".
type LessonProgress struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"user_id" db:"user_id"`
	LessonID        int64     `json:"lesson_id" db:"lesson_id"`
	Progression     int       `json:"progression" db:"progression"`
	CompletedLesson bool      `json:"completed_lesson" db:"completed_lesson"`
	CompletedTest   bool      `json:"completed_test" db:"completed_test"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ProgressUpdate carries the fields of a partial progress update. A nil
// field is left untouched, which keeps "not supplied" distinct from a
// zero value.
type ProgressUpdate struct {
	Progression     *int
	CompletedLesson *bool
	CompletedTest   *bool
}

// IsEmpty reports whether the update carries no fields at all.
func (u ProgressUpdate) IsEmpty() bool {
	return u.Progression == nil && u.CompletedLesson == nil && u.CompletedTest == nil
}
