package models

import "time"

// Puzzle is an atomic practice item belonging to exactly one lesson.
// The engine treats the position and move tree as opaque content.
type Puzzle struct {
	ID        int64     `json:"id" db:"id"`
	LessonID  int64     `json:"lesson_id" db:"lesson_id"`
	FEN       string    `json:"fen" db:"fen"`
	MoveTree  string    `json:"move_tree" db:"move_tree"` // JSON move tree consumed by the board frontend
	IsAtomic  bool      `json:"is_atomic" db:"is_atomic"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
