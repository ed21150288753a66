package models

import "time"

// PuzzleCompletion is one append-only record of a full attempt cycle at a
// puzzle. A nil TestSessionID marks an open-practice completion; otherwise
// the record belongs to exactly one test session. The same (user, puzzle)
// pair may accumulate any number of records over time.
type PuzzleCompletion struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	PuzzleID      int64     `json:"puzzle_id" db:"puzzle_id"`
	Attempts      int       `json:"attempts" db:"attempts"`
	StartTime     time.Time `json:"start_time" db:"start_time"`
	EndTime       time.Time `json:"end_time" db:"end_time"`
	TestSessionID *int64    `json:"test_session_id" db:"test_session_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
