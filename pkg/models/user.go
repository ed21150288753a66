package models

import "time"

// User represents a registered learner. The engine only ever consumes the
// numeric ID; everything else belongs to the delivery frontend.
type User struct {
	ID            int64     `json:"id" db:"id"`
	TelegramID    int64     `json:"telegram_id" db:"telegram_id"`
	Username      string    `json:"username" db:"username"`
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	ChessBeginner bool      `json:"chess_beginner" db:"chess_beginner"`
	IsAdmin       bool      `json:"is_admin" db:"is_admin"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
