package models

import "time"

// TestSession is one bounded attempt at the final test. A nil EndTime
// means the session is still open.
type TestSession struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time" db:"end_time"`
}

// IsOpen reports whether the session has not been closed yet.
func (s *TestSession) IsOpen() bool {
	return s.EndTime == nil
}
