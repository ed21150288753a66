// Package scheduler runs periodic housekeeping. Its only job today is
// sweeping abandoned test sessions: the data model allows any number of
// open sessions per user, so sessions nobody finished are closed after a
// configurable age instead of lingering forever.
package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/puzzletrainer/pkg/models"
)

// DefaultSessionMaxAge is how long an open test session may sit idle
// before the sweep closes it.
const DefaultSessionMaxAge = 24 * time.Hour

// SessionJanitor is the slice of the session storage and engine the
// sweep needs.
type SessionJanitor interface {
	ListStaleOpen(ctx context.Context, cutoff time.Time) ([]models.TestSession, error)
	Close(ctx context.Context, sessionID int64, end time.Time) error
}

// Scheduler manages scheduled tasks for the application.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  SessionJanitor
	maxAge    time.Duration
}

// New creates a new scheduler instance. The session max age comes from
// SESSION_MAX_AGE_HOURS when set.
func New(sessions SessionJanitor) *Scheduler {
	maxAge := DefaultSessionMaxAge
	if hoursStr := os.Getenv("SESSION_MAX_AGE_HOURS"); hoursStr != "" {
		if hours, err := strconv.Atoi(hoursStr); err == nil && hours > 0 {
			maxAge = time.Duration(hours) * time.Hour
		}
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sessions:  sessions,
		maxAge:    maxAge,
	}
}

// Start begins running all scheduled tasks.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.sweepStaleSessions)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// sweepStaleSessions closes open sessions older than the configured age.
func (s *Scheduler) sweepStaleSessions() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.maxAge)

	stale, err := s.sessions.ListStaleOpen(ctx, cutoff)
	if err != nil {
		log.Printf("Error listing stale test sessions: %v", err)
		return
	}

	for _, session := range stale {
		if err := s.sessions.Close(ctx, session.ID, time.Now()); err != nil {
			log.Printf("Error closing stale test session %d: %v", session.ID, err)
			continue
		}
		log.Printf("Closed stale test session %d for user %d (opened %s)", session.ID, session.UserID, session.StartTime.Format(time.RFC3339))
	}
}

// RunManualSweep forces one sweep immediately.
func (s *Scheduler) RunManualSweep() {
	s.sweepStaleSessions()
}
