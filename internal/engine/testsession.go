package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/puzzletrainer/pkg/models"
)

// TestManager runs final-test sessions: it opens a session, serves the
// session's puzzles one at a time without repeats, and closes the session.
// Within a session the first recorded outcome for a puzzle is final,
// unlike open practice where a puzzle can be replayed. Safe for
// concurrent use.
type TestManager struct {
	puzzles  PuzzleSource
	ledger   CompletionLedger
	sessions SessionStore
	required int

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewTestManager creates a manager serving tests of requiredPuzzles
// distinct puzzles. Values below 1 fall back to DefaultRequiredPuzzles.
func NewTestManager(puzzles PuzzleSource, ledger CompletionLedger, sessions SessionStore, requiredPuzzles int) *TestManager {
	if requiredPuzzles < 1 {
		requiredPuzzles = DefaultRequiredPuzzles
	}
	return &TestManager{
		puzzles:  puzzles,
		ledger:   ledger,
		sessions: sessions,
		required: requiredPuzzles,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RequiredPuzzles returns how many distinct puzzles make a full test.
func (m *TestManager) RequiredPuzzles() int {
	return m.required
}

// OpenSession starts a new test session for the user. It always succeeds;
// nothing prevents a user from holding several open sessions, matching
// the permissive data model.
func (m *TestManager) OpenSession(ctx context.Context, userID int64) (*models.TestSession, error) {
	session, err := m.sessions.Create(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("open test session: %w", err)
	}
	return session, nil
}

// NextPuzzle picks the next puzzle for the session uniformly at random
// from the curriculum puzzles that have no completion record inside this
// session yet. A nil puzzle means the session has no work left. isFinal
// is true when the served puzzle is the last one of the test, so the
// caller can flag it before the attempt is recorded. A curriculum smaller
// than the required count simply exhausts early; the empty remainder is
// the authoritative end-of-test signal.
func (m *TestManager) NextPuzzle(ctx context.Context, sessionID, userID int64) (puzzle *models.Puzzle, isFinal bool, err error) {
	pool, err := m.puzzles.All(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list puzzles: %w", err)
	}

	done, err := m.ledger.SessionCompletedPuzzleIDs(ctx, userID, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("session completions: %w", err)
	}

	remaining := pool[:0:0]
	for _, p := range pool {
		if _, ok := done[p.ID]; !ok {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 0 {
		return nil, true, nil
	}

	completed, err := m.ledger.CountDistinctCompleted(ctx, userID, nil, &sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("count session completions: %w", err)
	}
	isFinal = completed >= m.required-1

	m.mu.Lock()
	i := m.rng.Intn(len(remaining))
	m.mu.Unlock()
	chosen := remaining[i]
	return &chosen, isFinal, nil
}

// RecordAttempt appends the outcome of one puzzle attempt to the session.
// Duplicate (puzzle, session) records are not rejected here; NextPuzzle's
// exclusion already keeps a completed puzzle from being offered again.
func (m *TestManager) RecordAttempt(ctx context.Context, sessionID, userID, puzzleID int64, attempts int, start, end time.Time) error {
	err := m.ledger.RecordCompletion(ctx, &models.PuzzleCompletion{
		UserID:        userID,
		PuzzleID:      puzzleID,
		Attempts:      attempts,
		StartTime:     start,
		EndTime:       end,
		TestSessionID: &sessionID,
	})
	if err != nil {
		return fmt.Errorf("record test attempt: %w", err)
	}
	return nil
}

// CloseSession sets the session's end time. It does not verify that the
// required number of puzzles were completed; callers decide when a test
// counts. Unknown ids yield ErrSessionNotFound.
func (m *TestManager) CloseSession(ctx context.Context, sessionID int64) error {
	return m.sessions.Close(ctx, sessionID, time.Now())
}
