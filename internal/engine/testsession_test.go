package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/puzzletrainer/pkg/models"
)

func testFixture(required int, puzzles ...models.Puzzle) (*TestManager, *memSessions, *memLedger) {
	source := &memPuzzles{puzzles: puzzles}
	ledger := newMemLedger(source)
	sessions := newMemSessions()
	return NewTestManager(source, ledger, sessions, required), sessions, ledger
}

func recordTestAttempt(t *testing.T, manager *TestManager, sessionID, userID, puzzleID int64) {
	t.Helper()
	start := time.Now().Add(-30 * time.Second)
	require.NoError(t, manager.RecordAttempt(context.Background(), sessionID, userID, puzzleID, 1, start, time.Now()))
}

func curriculum(n int) []models.Puzzle {
	puzzles := make([]models.Puzzle, n)
	for i := range puzzles {
		puzzles[i] = models.Puzzle{ID: int64(i + 1), LessonID: int64(i%3 + 1)}
	}
	return puzzles
}

func TestOpenSession(t *testing.T) {
	manager, sessions, _ := testFixture(5, curriculum(6)...)

	session, err := manager.OpenSession(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.IsOpen())

	stored, err := sessions.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.UserID)
}

func TestOpenSessionAllowsMultiple(t *testing.T) {
	manager, _, _ := testFixture(5, curriculum(6)...)
	ctx := context.Background()

	first, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)
	second, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestNextPuzzleExcludesSessionCompletions(t *testing.T) {
	manager, _, _ := testFixture(5, curriculum(6)...)
	ctx := context.Background()

	session, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)
	recordTestAttempt(t, manager, session.ID, 1, 3)

	for i := 0; i < 50; i++ {
		puzzle, _, err := manager.NextPuzzle(ctx, session.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.NotEqual(t, int64(3), puzzle.ID, "a completed puzzle must never be re-offered in the same session")
	}
}

func TestNextPuzzleFirstOutcomeIsFinalWithinSession(t *testing.T) {
	manager, _, _ := testFixture(5, curriculum(6)...)
	ctx := context.Background()

	session, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)
	// Two records for the same puzzle count as one completed puzzle.
	recordTestAttempt(t, manager, session.ID, 1, 3)
	recordTestAttempt(t, manager, session.ID, 1, 3)

	count, err := manager.ledger.CountDistinctCompleted(ctx, 1, nil, &session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNextPuzzleFinalityFlag(t *testing.T) {
	manager, _, _ := testFixture(5, curriculum(8)...)
	ctx := context.Background()

	session, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)

	for completed := int64(1); completed <= 3; completed++ {
		puzzle, isFinal, err := manager.NextPuzzle(ctx, session.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.False(t, isFinal, "puzzle %d of 5 is not final", completed)
		recordTestAttempt(t, manager, session.ID, 1, puzzle.ID)
	}

	// Fourth completion recorded: the next serve is the fifth and last.
	puzzle, isFinal, err := manager.NextPuzzle(ctx, session.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, puzzle)
	assert.False(t, isFinal)
	recordTestAttempt(t, manager, session.ID, 1, puzzle.ID)

	_, isFinal, err = manager.NextPuzzle(ctx, session.ID, 1)
	require.NoError(t, err)
	assert.True(t, isFinal, "after 4 distinct completions the next puzzle is the final one")
}

func TestNextPuzzleSmallCurriculumExhausts(t *testing.T) {
	// Required count 5 but only 3 puzzles exist: the drained pool is the
	// authoritative end-of-test signal.
	manager, _, _ := testFixture(5, curriculum(3)...)
	ctx := context.Background()

	session, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		puzzle, _, err := manager.NextPuzzle(ctx, session.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		recordTestAttempt(t, manager, session.ID, 1, puzzle.ID)
	}

	puzzle, isFinal, err := manager.NextPuzzle(ctx, session.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, puzzle)
	assert.True(t, isFinal)
}

func TestNextPuzzleIgnoresPracticeAndOtherSessions(t *testing.T) {
	manager, _, ledger := testFixture(5, curriculum(4)...)
	ctx := context.Background()

	session, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)
	other, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)

	// Practice completion and another session's completion must not
	// shrink this session's remaining set.
	require.NoError(t, ledger.RecordCompletion(ctx, &models.PuzzleCompletion{
		UserID: 1, PuzzleID: 1, Attempts: 1, StartTime: time.Now(), EndTime: time.Now(),
	}))
	recordTestAttempt(t, manager, other.ID, 1, 2)

	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		puzzle, _, err := manager.NextPuzzle(ctx, session.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		seen[puzzle.ID] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}

func TestNextPuzzleConcurrentSessions(t *testing.T) {
	manager, _, _ := testFixture(5, curriculum(10)...)
	ctx := context.Background()

	// One manager instance serves every user's session at once.
	sessionIDs := make([]int64, 4)
	for i := range sessionIDs {
		session, err := manager.OpenSession(ctx, int64(i+1))
		require.NoError(t, err)
		sessionIDs[i] = session.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4*50)
	for i, sessionID := range sessionIDs {
		userID := int64(i + 1)
		sessionID := sessionID
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				puzzle, _, err := manager.NextPuzzle(ctx, sessionID, userID)
				if err != nil {
					errs <- err
					return
				}
				if puzzle == nil {
					errs <- fmt.Errorf("session %d drained with no attempts recorded", sessionID)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestCloseSession(t *testing.T) {
	manager, sessions, _ := testFixture(5, curriculum(6)...)
	ctx := context.Background()

	session, err := manager.OpenSession(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, manager.CloseSession(ctx, session.ID))

	stored, err := sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsOpen())
}

func TestCloseSessionNotFound(t *testing.T) {
	manager, _, _ := testFixture(5, curriculum(6)...)

	err := manager.CloseSession(context.Background(), 12345)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRequiredPuzzlesDefault(t *testing.T) {
	manager, _, _ := testFixture(0, curriculum(6)...)
	assert.Equal(t, DefaultRequiredPuzzles, manager.RequiredPuzzles())
}
