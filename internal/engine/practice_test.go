package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/puzzletrainer/pkg/models"
)

func int64Ptr(v int64) *int64 { return &v }

func practiceFixture(puzzles ...models.Puzzle) (*PracticeSelector, *memLedger) {
	source := &memPuzzles{puzzles: puzzles}
	ledger := newMemLedger(source)
	return NewPracticeSelector(source, ledger), ledger
}

func completePractice(t *testing.T, ledger *memLedger, userID, puzzleID int64, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		err := ledger.RecordCompletion(context.Background(), &models.PuzzleCompletion{
			UserID:    userID,
			PuzzleID:  puzzleID,
			Attempts:  1,
			StartTime: time.Now(),
			EndTime:   time.Now(),
		})
		require.NoError(t, err)
	}
}

func TestSelectPuzzleEmptyPool(t *testing.T) {
	selector, _ := practiceFixture()

	puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Nil(t, puzzle, "empty pool is a valid no-puzzle outcome, not an error")
}

func TestSelectPuzzlePrefersUnattempted(t *testing.T) {
	selector, ledger := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 1},
	)
	completePractice(t, ledger, 1, 1, 1)

	// P2 is the only candidate at threshold 1, so selection is forced.
	for i := 0; i < 20; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.Equal(t, int64(2), puzzle.ID)
	}
}

func TestSelectPuzzleWidensWhenPoolExhausted(t *testing.T) {
	selector, ledger := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 1},
	)
	completePractice(t, ledger, 1, 1, 1)
	completePractice(t, ledger, 1, 2, 1)

	// Both puzzles are excluded at threshold 1; the pool must re-open
	// rather than dead-end.
	for i := 0; i < 20; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.Contains(t, []int64{1, 2}, puzzle.ID)
	}
}

func TestSelectPuzzleMonotonicWidening(t *testing.T) {
	selector, ledger := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 1},
		models.Puzzle{ID: 3, LessonID: 1},
	)
	// P1 completed three times, the rest untouched: P1 stays excluded
	// until the others have caught up.
	completePractice(t, ledger, 1, 1, 3)

	for i := 0; i < 30; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.NotEqual(t, int64(1), puzzle.ID)
	}

	// Catch the others up to three completions; P1 becomes eligible again.
	completePractice(t, ledger, 1, 2, 3)
	completePractice(t, ledger, 1, 3, 3)

	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		seen[puzzle.ID] = true
	}
	assert.True(t, seen[1], "P1 must re-enter the candidate set once no puzzle has fewer completions")
}

func TestSelectPuzzleTerminatesForAnyHistory(t *testing.T) {
	pool := []models.Puzzle{
		{ID: 1, LessonID: 1},
		{ID: 2, LessonID: 1},
		{ID: 3, LessonID: 2},
		{ID: 4, LessonID: 2},
	}
	selector, ledger := practiceFixture(pool...)
	// Uneven history across the pool.
	completePractice(t, ledger, 1, 1, 5)
	completePractice(t, ledger, 1, 2, 2)
	completePractice(t, ledger, 1, 3, 9)

	ids := map[int64]bool{1: true, 2: true, 3: true, 4: true}
	for i := 0; i < 50; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle, "non-empty pool must always yield a puzzle")
		assert.True(t, ids[puzzle.ID], "result must come from the pool")
	}
}

func TestSelectPuzzleScopedToLesson(t *testing.T) {
	selector, _ := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 2},
		models.Puzzle{ID: 3, LessonID: 2},
	)

	for i := 0; i < 20; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, int64Ptr(2))
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.Equal(t, int64(2), puzzle.LessonID)
	}
}

func TestSelectPuzzleIgnoresOtherUsersHistory(t *testing.T) {
	selector, ledger := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 1},
	)
	// Another user exhausting P2 must not exclude it for user 1.
	completePractice(t, ledger, 99, 2, 4)
	completePractice(t, ledger, 1, 1, 1)

	for i := 0; i < 20; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.Equal(t, int64(2), puzzle.ID)
	}
}

func TestSelectPuzzleIgnoresTestCompletions(t *testing.T) {
	selector, ledger := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 1},
	)
	// A completion inside a test session is not practice history.
	sessionID := int64(7)
	err := ledger.RecordCompletion(context.Background(), &models.PuzzleCompletion{
		UserID:        1,
		PuzzleID:      1,
		Attempts:      1,
		StartTime:     time.Now(),
		EndTime:       time.Now(),
		TestSessionID: &sessionID,
	})
	require.NoError(t, err)
	completePractice(t, ledger, 1, 2, 1)

	for i := 0; i < 20; i++ {
		puzzle, err := selector.SelectPuzzle(context.Background(), 1, nil)
		require.NoError(t, err)
		require.NotNil(t, puzzle)
		assert.Equal(t, int64(1), puzzle.ID)
	}
}

func TestSelectPuzzleConcurrentCallers(t *testing.T) {
	selector, ledger := practiceFixture(
		models.Puzzle{ID: 1, LessonID: 1},
		models.Puzzle{ID: 2, LessonID: 1},
		models.Puzzle{ID: 3, LessonID: 1},
	)
	completePractice(t, ledger, 1, 1, 1)
	completePractice(t, ledger, 2, 2, 2)

	// One selector instance serves every user at once.
	var wg sync.WaitGroup
	errs := make(chan error, 4*50)
	for g := 0; g < 4; g++ {
		userID := int64(g + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				puzzle, err := selector.SelectPuzzle(context.Background(), userID, nil)
				if err != nil {
					errs <- err
					return
				}
				if puzzle == nil {
					errs <- fmt.Errorf("user %d got no puzzle from a non-empty pool", userID)
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

func TestRecordCompletionIsPracticeScoped(t *testing.T) {
	selector, ledger := practiceFixture(models.Puzzle{ID: 1, LessonID: 1})

	start := time.Now().Add(-time.Minute)
	require.NoError(t, selector.RecordCompletion(context.Background(), 1, 1, 3, start, time.Now()))

	require.Len(t, ledger.records, 1)
	record := ledger.records[0]
	assert.Nil(t, record.TestSessionID)
	assert.Equal(t, 3, record.Attempts)
}
