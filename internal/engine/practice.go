package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/puzzletrainer/pkg/models"
)

// PracticeSelector picks puzzles for open practice. It prefers puzzles
// the user has not passed yet, widening the completion-count threshold
// until candidates appear, so practice never dead-ends while the pool
// is non-empty. Safe for concurrent use.
type PracticeSelector struct {
	puzzles PuzzleSource
	ledger  CompletionLedger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewPracticeSelector creates a selector over the given pool and ledger.
func NewPracticeSelector(puzzles PuzzleSource, ledger CompletionLedger) *PracticeSelector {
	return &PracticeSelector{
		puzzles: puzzles,
		ledger:  ledger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SelectPuzzle returns one practice puzzle for the user, drawn uniformly
// at random from the narrowest non-empty candidate set. A nil lessonID
// selects across all lessons. A nil puzzle with a nil error means the
// pool itself is empty, which is a normal terminal state.
//
// Candidates at threshold k are the pooled puzzles the user has completed
// fewer than k times in open practice. The loop starts at k=1 (never
// passed) and widens one step at a time; once k exceeds the user's
// highest per-puzzle completion count nothing is excluded, so the loop
// is bounded by that count plus one.
func (s *PracticeSelector) SelectPuzzle(ctx context.Context, userID int64, lessonID *int64) (*models.Puzzle, error) {
	pool, err := s.pool(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	maxCompletions, err := s.ledger.MaxPracticeCompletions(ctx, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("max practice completions: %w", err)
	}

	for threshold := 1; threshold <= maxCompletions; threshold++ {
		excluded, err := s.ledger.PuzzlesCompletedAtLeast(ctx, userID, lessonID, threshold)
		if err != nil {
			return nil, fmt.Errorf("puzzles completed at least %d times: %w", threshold, err)
		}
		candidates := pool[:0:0]
		for _, puzzle := range pool {
			if _, ok := excluded[puzzle.ID]; !ok {
				candidates = append(candidates, puzzle)
			}
		}
		if len(candidates) > 0 {
			return s.pick(candidates), nil
		}
	}

	// Every pooled puzzle has been completed at least maxCompletions
	// times, so at threshold maxCompletions+1 nothing is excluded and
	// the whole pool re-opens.
	return s.pick(pool), nil
}

// RecordCompletion appends an open-practice completion to the ledger.
// Practice allows any number of completions per puzzle; each pass widens
// the puzzle's exclusion threshold by one.
func (s *PracticeSelector) RecordCompletion(ctx context.Context, userID, puzzleID int64, attempts int, start, end time.Time) error {
	err := s.ledger.RecordCompletion(ctx, &models.PuzzleCompletion{
		UserID:    userID,
		PuzzleID:  puzzleID,
		Attempts:  attempts,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return fmt.Errorf("record practice completion: %w", err)
	}
	return nil
}

// CompletedInLesson reports how many distinct puzzles of the lesson the
// user has completed, in practice or in tests.
func (s *PracticeSelector) CompletedInLesson(ctx context.Context, userID, lessonID int64) (int, error) {
	count, err := s.ledger.CountDistinctCompleted(ctx, userID, &lessonID, nil)
	if err != nil {
		return 0, fmt.Errorf("count completed in lesson %d: %w", lessonID, err)
	}
	return count, nil
}

func (s *PracticeSelector) pool(ctx context.Context, lessonID *int64) ([]models.Puzzle, error) {
	if lessonID == nil {
		pool, err := s.puzzles.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("list puzzles: %w", err)
		}
		return pool, nil
	}
	pool, err := s.puzzles.ByLesson(ctx, *lessonID)
	if err != nil {
		return nil, fmt.Errorf("list puzzles for lesson %d: %w", *lessonID, err)
	}
	return pool, nil
}

func (s *PracticeSelector) pick(candidates []models.Puzzle) *models.Puzzle {
	s.mu.Lock()
	i := s.rng.Intn(len(candidates))
	s.mu.Unlock()
	puzzle := candidates[i]
	return &puzzle
}
