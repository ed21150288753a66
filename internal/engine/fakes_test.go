package engine

import (
	"context"
	"time"

	"github.com/example/puzzletrainer/pkg/models"
)

// In-memory implementations of the persistence interfaces so selection
// and progression behavior is tested without a database.

type memPuzzles struct {
	puzzles []models.Puzzle
}

func (m *memPuzzles) All(ctx context.Context) ([]models.Puzzle, error) {
	return append([]models.Puzzle(nil), m.puzzles...), nil
}

func (m *memPuzzles) ByLesson(ctx context.Context, lessonID int64) ([]models.Puzzle, error) {
	var out []models.Puzzle
	for _, p := range m.puzzles {
		if p.LessonID == lessonID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPuzzles) lessonOf(puzzleID int64) (int64, bool) {
	for _, p := range m.puzzles {
		if p.ID == puzzleID {
			return p.LessonID, true
		}
	}
	return 0, false
}

type memLedger struct {
	puzzles *memPuzzles
	records []models.PuzzleCompletion
	nextID  int64
}

func newMemLedger(puzzles *memPuzzles) *memLedger {
	return &memLedger{puzzles: puzzles}
}

func (m *memLedger) RecordCompletion(ctx context.Context, completion *models.PuzzleCompletion) error {
	m.nextID++
	completion.ID = m.nextID
	m.records = append(m.records, *completion)
	return nil
}

func (m *memLedger) matches(rec models.PuzzleCompletion, userID int64, lessonID, sessionID *int64) bool {
	if rec.UserID != userID {
		return false
	}
	if lessonID != nil {
		lesson, ok := m.puzzles.lessonOf(rec.PuzzleID)
		if !ok || lesson != *lessonID {
			return false
		}
	}
	if sessionID != nil {
		if rec.TestSessionID == nil || *rec.TestSessionID != *sessionID {
			return false
		}
	}
	return true
}

func (m *memLedger) CountDistinctCompleted(ctx context.Context, userID int64, lessonID, sessionID *int64) (int, error) {
	seen := map[int64]struct{}{}
	for _, rec := range m.records {
		if m.matches(rec, userID, lessonID, sessionID) {
			seen[rec.PuzzleID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *memLedger) practiceCounts(userID int64, lessonID *int64) map[int64]int {
	counts := map[int64]int{}
	for _, rec := range m.records {
		if rec.TestSessionID != nil {
			continue
		}
		if m.matches(rec, userID, lessonID, nil) {
			counts[rec.PuzzleID]++
		}
	}
	return counts
}

func (m *memLedger) PuzzlesCompletedAtLeast(ctx context.Context, userID int64, lessonID *int64, minCount int) (map[int64]struct{}, error) {
	out := map[int64]struct{}{}
	for id, n := range m.practiceCounts(userID, lessonID) {
		if n >= minCount {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *memLedger) MaxPracticeCompletions(ctx context.Context, userID int64, lessonID *int64) (int, error) {
	max := 0
	for _, n := range m.practiceCounts(userID, lessonID) {
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (m *memLedger) SessionCompletedPuzzleIDs(ctx context.Context, userID, sessionID int64) (map[int64]struct{}, error) {
	out := map[int64]struct{}{}
	for _, rec := range m.records {
		if rec.UserID == userID && rec.TestSessionID != nil && *rec.TestSessionID == sessionID {
			out[rec.PuzzleID] = struct{}{}
		}
	}
	return out, nil
}

type progressKey struct {
	userID   int64
	lessonID int64
}

type memProgress struct {
	rows map[progressKey]models.LessonProgress
}

func newMemProgress() *memProgress {
	return &memProgress{rows: map[progressKey]models.LessonProgress{}}
}

func (m *memProgress) Get(ctx context.Context, userID, lessonID int64) (*models.LessonProgress, error) {
	row, ok := m.rows[progressKey{userID, lessonID}]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (m *memProgress) Upsert(ctx context.Context, userID, lessonID int64, update models.ProgressUpdate) error {
	key := progressKey{userID, lessonID}
	row, ok := m.rows[key]
	if !ok {
		row = models.LessonProgress{UserID: userID, LessonID: lessonID}
	}
	if update.Progression != nil {
		row.Progression = *update.Progression
	}
	if update.CompletedLesson != nil {
		row.CompletedLesson = *update.CompletedLesson
	}
	if update.CompletedTest != nil {
		row.CompletedTest = *update.CompletedTest
	}
	m.rows[key] = row
	return nil
}

type memSessions struct {
	sessions map[int64]*models.TestSession
	nextID   int64
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[int64]*models.TestSession{}}
}

func (m *memSessions) Create(ctx context.Context, userID int64, start time.Time) (*models.TestSession, error) {
	m.nextID++
	session := &models.TestSession{ID: m.nextID, UserID: userID, StartTime: start}
	m.sessions[session.ID] = session
	copied := *session
	return &copied, nil
}

func (m *memSessions) Get(ctx context.Context, sessionID int64) (*models.TestSession, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *memSessions) Close(ctx context.Context, sessionID int64, end time.Time) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.EndTime = &end
	return nil
}
