// Package catalog holds the static lesson catalog. Lesson metadata is
// content-defined and fixed at deploy time, so it lives in code rather
// than in the database and is passed into the components that need it.
package catalog

import "fmt"

// IntroLessonID identifies the beginner chess lesson that experienced
// players skip at registration.
const IntroLessonID = 0

// Lesson is one named unit of curriculum content. MaxProgression is the
// denominator for percentage-complete and must be at least 1.
type Lesson struct {
	ID             int64
	Name           string
	Description    string
	MaxProgression int
}

// Catalog is an immutable set of lessons, constructed once at startup.
type Catalog struct {
	lessons []Lesson
	byID    map[int64]Lesson
}

// New builds a catalog from the given lessons. It rejects duplicate ids
// and non-positive MaxProgression values so a bad deployment fails at
// startup instead of corrupting percentage math later.
func New(lessons []Lesson) (*Catalog, error) {
	byID := make(map[int64]Lesson, len(lessons))
	for _, lesson := range lessons {
		if lesson.MaxProgression < 1 {
			return nil, fmt.Errorf("lesson %d (%s): max progression must be >= 1, got %d", lesson.ID, lesson.Name, lesson.MaxProgression)
		}
		if _, ok := byID[lesson.ID]; ok {
			return nil, fmt.Errorf("duplicate lesson id %d", lesson.ID)
		}
		byID[lesson.ID] = lesson
	}
	return &Catalog{lessons: lessons, byID: byID}, nil
}

// Default returns the atomic chess curriculum.
func Default() *Catalog {
	c, err := New([]Lesson{
		{
			ID:             IntroLessonID,
			Name:           "Chess",
			Description:    "Never played chess before? This lesson will go through the basics of chess",
			MaxProgression: 13,
		},
		{
			ID:             1,
			Name:           "Atomic",
			Description:    "Learn the rules of Atomic Chess and how they differ from traditional chess",
			MaxProgression: 1,
		},
		{
			ID:             2,
			Name:           "Win Conditions",
			Description:    "In Atomic Chess you can win by checkmate, but can also win by blowing up the enemy king",
			MaxProgression: 4,
		},
		{
			ID:             3,
			Name:           "Opening Traps",
			Description:    "White has many traps they can set in the opening, learn these traps to crush your opponent!",
			MaxProgression: 3,
		},
		{
			ID:             4,
			Name:           "Piece Safety",
			Description:    "The rules of atomic change the way you think about attacking and defending pieces",
			MaxProgression: 3,
		},
		{
			ID:             5,
			Name:           "Kings Touching",
			Description:    "Kings can touch each other in Atomic Chess! This lesson teaches you the consequences of this strange rule",
			MaxProgression: 3,
		},
	})
	if err != nil {
		// The default curriculum is a compile-time constant; a failure
		// here is a programming error.
		panic(err)
	}
	return c
}

// ByID returns the lesson with the given id.
func (c *Catalog) ByID(id int64) (Lesson, bool) {
	lesson, ok := c.byID[id]
	return lesson, ok
}

// ByName returns the lesson with the given name.
func (c *Catalog) ByName(name string) (Lesson, bool) {
	for _, lesson := range c.lessons {
		if lesson.Name == name {
			return lesson, true
		}
	}
	return Lesson{}, false
}

// All returns every lesson in catalog order. The returned slice is a copy.
func (c *Catalog) All() []Lesson {
	out := make([]Lesson, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// Len returns the number of lessons.
func (c *Catalog) Len() int {
	return len(c.lessons)
}
