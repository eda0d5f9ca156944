package ninja

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

func newTestNinja(t *testing.T) *Ninja {
	t.Helper()
	n, err := NewNinja(NewNinjaParams{
		ID:        "n-1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada.l",
	})
	require.NoError(t, err)
	return n
}

func TestNewNinja_StartsAtInitialState(t *testing.T) {
	n := newTestNinja(t)

	assert.Equal(t, progression.InitialState(progression.DefaultPath), n.Progression)
	assert.Equal(t, 0, n.Bux)
	assert.Equal(t, "Ada Lovelace", n.FullName())
}

func TestNewNinja_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params NewNinjaParams
		kind   error
	}{
		{"missing id", NewNinjaParams{FirstName: "A", LastName: "B", Username: "abc"}, shared.ErrInvalidID},
		{"missing name", NewNinjaParams{ID: "1", LastName: "B", Username: "abc"}, shared.ErrInvalidInput},
		{"short username", NewNinjaParams{ID: "1", FirstName: "A", LastName: "B", Username: "ab"}, shared.ErrInvalidInput},
		{"username with space", NewNinjaParams{ID: "1", FirstName: "A", LastName: "B", Username: "a b c"}, shared.ErrInvalidInput},
		{"unknown path", NewNinjaParams{ID: "1", FirstName: "A", LastName: "B", Username: "abc", Path: "cobol"}, shared.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNinja(tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestSetProgression_Normalizes(t *testing.T) {
	n := newTestNinja(t)

	tr, changed := n.SetProgression(nil, progression.PathJavaScript, progression.BeltPurple, 40, 40)
	require.True(t, changed)

	assert.Equal(t, progression.InitialState(progression.PathJavaScript), tr.From)
	assert.Equal(t, progression.State{
		Belt:   progression.BeltPurple,
		Level:  6,
		Lesson: 14,
		Path:   progression.PathJavaScript,
	}, n.Progression)

	_, changed = n.SetProgression(nil, progression.PathJavaScript, progression.BeltPurple, 6, 14)
	assert.False(t, changed)
}

func TestLessonUp(t *testing.T) {
	n := newTestNinja(t)

	tr := n.LessonUp(nil)
	assert.False(t, tr.AtMaximum)
	assert.Equal(t, progression.RolloverLesson, tr.Rollover)
	assert.Equal(t, 2, n.Progression.Lesson)
}

func TestLessonUp_AtMaximumDoesNotMutate(t *testing.T) {
	n := newTestNinja(t)
	terminal := progression.TerminalState(progression.PathJavaScript)
	n.Progression = terminal
	before := n.UpdatedAt

	tr := n.LessonUp(nil)
	assert.True(t, tr.AtMaximum)
	assert.Equal(t, terminal, n.Progression)
	assert.Equal(t, before, n.UpdatedAt)
}

func TestProgressEntry_Correct(t *testing.T) {
	tr := progression.Transition{
		From:     progression.State{Belt: progression.BeltWhite, Level: 1, Lesson: 1, Path: progression.PathPython},
		To:       progression.State{Belt: progression.BeltWhite, Level: 1, Lesson: 2, Path: progression.PathPython},
		Rollover: progression.RolloverLesson,
	}
	entry, err := NewProgressEntry("e-1", "n-1", EntryLessonUp, tr, 5)
	require.NoError(t, err)

	previous := entry.Correct(nil, progression.BeltYellow, 99, -4, "typo")

	assert.Equal(t, tr.To, previous)
	assert.Equal(t, progression.State{
		Belt:   progression.BeltYellow,
		Level:  8,
		Lesson: 1,
		Path:   progression.PathPython,
	}, entry.To)
	assert.Equal(t, "typo", entry.Note)
	assert.NotNil(t, entry.CorrectedAt)
}

func TestNewProgressEntry_RejectsUnknownKind(t *testing.T) {
	_, err := NewProgressEntry("e-1", "n-1", EntryKind("teleport"), progression.Transition{}, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLessonUp_KeepsStoredFrom(t *testing.T) {
	n := newTestNinja(t)
	raw := progression.State{Belt: progression.BeltWhite, Level: 0, Lesson: 99, Path: progression.PathJavaScript}
	n.Progression = raw

	tr := n.LessonUp(nil)
	assert.Equal(t, raw, tr.From)
	assert.Equal(t, progression.State{Belt: progression.BeltWhite, Level: 2, Lesson: 1, Path: progression.PathJavaScript}, tr.To)
}
