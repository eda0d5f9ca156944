package query

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/memory"
)

type lookupCounter struct {
	hits, fallbacks int
}

func (c *lookupCounter) ObserveLookup(_ string, fallback bool) {
	if fallback {
		c.fallbacks++
		return
	}
	c.hits++
}

// countingRepo counts reads that reach the repository.
type countingRepo struct {
	*memory.NinjaRepository
	reads int
}

func (r *countingRepo) GetByID(ctx context.Context, id string) (*ninja.Ninja, error) {
	r.reads++
	return r.NinjaRepository.GetByID(ctx, id)
}

func seedNinja(t *testing.T, store *memory.Store, s progression.State) *ninja.Ninja {
	t.Helper()
	n, err := ninja.NewNinja(ninja.NewNinjaParams{ID: "n-1", FirstName: "Kai", LastName: "Lee", Username: "kai", Path: s.Path})
	require.NoError(t, err)
	n.Progression = s
	require.NoError(t, store.Ninjas().Create(context.Background(), n))
	return n
}

// ──────────────────────────────────────────────────────────────────────────────
// GetBounds
// ──────────────────────────────────────────────────────────────────────────────

func TestGetBounds_ClampsFormValues(t *testing.T) {
	obs := &lookupCounter{}
	h := NewGetBoundsHandler(Options{Observer: obs})

	dto, err := h.Handle(context.Background(), GetBoundsQuery{
		Path:   "javascript",
		Belt:   "purple",
		Level:  99,
		Lesson: math.NaN(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, dto.MinLevel)
	assert.Equal(t, 6, dto.MaxLevel)
	assert.Equal(t, 14, dto.MaxLesson)
	assert.Equal(t, StateDTO{Path: "javascript", Belt: "purple", Level: 6, Lesson: 1}, dto.Normalized)
	assert.False(t, dto.LevelFallback)
	assert.False(t, dto.LessonFallback)
	assert.Equal(t, 2, obs.hits)
	assert.Zero(t, obs.fallbacks)
}

func TestGetBounds_Defaults(t *testing.T) {
	h := NewGetBoundsHandler(Options{})

	dto, err := h.Handle(context.Background(), GetBoundsQuery{})
	require.NoError(t, err)

	assert.Equal(t, "javascript", dto.Path)
	assert.Equal(t, "white", dto.Belt)
	assert.Equal(t, StateDTO{Path: "javascript", Belt: "white", Level: 1, Lesson: 1}, dto.Normalized)
	assert.Equal(t, 1, dto.Position)
	assert.Equal(t, progression.DefaultCurriculum().TotalLessons(progression.PathJavaScript), dto.TotalLessons)
}

func TestGetBounds_Fallback(t *testing.T) {
	obs := &lookupCounter{}
	h := NewGetBoundsHandler(Options{Observer: obs})

	dto, err := h.Handle(context.Background(), GetBoundsQuery{Path: "roblox", Belt: "black", Level: 3, Lesson: 3})
	require.NoError(t, err)

	assert.Equal(t, progression.FallbackBound, dto.MaxLevel)
	assert.Equal(t, progression.FallbackBound, dto.MaxLesson)
	assert.True(t, dto.LevelFallback)
	assert.True(t, dto.LessonFallback)
	assert.Equal(t, 2, obs.fallbacks)
}

func TestGetBounds_UnknownNames(t *testing.T) {
	h := NewGetBoundsHandler(Options{})

	_, err := h.Handle(context.Background(), GetBoundsQuery{Path: "cobol"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetBoundsQuery{Belt: "plaid"})
	assert.True(t, shared.IsValidation(err))
}

// ──────────────────────────────────────────────────────────────────────────────
// GetCurriculum
// ──────────────────────────────────────────────────────────────────────────────

func TestGetCurriculum_AllPaths(t *testing.T) {
	h := NewGetCurriculumHandler(Options{})

	dto, err := h.Handle(context.Background(), GetCurriculumQuery{})
	require.NoError(t, err)
	require.Len(t, dto.Paths, len(progression.Paths))
	assert.Equal(t, progression.FallbackBound, dto.FallbackBound)

	js := dto.Paths[0]
	assert.Equal(t, "javascript", js.Path)
	assert.True(t, js.Default)
	assert.True(t, js.Complete)
	assert.Equal(t, 690, js.TotalLessons)
	require.Len(t, js.Belts, len(progression.BeltOrder))
	assert.Equal(t, []int{20, 20, 20, 25}, js.Belts[8].Lessons)
	assert.Equal(t, 85, js.Belts[8].Total)
}

func TestGetCurriculum_BetaPath(t *testing.T) {
	h := NewGetCurriculumHandler(Options{})

	dto, err := h.Handle(context.Background(), GetCurriculumQuery{Path: "roblox"})
	require.NoError(t, err)
	require.Len(t, dto.Paths, 1)

	roblox := dto.Paths[0]
	assert.False(t, roblox.Complete)
	assert.Equal(t, 54+59+76+6*8*8, roblox.TotalLessons)

	green := roblox.Belts[progression.BeltGreen.Index()]
	assert.False(t, green.Configured)
	assert.Equal(t, 8, green.Levels)
	assert.Equal(t, 64, green.Total)

	_, err = h.Handle(context.Background(), GetCurriculumQuery{Path: "cobol"})
	assert.True(t, shared.IsValidation(err))
}

// ──────────────────────────────────────────────────────────────────────────────
// GetNinja
// ──────────────────────────────────────────────────────────────────────────────

func TestGetNinja_CacheAside(t *testing.T) {
	store := memory.NewStore()
	seedNinja(t, store, progression.TerminalState(progression.PathJavaScript))
	repo := &countingRepo{NinjaRepository: store.Ninjas()}
	cache := memory.NewCache()

	h := NewGetNinjaHandler(repo, cache, time.Minute, Options{})
	ctx := context.Background()

	dto, err := h.Handle(ctx, GetNinjaQuery{NinjaID: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)
	assert.True(t, dto.AtMaximum)
	assert.Equal(t, dto.TotalLessons, dto.Position)
	assert.InDelta(t, 100.0, dto.Percent, 1e-9)

	_, err = h.Handle(ctx, GetNinjaQuery{NinjaID: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads, "second read must be served from cache")

	require.NoError(t, cache.Invalidate(ctx, "n-1"))
	_, err = h.Handle(ctx, GetNinjaQuery{NinjaID: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads)
}

func TestGetNinja_NormalizesStoredState(t *testing.T) {
	store := memory.NewStore()
	seedNinja(t, store, progression.State{Belt: progression.BeltRed, Level: 40, Lesson: 0, Path: progression.PathPython})

	h := NewGetNinjaHandler(store.Ninjas(), nil, 0, Options{})
	dto, err := h.Handle(context.Background(), GetNinjaQuery{NinjaID: "n-1"})
	require.NoError(t, err)

	assert.Equal(t, StateDTO{Path: "python", Belt: "red", Level: 5, Lesson: 1}, dto.Progression)
	assert.False(t, dto.AtMaximum)
}

func TestGetNinja_NotFound(t *testing.T) {
	h := NewGetNinjaHandler(memory.NewStore().Ninjas(), nil, 0, Options{})

	_, err := h.Handle(context.Background(), GetNinjaQuery{NinjaID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), GetNinjaQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestListNinjas(t *testing.T) {
	store := memory.NewStore()
	seedNinja(t, store, progression.InitialState(progression.PathJavaScript))

	h := NewGetNinjaHandler(store.Ninjas(), nil, 0, Options{})
	dto, err := h.ListNinjas(context.Background(), ListNinjasQuery{Limit: 0})
	require.NoError(t, err)

	assert.Equal(t, 50, dto.Limit)
	require.Len(t, dto.Ninjas, 1)
	assert.Equal(t, 1, dto.Ninjas[0].Position)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetProgressHistory
// ──────────────────────────────────────────────────────────────────────────────

func TestGetProgressHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	n := seedNinja(t, store, progression.InitialState(progression.PathJavaScript))

	for i := 0; i < 3; i++ {
		tr := n.LessonUp(nil)
		e, err := ninja.NewProgressEntry("e-"+string(rune('a'+i)), n.ID, ninja.EntryLessonUp, tr, 0)
		require.NoError(t, err)
		e.CreatedAt = time.Date(2024, 1, 1, 10, i, 0, 0, time.UTC)
		require.NoError(t, store.Ninjas().SaveProgress(ctx, n, e))
	}

	h := NewGetProgressHistoryHandler(store.Ninjas(), store.History())
	dto, err := h.Handle(ctx, GetProgressHistoryQuery{NinjaID: n.ID, Limit: 2})
	require.NoError(t, err)

	require.Len(t, dto.Entries, 2)
	assert.Equal(t, "e-c", dto.Entries[0].ID)
	assert.Equal(t, "e-b", dto.Entries[1].ID)
	assert.Equal(t, StateDTO{Path: "javascript", Belt: "white", Level: 1, Lesson: 4}, dto.Entries[0].To)
	assert.Equal(t, "lesson", dto.Entries[0].Rollover)

	_, err = h.Handle(ctx, GetProgressHistoryQuery{NinjaID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, GetProgressHistoryQuery{NinjaID: n.ID, Offset: -1})
	assert.True(t, shared.IsValidation(err))
}

// ──────────────────────────────────────────────────────────────────────────────
// PreviewAdvance
// ──────────────────────────────────────────────────────────────────────────────

func TestPreviewAdvance(t *testing.T) {
	h := NewPreviewAdvanceHandler(Options{})
	ctx := context.Background()

	dto, err := h.Handle(ctx, PreviewAdvanceQuery{Path: "javascript", Belt: "white", Level: 1, Lesson: 8})
	require.NoError(t, err)
	assert.Equal(t, StateDTO{Path: "javascript", Belt: "white", Level: 2, Lesson: 1}, dto.To)
	assert.Equal(t, "level", dto.Rollover)
	assert.False(t, dto.AtMaximum)

	// raw values are normalized before the step
	dto, err = h.Handle(ctx, PreviewAdvanceQuery{Path: "javascript", Belt: "black", Level: 99, Lesson: 99})
	require.NoError(t, err)
	assert.True(t, dto.AtMaximum)
	assert.Equal(t, dto.From, dto.To)
	assert.Equal(t, StateDTO{Path: "javascript", Belt: "black", Level: 4, Lesson: 25}, dto.To)

	_, err = h.Handle(ctx, PreviewAdvanceQuery{Belt: "plaid"})
	assert.True(t, shared.IsValidation(err))
}
