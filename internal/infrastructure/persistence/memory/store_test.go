package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

func mustNinja(t *testing.T, id, username string) *ninja.Ninja {
	t.Helper()
	n, err := ninja.NewNinja(ninja.NewNinjaParams{ID: id, FirstName: "Kai", LastName: "Lee", Username: username})
	require.NoError(t, err)
	return n
}

func TestNinjaRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Ninjas()

	n := mustNinja(t, "n-1", "kai")
	require.NoError(t, repo.Create(ctx, n))

	err := repo.Create(ctx, mustNinja(t, "n-2", "kai"))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	got, err := repo.GetByID(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, n.Username, got.Username)

	// Returned values are copies.
	got.Bux = 100
	again, _ := repo.GetByID(ctx, "n-1")
	assert.Zero(t, again.Bux)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestNinjaRepository_ListPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Ninjas()
	for _, u := range []string{"aaa", "bbb", "ccc"} {
		require.NoError(t, repo.Create(ctx, mustNinja(t, "id-"+u, u)))
	}

	page, err := repo.List(ctx, ninja.ListOptions{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "bbb", page[0].Username)

	empty, err := repo.List(ctx, ninja.ListOptions{Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveProgress_ComparesStoredState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Ninjas()

	n := mustNinja(t, "n-1", "kai")
	require.NoError(t, repo.Create(ctx, n))

	stale := n.Clone()

	tr := n.LessonUp(nil)
	entry, err := ninja.NewProgressEntry("e-1", n.ID, ninja.EntryLessonUp, tr, 0)
	require.NoError(t, err)
	require.NoError(t, repo.SaveProgress(ctx, n, entry))

	// A second writer that read before the first save loses.
	tr2 := stale.LessonUp(nil)
	entry2, err := ninja.NewProgressEntry("e-2", n.ID, ninja.EntryLessonUp, tr2, 0)
	require.NoError(t, err)
	err = repo.SaveProgress(ctx, stale, entry2)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	history, err := store.History().ListByNinja(ctx, n.ID, ninja.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "e-1", history[0].ID)
}

func TestHistoryRepository_UpdateTarget(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	n := mustNinja(t, "n-1", "kai")
	require.NoError(t, store.Ninjas().Create(ctx, n))

	tr := n.LessonUp(nil)
	entry, _ := ninja.NewProgressEntry("e-1", n.ID, ninja.EntryLessonUp, tr, 0)
	require.NoError(t, store.Ninjas().SaveProgress(ctx, n, entry))

	entry.Correct(nil, progression.BeltYellow, 2, 3, "fix")
	require.NoError(t, store.History().UpdateTarget(ctx, entry))

	got, err := store.History().GetByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, progression.BeltYellow, got.To.Belt)
	assert.Equal(t, "fix", got.Note)

	err = store.History().UpdateTarget(ctx, &ninja.ProgressEntry{ID: "nope"})
	assert.True(t, shared.IsNotFound(err))
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	n := mustNinja(t, "n-1", "kai")
	require.NoError(t, c.Set(ctx, n, time.Minute))

	got, err := c.Get(ctx, "n-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Minute)
	got, err = c.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, n, time.Minute))
	require.NoError(t, c.Invalidate(ctx, "n-1"))
	got, _ = c.Get(ctx, "n-1")
	assert.Nil(t, got)
}
