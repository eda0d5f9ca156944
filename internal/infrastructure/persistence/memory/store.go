// Package memory provides in-process implementations of the ninja repositories and cache.
// Used in development when Postgres or Redis are disabled, and by handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// Store keeps ninjas and their progress history in maps.
type Store struct {
	mu        sync.RWMutex
	ninjas    map[string]*ninja.Ninja
	usernames map[string]string
	order     []string
	entries   map[string]*ninja.ProgressEntry
	byNinja   map[string][]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		ninjas:    make(map[string]*ninja.Ninja),
		usernames: make(map[string]string),
		entries:   make(map[string]*ninja.ProgressEntry),
		byNinja:   make(map[string][]string),
	}
}

// Ninjas returns the ninja.Repository view of the store.
func (s *Store) Ninjas() *NinjaRepository { return &NinjaRepository{s: s} }

// History returns the ninja.HistoryRepository view of the store.
func (s *Store) History() *HistoryRepository { return &HistoryRepository{s: s} }

// ══════════════════════════════════════════════════════════════════════════════
// NINJAS
// ══════════════════════════════════════════════════════════════════════════════

// NinjaRepository implements ninja.Repository.
type NinjaRepository struct {
	s *Store
}

var _ ninja.Repository = (*NinjaRepository)(nil)

// Create implements ninja.Repository.
func (r *NinjaRepository) Create(ctx context.Context, n *ninja.Ninja) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.ninjas[n.ID]; ok {
		return shared.ErrNinjaAlreadyExists
	}
	if _, ok := r.s.usernames[n.Username]; ok {
		return shared.ErrNinjaAlreadyExists
	}

	r.s.ninjas[n.ID] = n.Clone()
	r.s.usernames[n.Username] = n.ID
	r.s.order = append(r.s.order, n.ID)
	return nil
}

// GetByID implements ninja.Repository.
func (r *NinjaRepository) GetByID(ctx context.Context, id string) (*ninja.Ninja, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.ninjas[id]
	if !ok {
		return nil, shared.ErrNinjaNotFound
	}
	return n.Clone(), nil
}

// Update implements ninja.Repository.
func (r *NinjaRepository) Update(ctx context.Context, n *ninja.Ninja) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	old, ok := r.s.ninjas[n.ID]
	if !ok {
		return shared.ErrNinjaNotFound
	}
	if owner, taken := r.s.usernames[n.Username]; taken && owner != n.ID {
		return shared.ErrNinjaAlreadyExists
	}

	delete(r.s.usernames, old.Username)
	r.s.usernames[n.Username] = n.ID
	r.s.ninjas[n.ID] = n.Clone()
	return nil
}

// List implements ninja.Repository. Ninjas come back in creation order.
func (r *NinjaRepository) List(ctx context.Context, opts ninja.ListOptions) ([]*ninja.Ninja, error) {
	opts = opts.Normalized()

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if opts.Offset >= len(r.s.order) {
		return []*ninja.Ninja{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(r.s.order) {
		end = len(r.s.order)
	}

	out := make([]*ninja.Ninja, 0, end-opts.Offset)
	for _, id := range r.s.order[opts.Offset:end] {
		out = append(out, r.s.ninjas[id].Clone())
	}
	return out, nil
}

// SaveProgress implements ninja.Repository.
func (r *NinjaRepository) SaveProgress(ctx context.Context, n *ninja.Ninja, entry *ninja.ProgressEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.ninjas[n.ID]
	if !ok {
		return shared.ErrNinjaNotFound
	}
	if stored.Progression != entry.From {
		return shared.NewDomainError("ninja", "SaveProgress", shared.ErrConcurrentModification,
			"progression changed since it was read")
	}

	r.s.ninjas[n.ID] = n.Clone()

	e := *entry
	r.s.entries[e.ID] = &e
	r.s.byNinja[n.ID] = append(r.s.byNinja[n.ID], e.ID)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository implements ninja.HistoryRepository.
type HistoryRepository struct {
	s *Store
}

var _ ninja.HistoryRepository = (*HistoryRepository)(nil)

// GetByID implements ninja.HistoryRepository.
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*ninja.ProgressEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.entries[id]
	if !ok {
		return nil, shared.ErrProgressEntryNotFound
	}
	cp := *e
	return &cp, nil
}

// ListByNinja implements ninja.HistoryRepository. Newest entries first.
func (r *HistoryRepository) ListByNinja(ctx context.Context, ninjaID string, opts ninja.ListOptions) ([]*ninja.ProgressEntry, error) {
	opts = opts.Normalized()

	r.s.mu.RLock()
	ids := r.s.byNinja[ninjaID]
	all := make([]*ninja.ProgressEntry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		cp := *r.s.entries[ids[i]]
		all = append(all, &cp)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return []*ninja.ProgressEntry{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

// UpdateTarget implements ninja.HistoryRepository.
func (r *HistoryRepository) UpdateTarget(ctx context.Context, entry *ninja.ProgressEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.entries[entry.ID]
	if !ok {
		return shared.ErrProgressEntryNotFound
	}

	stored.To = entry.To
	stored.Note = entry.Note
	stored.CorrectedAt = entry.CorrectedAt
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

type cacheItem struct {
	n       *ninja.Ninja
	expires time.Time
}

// Cache implements ninja.Cache with per-entry expiry.
type Cache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	now   func() time.Time
}

var _ ninja.Cache = (*Cache)(nil)

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]cacheItem), now: time.Now}
}

// Get implements ninja.Cache. A miss returns (nil, nil).
func (c *Cache) Get(ctx context.Context, id string) (*ninja.Ninja, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	if c.now().After(item.expires) {
		delete(c.items, id)
		return nil, nil
	}
	return item.n.Clone(), nil
}

// Set implements ninja.Cache.
func (c *Cache) Set(ctx context.Context, n *ninja.Ninja, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[n.ID] = cacheItem{n: n.Clone(), expires: c.now().Add(ttl)}
	return nil
}

// Invalidate implements ninja.Cache.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, id)
	return nil
}
