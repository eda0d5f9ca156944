package ninja

import (
	"context"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с записями ниндзя.
type Repository interface {
	// Create создаёт ниндзя.
	// Возвращает shared.ErrNinjaAlreadyExists, если логин занят.
	Create(ctx context.Context, n *Ninja) error

	// GetByID возвращает ниндзя по ID.
	// Возвращает shared.ErrNinjaNotFound, если записи нет.
	GetByID(ctx context.Context, id string) (*Ninja, error)

	// Update сохраняет изменения ниндзя.
	Update(ctx context.Context, n *Ninja) error

	// List возвращает ниндзя с пагинацией.
	List(ctx context.Context, opts ListOptions) ([]*Ninja, error)

	// SaveProgress атомарно сохраняет ниндзя и дописывает запись журнала.
	// Запись применяется, только если сохранённая позиция равна entry.From,
	// иначе возвращается shared.ErrConcurrentModification.
	SaveProgress(ctx context.Context, n *Ninja, entry *ProgressEntry) error
}

// HistoryRepository - журнал прогресса.
type HistoryRepository interface {
	// GetByID возвращает запись журнала.
	// Возвращает shared.ErrProgressEntryNotFound, если записи нет.
	GetByID(ctx context.Context, id string) (*ProgressEntry, error)

	// ListByNinja возвращает записи ниндзя, новые первыми.
	ListByNinja(ctx context.Context, ninjaID string, opts ListOptions) ([]*ProgressEntry, error)

	// UpdateTarget сохраняет исправленную целевую позицию записи.
	UpdateTarget(ctx context.Context, entry *ProgressEntry) error
}

// Cache - кеш карточек ниндзя.
type Cache interface {
	// Get возвращает (nil, nil) при промахе.
	Get(ctx context.Context, id string) (*Ninja, error)
	Set(ctx context.Context, n *Ninja, ttl time.Duration) error
	Invalidate(ctx context.Context, id string) error
}

// RewardCalculator считает начисление Bux за переход.
// Правила наград живут во внешней системе.
type RewardCalculator interface {
	BuxFor(ctx context.Context, n *Ninja, t progression.Transition) (int, error)
}

// NoReward ничего не начисляет.
type NoReward struct{}

// BuxFor implements RewardCalculator.
func (NoReward) BuxFor(context.Context, *Ninja, progression.Transition) (int, error) {
	return 0, nil
}

// ListOptions содержит параметры пагинации.
type ListOptions struct {
	Offset int
	Limit  int
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{Offset: 0, Limit: 50}
}

// Normalized ограничивает лимит и смещение разумными значениями.
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 || o.Limit > 200 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
