package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NINJA QUERY
// Карточка ниндзя: данные, позиция в учебном плане и процент пройденного.
// Чтение через кеш (cache-aside): Redis, затем Postgres.
// ══════════════════════════════════════════════════════════════════════════════

// GetNinjaQuery содержит ID ниндзя.
type GetNinjaQuery struct {
	NinjaID string
}

// Validate проверяет корректность параметров запроса.
func (q GetNinjaQuery) Validate() error {
	if q.NinjaID == "" {
		return errors.New("ninja_id is required")
	}
	return nil
}

// NinjaDTO - карточка ниндзя.
type NinjaDTO struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Username  string    `json:"username"`
	Bux       int       `json:"bux"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Progression StateDTO `json:"progression"`

	// Position - порядковый номер урока на всём треке (с 1).
	Position     int     `json:"position"`
	TotalLessons int     `json:"total_lessons"`
	Percent      float64 `json:"percent"`

	// AtMaximum - последний урок последнего пояса, кнопка "Lesson Up" неактивна.
	AtMaximum bool `json:"at_maximum"`
}

// GetNinjaHandler обрабатывает запрос карточки.
type GetNinjaHandler struct {
	repo  ninja.Repository
	cache ninja.Cache
	ttl   time.Duration
	opts  Options
}

// NewGetNinjaHandler создаёт обработчик. cache может быть nil.
func NewGetNinjaHandler(repo ninja.Repository, cache ninja.Cache, ttl time.Duration, opts Options) *GetNinjaHandler {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &GetNinjaHandler{repo: repo, cache: cache, ttl: ttl, opts: opts.withDefaults()}
}

// Handle выполняет запрос.
func (h *GetNinjaHandler) Handle(ctx context.Context, q GetNinjaQuery) (*NinjaDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("ninja", "Get", shared.ErrValidation, "invalid query", err)
	}

	n, err := h.load(ctx, q.NinjaID)
	if err != nil {
		return nil, err
	}
	return h.ToDTO(n), nil
}

// ToDTO строит карточку по сущности.
func (h *GetNinjaHandler) ToDTO(n *ninja.Ninja) *NinjaDTO {
	c := h.opts.Curriculum
	state := c.NormalizeState(n.Progression)

	return &NinjaDTO{
		ID:           n.ID,
		FirstName:    n.FirstName,
		LastName:     n.LastName,
		Username:     n.Username,
		Bux:          n.Bux,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
		Progression:  NewStateDTO(state),
		Position:     c.Position(state),
		TotalLessons: c.TotalLessons(state.Path),
		Percent:      c.Percent(state),
		AtMaximum:    state == c.TerminalState(state.Path),
	}
}

func (h *GetNinjaHandler) load(ctx context.Context, id string) (*ninja.Ninja, error) {
	if h.cache != nil {
		n, err := h.cache.Get(ctx, id)
		if err != nil {
			h.opts.Logger.Warn("ninja cache read failed", logger.NinjaID(id), logger.Err(err))
		} else if n != nil {
			return n, nil
		}
	}

	n, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get_ninja: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, n, h.ttl); err != nil {
			h.opts.Logger.Warn("ninja cache write failed", logger.NinjaID(id), logger.Err(err))
		}
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST NINJAS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListNinjasQuery - параметры пагинации списка.
type ListNinjasQuery struct {
	Offset int
	Limit  int
}

// ListNinjasDTO - страница списка ниндзя.
type ListNinjasDTO struct {
	Ninjas []*NinjaDTO `json:"ninjas"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// ListNinjas возвращает страницу карточек в порядке создания. Кеш не используется.
func (h *GetNinjaHandler) ListNinjas(ctx context.Context, q ListNinjasQuery) (*ListNinjasDTO, error) {
	opts := ninja.ListOptions{Offset: q.Offset, Limit: q.Limit}.Normalized()

	list, err := h.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list_ninjas: %w", err)
	}

	dto := &ListNinjasDTO{
		Ninjas: make([]*NinjaDTO, 0, len(list)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}
	for _, n := range list {
		dto.Ninjas = append(dto.Ninjas, h.ToDTO(n))
	}
	return dto, nil
}
