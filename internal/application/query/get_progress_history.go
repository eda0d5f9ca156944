package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS HISTORY QUERY
// Журнал переходов ниндзя, новые записи первыми.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressHistoryQuery содержит параметры запроса журнала.
type GetProgressHistoryQuery struct {
	NinjaID string
	Offset  int
	Limit   int
}

// Validate проверяет корректность параметров запроса.
func (q GetProgressHistoryQuery) Validate() error {
	if q.NinjaID == "" {
		return errors.New("ninja_id is required")
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// ProgressEntryDTO - запись журнала.
type ProgressEntryDTO struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	From        StateDTO   `json:"from"`
	To          StateDTO   `json:"to"`
	Rollover    string     `json:"rollover,omitempty"`
	BuxDelta    int        `json:"bux_delta"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// ProgressHistoryDTO - страница журнала.
type ProgressHistoryDTO struct {
	NinjaID string             `json:"ninja_id"`
	Entries []ProgressEntryDTO `json:"entries"`
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
}

// GetProgressHistoryHandler обрабатывает запрос журнала.
type GetProgressHistoryHandler struct {
	repo    ninja.Repository
	history ninja.HistoryRepository
}

// NewGetProgressHistoryHandler создаёт обработчик.
func NewGetProgressHistoryHandler(repo ninja.Repository, history ninja.HistoryRepository) *GetProgressHistoryHandler {
	return &GetProgressHistoryHandler{repo: repo, history: history}
}

// Handle выполняет запрос. Для несуществующего ниндзя возвращает shared.ErrNinjaNotFound.
func (h *GetProgressHistoryHandler) Handle(ctx context.Context, q GetProgressHistoryQuery) (*ProgressHistoryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("progress", "History", shared.ErrValidation, "invalid query", err)
	}

	if _, err := h.repo.GetByID(ctx, q.NinjaID); err != nil {
		return nil, fmt.Errorf("get_progress_history: %w", err)
	}

	opts := ninja.ListOptions{Offset: q.Offset, Limit: q.Limit}.Normalized()
	entries, err := h.history.ListByNinja(ctx, q.NinjaID, opts)
	if err != nil {
		return nil, fmt.Errorf("get_progress_history: %w", err)
	}

	dto := &ProgressHistoryDTO{
		NinjaID: q.NinjaID,
		Entries: make([]ProgressEntryDTO, 0, len(entries)),
		Offset:  opts.Offset,
		Limit:   opts.Limit,
	}
	for _, e := range entries {
		dto.Entries = append(dto.Entries, NewProgressEntryDTO(e))
	}
	return dto, nil
}

// NewProgressEntryDTO переводит запись журнала в DTO.
func NewProgressEntryDTO(e *ninja.ProgressEntry) ProgressEntryDTO {
	return ProgressEntryDTO{
		ID:          e.ID,
		Kind:        string(e.Kind),
		From:        NewStateDTO(e.From),
		To:          NewStateDTO(e.To),
		Rollover:    string(e.Rollover),
		BuxDelta:    e.BuxDelta,
		Note:        e.Note,
		CreatedAt:   e.CreatedAt,
		CorrectedAt: e.CorrectedAt,
	}
}
