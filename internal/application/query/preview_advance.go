package query

import (
	"context"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW ADVANCE
// Шаг счётчика без сохранения: что покажет кнопка "Lesson Up" для позиции.
// ══════════════════════════════════════════════════════════════════════════════

// PreviewAdvanceQuery - сырая позиция, как в форме.
type PreviewAdvanceQuery struct {
	Path   string
	Belt   string
	Level  float64
	Lesson float64
}

// AdvancePreviewDTO - результат одного шага.
type AdvancePreviewDTO struct {
	From      StateDTO `json:"from"`
	To        StateDTO `json:"to"`
	Rollover  string   `json:"rollover"`
	AtMaximum bool     `json:"at_maximum"`
}

// PreviewAdvanceHandler обрабатывает запрос шага.
type PreviewAdvanceHandler struct {
	opts Options
}

// NewPreviewAdvanceHandler создаёт обработчик.
func NewPreviewAdvanceHandler(opts Options) *PreviewAdvanceHandler {
	return &PreviewAdvanceHandler{opts: opts.withDefaults()}
}

// Handle нормализует позицию и делает один шаг. Пустой пояс - первый пояс.
func (h *PreviewAdvanceHandler) Handle(ctx context.Context, q PreviewAdvanceQuery) (*AdvancePreviewDTO, error) {
	path, err := progression.ParsePath(q.Path)
	if err != nil {
		return nil, shared.WrapError("progress", "Advance", shared.ErrInvalidInput, "unknown path", err)
	}

	belt := progression.FirstBelt
	if q.Belt != "" {
		if belt, err = progression.ParseBelt(q.Belt); err != nil {
			return nil, shared.WrapError("progress", "Advance", shared.ErrInvalidInput, "unknown belt", err)
		}
	}

	c := h.opts.Curriculum
	t := c.Step(c.Normalize(path, belt, q.Level, q.Lesson))

	return &AdvancePreviewDTO{
		From:      NewStateDTO(t.From),
		To:        NewStateDTO(t.To),
		Rollover:  string(t.Rollover),
		AtMaximum: t.AtMaximum,
	}, nil
}
