package query

import (
	"context"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BOUNDS QUERY
// Живые границы формы администратора: при смене пояса или уровня форма
// переспрашивает допустимые диапазоны и подставляет прижатые значения.
// ══════════════════════════════════════════════════════════════════════════════

// GetBoundsQuery содержит сырые значения формы.
type GetBoundsQuery struct {
	// Path - трек; пустой = трек по умолчанию.
	Path string

	// Belt - имя пояса; пустой = первый пояс.
	Belt string

	// Level, Lesson - значения полей как есть (NaN, отрицательные, дробные).
	Level  float64
	Lesson float64
}

// BoundsDTO - допустимые диапазоны и нормализованная позиция.
type BoundsDTO struct {
	Path string `json:"path"`
	Belt string `json:"belt"`

	MinLevel  int `json:"min_level"`
	MaxLevel  int `json:"max_level"`
	MinLesson int `json:"min_lesson"`
	MaxLesson int `json:"max_lesson"`

	// LevelFallback, LessonFallback - граница взята из FallbackBound, а не из таблицы.
	LevelFallback  bool `json:"level_fallback"`
	LessonFallback bool `json:"lesson_fallback"`

	// Normalized - позиция, которую форма должна показать.
	Normalized StateDTO `json:"normalized"`

	Position     int     `json:"position"`
	TotalLessons int     `json:"total_lessons"`
	Percent      float64 `json:"percent"`
}

// GetBoundsHandler обрабатывает запрос границ.
type GetBoundsHandler struct {
	opts Options
}

// NewGetBoundsHandler создаёт обработчик.
func NewGetBoundsHandler(opts Options) *GetBoundsHandler {
	return &GetBoundsHandler{opts: opts.withDefaults()}
}

// Handle выполняет запрос. Ошибка возможна только для неизвестного трека или пояса.
func (h *GetBoundsHandler) Handle(ctx context.Context, q GetBoundsQuery) (*BoundsDTO, error) {
	path, err := progression.ParsePath(q.Path)
	if err != nil {
		return nil, shared.WrapError("progress", "Bounds", shared.ErrInvalidInput, "unknown path", err)
	}

	belt := progression.FirstBelt
	if q.Belt != "" {
		if belt, err = progression.ParseBelt(q.Belt); err != nil {
			return nil, shared.WrapError("progress", "Bounds", shared.ErrInvalidInput, "unknown belt", err)
		}
	}

	c := h.opts.Curriculum
	state := c.Normalize(path, belt, q.Level, q.Lesson)

	levels := c.LookupLevels(path, belt)
	lessons := c.LookupLessons(path, belt, state.Level)

	h.opts.Observer.ObserveLookup("levels", levels.Fallback)
	h.opts.Observer.ObserveLookup("lessons", lessons.Fallback)

	if levels.Fallback || lessons.Fallback {
		h.opts.Logger.Warn("curriculum bound resolved through fallback",
			logger.Path(path.String()),
			logger.Belt(belt.String()),
			logger.CurriculumLevel(state.Level),
			logger.Int("fallback", progression.FallbackBound),
		)
	}

	return &BoundsDTO{
		Path:           path.String(),
		Belt:           belt.String(),
		MinLevel:       1,
		MaxLevel:       levels.Value,
		MinLesson:      1,
		MaxLesson:      lessons.Value,
		LevelFallback:  levels.Fallback,
		LessonFallback: lessons.Fallback,
		Normalized:     NewStateDTO(state),
		Position:       c.Position(state),
		TotalLessons:   c.TotalLessons(path),
		Percent:        c.Percent(state),
	}, nil
}
