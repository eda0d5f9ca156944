package query

import (
	"context"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CURRICULUM QUERY
// Таблица учебного плана для экрана "Curriculum": по каждому поясу число
// уровней и уроков. Незаполненные пояса показываются с запасной границей.
// ══════════════════════════════════════════════════════════════════════════════

// GetCurriculumQuery - пустой Path означает все треки.
type GetCurriculumQuery struct {
	Path string
}

// BeltRowDTO - строка таблицы для одного пояса.
type BeltRowDTO struct {
	Belt    string `json:"belt"`
	Levels  int    `json:"levels"`
	Lessons []int  `json:"lessons"`
	Total   int    `json:"total"`

	// Configured = false: пояс не заполнен, значения взяты из FallbackBound.
	Configured bool `json:"configured"`
}

// PathDTO - учебный план одного трека.
type PathDTO struct {
	Path         string       `json:"path"`
	Default      bool         `json:"default"`
	Complete     bool         `json:"complete"`
	TotalLessons int          `json:"total_lessons"`
	Belts        []BeltRowDTO `json:"belts"`
}

// CurriculumDTO - ответ запроса.
type CurriculumDTO struct {
	FallbackBound int       `json:"fallback_bound"`
	Paths         []PathDTO `json:"paths"`
}

// GetCurriculumHandler обрабатывает запрос учебного плана.
type GetCurriculumHandler struct {
	opts Options
}

// NewGetCurriculumHandler создаёт обработчик.
func NewGetCurriculumHandler(opts Options) *GetCurriculumHandler {
	return &GetCurriculumHandler{opts: opts.withDefaults()}
}

// Handle выполняет запрос.
func (h *GetCurriculumHandler) Handle(ctx context.Context, q GetCurriculumQuery) (*CurriculumDTO, error) {
	paths := progression.Paths
	if q.Path != "" {
		p, err := progression.ParsePath(q.Path)
		if err != nil {
			return nil, shared.WrapError("curriculum", "Get", shared.ErrInvalidInput, "unknown path", err)
		}
		paths = []progression.Path{p}
	}

	dto := &CurriculumDTO{
		FallbackBound: progression.FallbackBound,
		Paths:         make([]PathDTO, 0, len(paths)),
	}
	for _, p := range paths {
		dto.Paths = append(dto.Paths, h.pathDTO(p))
	}
	return dto, nil
}

func (h *GetCurriculumHandler) pathDTO(p progression.Path) PathDTO {
	c := h.opts.Curriculum

	out := PathDTO{
		Path:         p.String(),
		Default:      p == progression.DefaultPath,
		Complete:     true,
		TotalLessons: c.TotalLessons(p),
		Belts:        make([]BeltRowDTO, 0, len(progression.BeltOrder)),
	}

	for _, b := range progression.BeltOrder {
		row := BeltRowDTO{
			Belt:       b.String(),
			Levels:     c.MaxLevels(p, b),
			Configured: c.Configured(p, b),
		}
		row.Lessons = make([]int, row.Levels)
		for level := 1; level <= row.Levels; level++ {
			n := c.MaxLessons(p, b, level)
			row.Lessons[level-1] = n
			row.Total += n
		}
		if !row.Configured {
			out.Complete = false
		}
		out.Belts = append(out.Belts, row)
	}
	return out
}
