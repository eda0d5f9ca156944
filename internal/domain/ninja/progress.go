package ninja

import (
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HISTORY
// Журнал только дописывается: каждая смена позиции - отдельная запись.
// ══════════════════════════════════════════════════════════════════════════════

// EntryKind - источник перехода.
type EntryKind string

const (
	// EntryLessonUp - кнопка "Lesson Up" на карточке ниндзя.
	EntryLessonUp EntryKind = "lesson_up"
	// EntryAdminEdit - правка позиции в форме администратора.
	EntryAdminEdit EntryKind = "admin_edit"
)

// IsValid проверяет тип записи.
func (k EntryKind) IsValid() bool {
	return k == EntryLessonUp || k == EntryAdminEdit
}

// ProgressEntry - запись журнала прогресса.
type ProgressEntry struct {
	ID       string               `json:"id"`
	NinjaID  string               `json:"ninja_id"`
	Kind     EntryKind            `json:"kind"`
	From     progression.State    `json:"from"`
	To       progression.State    `json:"to"`
	Rollover progression.Rollover `json:"rollover,omitempty"`

	// BuxDelta - начисление за переход, посчитанное внешней системой наград.
	BuxDelta int `json:"bux_delta"`

	// Note - комментарий администратора.
	Note string `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// CorrectedAt - время последней правки записи (nil, если не правилась).
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// NewProgressEntry создаёт запись журнала по переходу.
func NewProgressEntry(id, ninjaID string, kind EntryKind, t progression.Transition, buxDelta int) (*ProgressEntry, error) {
	if id == "" || ninjaID == "" {
		return nil, shared.NewDomainError("progress", "Create", shared.ErrInvalidID, "entry id and ninja id are required")
	}
	if !kind.IsValid() {
		return nil, shared.ErrInvalidEntryKind
	}

	return &ProgressEntry{
		ID:        id,
		NinjaID:   ninjaID,
		Kind:      kind,
		From:      t.From,
		To:        t.To,
		Rollover:  t.Rollover,
		BuxDelta:  buxDelta,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Correct исправляет целевую позицию записи. Новая тройка проходит через тот же
// нормализатор, что и форма администратора, под треком записи.
// Возвращает позицию до правки.
func (e *ProgressEntry) Correct(c *progression.Curriculum, belt progression.Belt, level, lesson float64, note string) progression.State {
	previous := e.To
	e.To = c.Normalize(e.To.Path, belt, level, lesson)
	if note != "" {
		e.Note = note
	}

	now := time.Now().UTC()
	e.CorrectedAt = &now
	return previous
}
