// Package ninja содержит доменную модель ниндзя (ученика дожо) и журнал его прогресса.
// Позиция в учебном плане меняется только через пакет progression.
package ninja

import (
	"fmt"
	"strings"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: NINJA
// ══════════════════════════════════════════════════════════════════════════════

// Ninja - ученик дожо.
type Ninja struct {
	// ID - внутренний идентификатор (UUID в строковом формате).
	ID string `json:"id"`

	// FirstName, LastName - имя и фамилия.
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Username - логин для входа на дашборд.
	Username string `json:"username"`

	// Progression - текущая позиция в учебном плане.
	Progression progression.State `json:"progression"`

	// Bux - баланс виртуальной валюты. Начисления считаются снаружи.
	Bux int `json:"bux"`

	// CreatedAt - время создания записи.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewNinjaParams содержит параметры для создания ниндзя.
type NewNinjaParams struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	Path      progression.Path
}

// NewNinja создаёт ниндзя в начальном состоянии: первый пояс, уровень 1, урок 1.
func NewNinja(params NewNinjaParams) (*Ninja, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("ninja", "Create", shared.ErrInvalidID, "ninja id is required")
	}

	first := strings.TrimSpace(params.FirstName)
	last := strings.TrimSpace(params.LastName)
	if first == "" || last == "" || len(first) > 100 || len(last) > 100 {
		return nil, shared.ErrInvalidNinjaName
	}

	username := strings.TrimSpace(params.Username)
	if len(username) < 3 || len(username) > 40 || strings.ContainsAny(username, " \t\n\r") {
		return nil, shared.ErrInvalidUsername
	}

	path := params.Path
	if path == "" {
		path = progression.DefaultPath
	}
	if !path.IsKnown() {
		return nil, shared.ErrInvalidPath
	}

	now := time.Now().UTC()

	return &Ninja{
		ID:          params.ID,
		FirstName:   first,
		LastName:    last,
		Username:    username,
		Progression: progression.InitialState(path),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// SetProgression - правка администратором. Ввод не отклоняется, а нормализуется.
// Возвращает переход; changed = false, если состояние не изменилось.
func (n *Ninja) SetProgression(c *progression.Curriculum, path progression.Path, belt progression.Belt, level, lesson float64) (t progression.Transition, changed bool) {
	from := n.Progression
	to := c.Normalize(path, belt, level, lesson)

	t = progression.Transition{From: from, To: to}
	if from == to {
		return t, false
	}

	n.Progression = to
	n.UpdatedAt = time.Now().UTC()
	return t, true
}

// LessonUp продвигает ниндзя на один урок.
// На потолке состояние не меняется, и Transition.AtMaximum = true.
func (n *Ninja) LessonUp(c *progression.Curriculum) progression.Transition {
	t := c.Step(n.Progression)
	// From остаётся сохранённым значением, даже если оно было вне границ.
	t.From = n.Progression
	if t.AtMaximum {
		return t
	}

	n.Progression = t.To
	n.UpdatedAt = time.Now().UTC()
	return t
}

// AddBux начисляет (или списывает) валюту.
func (n *Ninja) AddBux(delta int) {
	if delta == 0 {
		return
	}
	n.Bux += delta
	n.UpdatedAt = time.Now().UTC()
}

// FullName возвращает имя и фамилию.
func (n *Ninja) FullName() string {
	return n.FirstName + " " + n.LastName
}

// String возвращает строковое представление для логирования.
func (n *Ninja) String() string {
	return fmt.Sprintf("Ninja{ID: %s, Username: %s, Progression: %s}", n.ID, n.Username, n.Progression)
}

// Clone создаёт копию ниндзя.
func (n *Ninja) Clone() *Ninja {
	if n == nil {
		return nil
	}

	clone := *n
	return &clone
}

// Snapshot переводит состояние в плоский вид для событий.
func Snapshot(s progression.State) shared.ProgressSnapshot {
	return shared.ProgressSnapshot{
		Belt:   s.Belt.String(),
		Level:  s.Level,
		Lesson: s.Lesson,
		Path:   s.Path.String(),
	}
}
