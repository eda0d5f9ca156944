package progression

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM TABLE
// ══════════════════════════════════════════════════════════════════════════════

// FallbackBound возвращается, когда пары (трек, пояс) или уровня нет в таблице.
// Незаполненный трек (например, beta) не должен ломать вызывающий код.
const FallbackBound = 8

// Rows - строки таблицы: для каждого (трек, пояс) число уроков на каждом уровне.
// Длина среза - количество уровней пояса, элемент i - уроки уровня i+1.
type Rows map[Path]map[Belt][]int

// Curriculum - неизменяемая таблица учебного плана.
// Нулевой указатель ведёт себя как DefaultCurriculum().
type Curriculum struct {
	rows Rows
}

// NewCurriculum создаёт таблицу из строк, копируя их.
// Пустые строки и неположительные количества уроков отклоняются.
func NewCurriculum(rows Rows) (*Curriculum, error) {
	c := &Curriculum{rows: copyRows(rows)}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultCurriculum возвращает встроенную таблицу.
func DefaultCurriculum() *Curriculum {
	return defaultCurriculum
}

// Validate проверяет строки таблицы. Nil - встроенная таблица, она проверена
// при инициализации пакета.
func (c *Curriculum) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	for path, belts := range c.rows {
		for belt, levels := range belts {
			if !belt.IsValid() {
				errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidCurriculum, path, belt))
				continue
			}
			if len(levels) == 0 {
				errs = append(errs, fmt.Errorf("%w: %s/%s has no levels", ErrInvalidCurriculum, path, belt))
				continue
			}
			for i, lessons := range levels {
				if lessons < 1 {
					errs = append(errs, fmt.Errorf("%w: %s/%s level %d has %d lessons",
						ErrInvalidCurriculum, path, belt, i+1, lessons))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// WithOverrides возвращает новую таблицу, где строки overrides заменяют
// соответствующие пары (трек, пояс). Исходная таблица не меняется.
func (c *Curriculum) WithOverrides(overrides Rows) (*Curriculum, error) {
	merged := copyRows(c.table())
	for path, belts := range overrides {
		if merged[path] == nil {
			merged[path] = make(map[Belt][]int, len(belts))
		}
		for belt, levels := range belts {
			merged[path][belt] = append([]int(nil), levels...)
		}
	}
	return NewCurriculum(merged)
}

// Rows возвращает копию строк трека по поясам. Порядок вывода задаёт
// вызывающий код через BeltOrder; отсутствующие пояса в результат не попадают.
func (c *Curriculum) Rows(path Path) map[Belt][]int {
	belts := c.table()[path]
	out := make(map[Belt][]int, len(belts))
	for belt, levels := range belts {
		out[belt] = append([]int(nil), levels...)
	}
	return out
}

// Configured сообщает, есть ли в таблице строка для пары (трек, пояс).
func (c *Curriculum) Configured(path Path, belt Belt) bool {
	_, ok := c.table()[path][belt]
	return ok
}

func (c *Curriculum) table() Rows {
	if c == nil {
		return defaultCurriculum.rows
	}
	return c.rows
}

func copyRows(rows Rows) Rows {
	out := make(Rows, len(rows))
	for path, belts := range rows {
		out[path] = make(map[Belt][]int, len(belts))
		for belt, levels := range belts {
			out[path][belt] = append([]int(nil), levels...)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Строки JavaScript и Python почти совпадают. Расхождения сохранены как есть,
// пока методисты не подтвердят, что это осознанное решение.
var builtinRows = Rows{
	PathJavaScript: {
		BeltWhite:  {8, 6, 6, 7, 7, 6, 6, 8},
		BeltYellow: {8, 8, 7, 7, 8, 8, 7, 6},
		BeltOrange: {10, 9, 9, 10, 10, 9, 9, 10},
		BeltGreen:  {10, 10, 11, 11, 10, 10, 12, 12},
		BeltBlue:   {12, 12, 11, 11, 12, 12, 10, 10},
		BeltPurple: {12, 12, 12, 12, 14, 14},
		BeltBrown:  {14, 14, 13, 13, 15, 15},
		BeltRed:    {15, 15, 16, 16, 18},
		BeltBlack:  {20, 20, 20, 25},
	},
	PathPython: {
		BeltWhite:  {8, 6, 6, 7, 7, 6, 6, 8},
		BeltYellow: {8, 8, 7, 7, 8, 8, 7, 7},
		BeltOrange: {10, 9, 9, 10, 10, 9, 10, 10},
		BeltGreen:  {10, 10, 11, 11, 10, 11, 12, 12},
		BeltBlue:   {12, 12, 11, 11, 12, 12, 10, 10},
		BeltPurple: {12, 12, 12, 13, 14, 14},
		BeltBrown:  {14, 14, 13, 13, 15, 15},
		BeltRed:    {15, 15, 16, 16, 18},
		BeltBlack:  {20, 20, 22, 25},
	},
	// Roblox в beta: до релиза заполнены только первые пояса (копия JavaScript),
	// остальные идут через FallbackBound.
	PathRoblox: {
		BeltWhite:  {8, 6, 6, 7, 7, 6, 6, 8},
		BeltYellow: {8, 8, 7, 7, 8, 8, 7, 6},
		BeltOrange: {10, 9, 9, 10, 10, 9, 9, 10},
	},
}

var defaultCurriculum = mustCurriculum(builtinRows)

func mustCurriculum(rows Rows) *Curriculum {
	c, err := NewCurriculum(rows)
	if err != nil {
		panic(err)
	}
	return c
}
