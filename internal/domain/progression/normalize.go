package progression

import (
	"math"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// NORMALIZER
// Ввод из форм никогда не отклоняется, а молча приводится к допустимому.
// ══════════════════════════════════════════════════════════════════════════════

// ClampLevel приводит значение уровня к [1, MaxLevels(path, belt)].
// NaN, бесконечности и значения < 1 дают 1, дробные значения отбрасывают дробную часть.
func (c *Curriculum) ClampLevel(path Path, belt Belt, value float64) int {
	return clamp(value, c.MaxLevels(path, belt))
}

// ClampLesson приводит значение урока к [1, MaxLessons(path, belt, level')],
// где level' - уже приведённый уровень, а не исходный.
func (c *Curriculum) ClampLesson(path Path, belt Belt, level, value float64) int {
	clampedLevel := c.ClampLevel(path, belt, level)
	return clamp(value, c.MaxLessons(path, belt, clampedLevel))
}

// Normalize приводит произвольный набор к допустимому состоянию.
// Сначала уровень, потом урок относительно приведённого уровня. Идемпотентна.
// Неизвестный пояс приводится к ближайшей границе BeltOrder.
func (c *Curriculum) Normalize(path Path, belt Belt, level, lesson float64) State {
	belt = clampBelt(belt)
	clampedLevel := c.ClampLevel(path, belt, level)
	return State{
		Belt:   belt,
		Level:  clampedLevel,
		Lesson: clamp(lesson, c.MaxLessons(path, belt, clampedLevel)),
		Path:   path,
	}
}

// NormalizeState - Normalize для уже собранного состояния.
func (c *Curriculum) NormalizeState(s State) State {
	return c.Normalize(s.Path, s.Belt, float64(s.Level), float64(s.Lesson))
}

// ClampLevel - по встроенной таблице.
func ClampLevel(path Path, belt Belt, value float64) int {
	return defaultCurriculum.ClampLevel(path, belt, value)
}

// ClampLesson - по встроенной таблице.
func ClampLesson(path Path, belt Belt, level, value float64) int {
	return defaultCurriculum.ClampLesson(path, belt, level, value)
}

// Normalize - по встроенной таблице.
func Normalize(path Path, belt Belt, level, lesson float64) State {
	return defaultCurriculum.Normalize(path, belt, level, lesson)
}

// ParseNumber разбирает ввод формы. Пустая или нечисловая строка даёт NaN,
// который нормализатор превращает в 1.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func clamp(value float64, upper int) int {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 1 {
		return 1
	}
	if value > float64(upper) {
		return upper
	}
	return int(math.Trunc(value))
}

func clampBelt(b Belt) Belt {
	switch {
	case b < FirstBelt:
		return FirstBelt
	case b > LastBelt:
		return LastBelt
	default:
		return b
	}
}
