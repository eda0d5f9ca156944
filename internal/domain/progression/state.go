package progression

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION STATE
// ══════════════════════════════════════════════════════════════════════════════

// State - позиция ниндзя в учебном плане. Level и Lesson нумеруются с 1.
// Инвариант: 1 <= Level <= MaxLevels(Path, Belt) и 1 <= Lesson <= MaxLessons(Path, Belt, Level).
type State struct {
	Belt   Belt `json:"belt"`
	Level  int  `json:"level"`
	Lesson int  `json:"lesson"`
	Path   Path `json:"path"`
}

// InitialState - первый пояс, уровень 1, урок 1.
func InitialState(path Path) State {
	return State{Belt: FirstBelt, Level: 1, Lesson: 1, Path: path}
}

// TerminalState - последний урок последнего уровня последнего пояса трека.
func (c *Curriculum) TerminalState(path Path) State {
	level := c.MaxLevels(path, LastBelt)
	return State{
		Belt:   LastBelt,
		Level:  level,
		Lesson: c.MaxLessons(path, LastBelt, level),
		Path:   path,
	}
}

// TerminalState - то же, что DefaultCurriculum().TerminalState.
func TerminalState(path Path) State {
	return defaultCurriculum.TerminalState(path)
}

// Valid проверяет инвариант состояния по таблице.
func (c *Curriculum) Valid(s State) bool {
	if !s.Belt.IsValid() {
		return false
	}
	if s.Level < 1 || s.Level > c.MaxLevels(s.Path, s.Belt) {
		return false
	}
	return s.Lesson >= 1 && s.Lesson <= c.MaxLessons(s.Path, s.Belt, s.Level)
}

// Valid проверяет инвариант по встроенной таблице.
func (s State) Valid() bool {
	return defaultCurriculum.Valid(s)
}

// Compare сравнивает состояния лексикографически по (индекс пояса, уровень, урок).
// Трек не участвует в сравнении.
func Compare(a, b State) int {
	switch {
	case a.Belt.Index() != b.Belt.Index():
		return sign(a.Belt.Index() - b.Belt.Index())
	case a.Level != b.Level:
		return sign(a.Level - b.Level)
	default:
		return sign(a.Lesson - b.Lesson)
	}
}

// String возвращает состояние для логов.
func (s State) String() string {
	return fmt.Sprintf("%s/%s L%d.%d", s.Path, s.Belt, s.Level, s.Lesson)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
