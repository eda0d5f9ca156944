package progression

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCER
// Трёхразрядный счётчик над рваной таблицей: урок переходит в уровень,
// уровень в пояс, пояс упирается в потолок.
// ══════════════════════════════════════════════════════════════════════════════

// Rollover - какой разряд сработал при продвижении.
type Rollover string

const (
	// RolloverLesson - следующий урок того же уровня.
	RolloverLesson Rollover = "lesson"
	// RolloverLevel - первый урок следующего уровня.
	RolloverLevel Rollover = "level"
	// RolloverBelt - первый урок первого уровня следующего пояса.
	RolloverBelt Rollover = "belt"
	// RolloverNone - потолок, состояние не изменилось.
	RolloverNone Rollover = "at_maximum"
)

// Transition - результат одного шага продвижения.
type Transition struct {
	From      State
	To        State
	Rollover  Rollover
	AtMaximum bool
}

// Step вычисляет следующее состояние и сообщает, какой разряд сработал.
// Входное состояние сначала нормализуется.
func (c *Curriculum) Step(s State) Transition {
	cur := c.NormalizeState(s)
	t := Transition{From: cur, To: cur}

	switch {
	case cur.Lesson < c.MaxLessons(cur.Path, cur.Belt, cur.Level):
		t.To.Lesson++
		t.Rollover = RolloverLesson
	case cur.Level < c.MaxLevels(cur.Path, cur.Belt):
		t.To.Level++
		t.To.Lesson = 1
		t.Rollover = RolloverLevel
	default:
		next, ok := cur.Belt.Next()
		if !ok {
			t.Rollover = RolloverNone
			t.AtMaximum = true
			return t
		}
		t.To = State{Belt: next, Level: 1, Lesson: 1, Path: cur.Path}
		t.Rollover = RolloverBelt
	}
	return t
}

// Advance возвращает следующее состояние. atMaximum = true, если продвигаться
// некуда, и тогда next совпадает с (нормализованным) s.
func (c *Curriculum) Advance(s State) (next State, atMaximum bool) {
	t := c.Step(s)
	return t.To, t.AtMaximum
}

// Advance - по встроенной таблице.
func Advance(s State) (State, bool) {
	return defaultCurriculum.Advance(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// WALK
// ══════════════════════════════════════════════════════════════════════════════

// TotalLessons - сумма уроков по всем уровням всех поясов трека.
// Считается через резолвер, так что незаполненные пояса учитываются с FallbackBound.
func (c *Curriculum) TotalLessons(path Path) int {
	total := 0
	for _, belt := range BeltOrder {
		for level := 1; level <= c.MaxLevels(path, belt); level++ {
			total += c.MaxLessons(path, belt, level)
		}
	}
	return total
}

// Position - порядковый номер состояния на пути от InitialState (начиная с 1).
func (c *Curriculum) Position(s State) int {
	cur := c.NormalizeState(s)
	pos := 0
	for _, belt := range BeltOrder[:cur.Belt.Index()] {
		for level := 1; level <= c.MaxLevels(cur.Path, belt); level++ {
			pos += c.MaxLessons(cur.Path, belt, level)
		}
	}
	for level := 1; level < cur.Level; level++ {
		pos += c.MaxLessons(cur.Path, cur.Belt, level)
	}
	return pos + cur.Lesson
}

// Percent - доля пройденного пути в процентах (0-100).
func (c *Curriculum) Percent(s State) float64 {
	total := c.TotalLessons(s.Path)
	if total == 0 {
		return 0
	}
	return float64(c.Position(s)) * 100 / float64(total)
}
