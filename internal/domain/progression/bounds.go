package progression

// ══════════════════════════════════════════════════════════════════════════════
// BOUNDS RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Bound - результат поиска границы в таблице.
// Fallback = true, если значение взято из FallbackBound, а не из таблицы.
type Bound struct {
	Value    int
	Fallback bool
}

// LookupLevels возвращает количество уровней пояса на треке.
func (c *Curriculum) LookupLevels(path Path, belt Belt) Bound {
	levels, ok := c.table()[path][belt]
	if !ok || len(levels) == 0 {
		return Bound{Value: FallbackBound, Fallback: true}
	}
	return Bound{Value: len(levels)}
}

// LookupLessons возвращает количество уроков уровня.
// Уровень вне [1, MaxLevels] даёт FallbackBound.
func (c *Curriculum) LookupLessons(path Path, belt Belt, level int) Bound {
	levels, ok := c.table()[path][belt]
	if !ok || level < 1 || level > len(levels) {
		return Bound{Value: FallbackBound, Fallback: true}
	}
	return Bound{Value: levels[level-1]}
}

// MaxLevels - количество уровней пояса на треке.
func (c *Curriculum) MaxLevels(path Path, belt Belt) int {
	return c.LookupLevels(path, belt).Value
}

// MaxLessons - количество уроков уровня пояса на треке.
func (c *Curriculum) MaxLessons(path Path, belt Belt, level int) int {
	return c.LookupLessons(path, belt, level).Value
}

// MaxLevels - то же, что DefaultCurriculum().MaxLevels.
func MaxLevels(path Path, belt Belt) int {
	return defaultCurriculum.MaxLevels(path, belt)
}

// MaxLessons - то же, что DefaultCurriculum().MaxLessons.
func MaxLessons(path Path, belt Belt, level int) int {
	return defaultCurriculum.MaxLessons(path, belt, level)
}
