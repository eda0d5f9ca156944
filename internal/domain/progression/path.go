package progression

import (
	"errors"
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// PATH
// ══════════════════════════════════════════════════════════════════════════════

// Path - учебный трек. У каждого трека своя строка таблицы на каждый пояс.
type Path string

const (
	// PathJavaScript - основной трек, назначается по умолчанию.
	PathJavaScript Path = "javascript"
	// PathPython - трек Python.
	PathPython Path = "python"
	// PathRoblox - трек Roblox (beta, таблица заполнена частично).
	PathRoblox Path = "roblox"
)

// DefaultPath - трек новых ниндзя.
const DefaultPath = PathJavaScript

// Paths - все известные треки.
var Paths = []Path{PathJavaScript, PathPython, PathRoblox}

// IsKnown проверяет, что трек входит в Paths.
func (p Path) IsKnown() bool {
	for _, known := range Paths {
		if p == known {
			return true
		}
	}
	return false
}

// String возвращает имя трека.
func (p Path) String() string {
	return string(p)
}

// ParsePath разбирает имя трека. Пустая строка даёт DefaultPath.
func ParsePath(s string) (Path, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DefaultPath, nil
	}
	p := Path(name)
	if !p.IsKnown() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPath, s)
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUnknownBelt - имя пояса не найдено в BeltOrder.
	ErrUnknownBelt = errors.New("unknown belt")

	// ErrUnknownPath - имя трека не найдено в Paths.
	ErrUnknownPath = errors.New("unknown path")

	// ErrInvalidCurriculum - таблица учебного плана некорректна.
	ErrInvalidCurriculum = errors.New("invalid curriculum")
)
