// Package progression содержит лестницу прогрессии ниндзя: пояс, уровень, урок.
// Это ядро бизнес-логики - здесь нет внешних зависимостей и нет ввода-вывода.
package progression

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// BELT
// ══════════════════════════════════════════════════════════════════════════════

// Belt - пояс ниндзя. Значение равно позиции пояса в BeltOrder.
// Порядок поясов задан явно и никогда не выводится из сравнения строк.
type Belt int

const (
	BeltWhite Belt = iota
	BeltYellow
	BeltOrange
	BeltGreen
	BeltBlue
	BeltPurple
	BeltBrown
	BeltRed
	BeltBlack
)

// BeltOrder - фиксированная последовательность поясов, по которой идёт продвижение.
var BeltOrder = [...]Belt{
	BeltWhite,
	BeltYellow,
	BeltOrange,
	BeltGreen,
	BeltBlue,
	BeltPurple,
	BeltBrown,
	BeltRed,
	BeltBlack,
}

var beltNames = [...]string{
	BeltWhite:  "white",
	BeltYellow: "yellow",
	BeltOrange: "orange",
	BeltGreen:  "green",
	BeltBlue:   "blue",
	BeltPurple: "purple",
	BeltBrown:  "brown",
	BeltRed:    "red",
	BeltBlack:  "black",
}

// FirstBelt и LastBelt - границы лестницы.
const (
	FirstBelt = BeltWhite
	LastBelt  = BeltBlack
)

// Index возвращает позицию пояса в BeltOrder.
func (b Belt) Index() int {
	return int(b)
}

// IsValid проверяет, что пояс входит в BeltOrder.
func (b Belt) IsValid() bool {
	return b >= FirstBelt && b <= LastBelt
}

// Next возвращает следующий пояс. false - если это последний пояс.
func (b Belt) Next() (Belt, bool) {
	if !b.IsValid() || b == LastBelt {
		return b, false
	}
	return BeltOrder[b.Index()+1], true
}

// String возвращает имя пояса.
func (b Belt) String() string {
	if !b.IsValid() {
		return fmt.Sprintf("belt(%d)", int(b))
	}
	return beltNames[b]
}

// ParseBelt разбирает имя пояса без учёта регистра.
func ParseBelt(s string) (Belt, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, b := range BeltOrder {
		if beltNames[b] == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBelt, s)
}

// MarshalText сериализует пояс по имени.
func (b Belt) MarshalText() ([]byte, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBelt, int(b))
	}
	return []byte(beltNames[b]), nil
}

// UnmarshalText разбирает пояс из имени.
func (b *Belt) UnmarshalText(text []byte) error {
	parsed, err := ParseBelt(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
