// Package query contains read operations (CQRS - Queries).
package query

import (
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

// LookupObserver получает результаты поиска границ для метрик.
type LookupObserver interface {
	// ObserveLookup вызывается на каждый поиск; kind - "levels" или "lessons".
	ObserveLookup(kind string, fallback bool)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string, bool) {}

// Options - общие зависимости обработчиков запросов.
type Options struct {
	Curriculum *progression.Curriculum
	Observer   LookupObserver
	Logger     *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Curriculum == nil {
		o.Curriculum = progression.DefaultCurriculum()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// StateDTO - позиция в плоском виде для ответа API.
type StateDTO struct {
	Path   string `json:"path"`
	Belt   string `json:"belt"`
	Level  int    `json:"level"`
	Lesson int    `json:"lesson"`
}

// NewStateDTO переводит состояние в DTO.
func NewStateDTO(s progression.State) StateDTO {
	return StateDTO{
		Path:   s.Path.String(),
		Belt:   s.Belt.String(),
		Level:  s.Level,
		Lesson: s.Lesson,
	}
}
