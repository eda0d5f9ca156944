// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
	"github.com/dojo-hub/ninja-dashboard/pkg/retry"
)

// IDGenerator produces identifiers for new records.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string { return uuid.NewString() }

// ProgressObserver receives progression outcomes for metrics.
type ProgressObserver interface {
	// ObserveAdvance is called once per Lesson Up, including attempts at the maximum.
	ObserveAdvance(path progression.Path, rollover progression.Rollover)

	// ObserveFallback is called when a ninja's state resolves through the fallback bound.
	ObserveFallback(path progression.Path, belt progression.Belt)
}

type nopObserver struct{}

func (nopObserver) ObserveAdvance(progression.Path, progression.Rollover) {}
func (nopObserver) ObserveFallback(progression.Path, progression.Belt)    {}

// Options holds collaborators shared by all handlers. Zero values are replaced with defaults.
type Options struct {
	Curriculum *progression.Curriculum
	NewID      IDGenerator
	Observer   ProgressObserver
	Logger     *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Curriculum == nil {
		o.Curriculum = progression.DefaultCurriculum()
	}
	if o.NewID == nil {
		o.NewID = NewUUID
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// usesFallback reports whether any bound of s comes from the fallback constant.
func usesFallback(c *progression.Curriculum, s progression.State) bool {
	return c.LookupLevels(s.Path, s.Belt).Fallback ||
		c.LookupLessons(s.Path, s.Belt, s.Level).Fallback
}

// saveRetrier retries read-modify-write cycles that lost a race with another writer.
func saveRetrier() *retry.Retrier {
	return retry.DatabaseRetrier(retry.WithRetryIf(func(err error) bool {
		return errors.Is(err, shared.ErrConcurrentModification)
	}))
}
