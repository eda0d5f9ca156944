package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON UP COMMAND
// The "Lesson Up" button: moves a ninja forward by exactly one lesson.
// At the final lesson of the final belt nothing is written.
// ══════════════════════════════════════════════════════════════════════════════

// LessonUpCommand contains the data to advance a ninja.
type LessonUpCommand struct {
	NinjaID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c LessonUpCommand) Validate() error {
	if c.NinjaID == "" {
		return errors.New("lesson_up: ninja_id is required")
	}
	return nil
}

// LessonUpResult contains the outcome of a Lesson Up.
type LessonUpResult struct {
	Ninja *ninja.Ninja

	// Transition is the odometer step. To equals From when AtMaximum is set.
	Transition progression.Transition

	// AtMaximum is true when the ninja already stood on the terminal state.
	AtMaximum bool

	// EntryID is the history record written for this step (empty at maximum).
	EntryID string

	// BuxDelta is the reward granted by the reward calculator.
	BuxDelta int
}

// LessonUpHandler handles the LessonUpCommand.
type LessonUpHandler struct {
	repo      ninja.Repository
	cache     ninja.Cache
	rewards   ninja.RewardCalculator
	publisher shared.EventPublisher
	opts      Options
}

// NewLessonUpHandler creates a new LessonUpHandler.
// cache may be nil; a nil rewards calculator grants nothing.
func NewLessonUpHandler(
	repo ninja.Repository,
	cache ninja.Cache,
	rewards ninja.RewardCalculator,
	publisher shared.EventPublisher,
	opts Options,
) *LessonUpHandler {
	if rewards == nil {
		rewards = ninja.NoReward{}
	}
	return &LessonUpHandler{
		repo:      repo,
		cache:     cache,
		rewards:   rewards,
		publisher: publisher,
		opts:      opts.withDefaults(),
	}
}

// Handle executes the lesson up command.
func (h *LessonUpHandler) Handle(ctx context.Context, cmd LessonUpCommand) (*LessonUpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("ninja", "LessonUp", shared.ErrValidation, "invalid command", err)
	}

	var result *LessonUpResult
	err := saveRetrier().Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.attempt(ctx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.opts.Observer.ObserveAdvance(result.Transition.From.Path, result.Transition.Rollover)

	if result.AtMaximum {
		h.opts.Logger.Info("lesson up at maximum progression",
			logger.NinjaID(cmd.NinjaID),
			logger.Path(result.Transition.From.Path.String()),
		)
		return result, nil
	}

	if usesFallback(h.opts.Curriculum, result.Transition.To) {
		to := result.Transition.To
		h.opts.Observer.ObserveFallback(to.Path, to.Belt)
		h.opts.Logger.Warn("progression resolved through fallback bound",
			logger.NinjaID(cmd.NinjaID),
			logger.Path(to.Path.String()),
			logger.Belt(to.Belt.String()),
			logger.Int("fallback", progression.FallbackBound),
		)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, cmd.NinjaID); err != nil {
			h.opts.Logger.Warn("failed to invalidate ninja cache", logger.NinjaID(cmd.NinjaID), logger.Err(err))
		}
	}

	t := result.Transition
	event := shared.NewNinjaProgressedEvent(
		cmd.NinjaID,
		result.EntryID,
		string(ninja.EntryLessonUp),
		string(t.Rollover),
		ninja.Snapshot(t.From),
		ninja.Snapshot(t.To),
		result.BuxDelta,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if err := h.publisher.Publish(event); err != nil {
		h.opts.Logger.Warn("failed to publish event", logger.NinjaID(cmd.NinjaID), logger.Err(err))
	}

	return result, nil
}

// attempt runs one read-advance-save cycle. SaveProgress fails with
// shared.ErrConcurrentModification if the stored state moved since the read.
func (h *LessonUpHandler) attempt(ctx context.Context, cmd LessonUpCommand) (*LessonUpResult, error) {
	n, err := h.repo.GetByID(ctx, cmd.NinjaID)
	if err != nil {
		return nil, fmt.Errorf("lesson_up: failed to get ninja: %w", err)
	}

	t := n.LessonUp(h.opts.Curriculum)
	if t.AtMaximum {
		return &LessonUpResult{Ninja: n, Transition: t, AtMaximum: true}, nil
	}

	bux, err := h.rewards.BuxFor(ctx, n, t)
	if err != nil {
		// Rewards never block progress.
		h.opts.Logger.Warn("reward calculation failed", logger.NinjaID(n.ID), logger.Err(err))
		bux = 0
	}
	n.AddBux(bux)

	entry, err := ninja.NewProgressEntry(h.opts.NewID(), n.ID, ninja.EntryLessonUp, t, bux)
	if err != nil {
		return nil, err
	}

	if err := h.repo.SaveProgress(ctx, n, entry); err != nil {
		return nil, fmt.Errorf("lesson_up: failed to save progress: %w", err)
	}

	return &LessonUpResult{
		Ninja:      n,
		Transition: t,
		EntryID:    entry.ID,
		BuxDelta:   bux,
	}, nil
}
