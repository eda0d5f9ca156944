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
// UPDATE PROGRESSION COMMAND
// Admin edit of a ninja's belt, level and lesson. Input is never rejected for
// being out of range: it is clamped into the curriculum bounds.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressionCommand contains the admin form values.
type UpdateProgressionCommand struct {
	NinjaID string

	// Path is the curriculum track; empty keeps the ninja's current path.
	Path string

	// Belt is the belt name, e.g. "green".
	Belt string

	// Level and Lesson are raw numeric form values (may be NaN, negative or huge).
	Level  float64
	Lesson float64

	Note string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateProgressionCommand) Validate() error {
	if c.NinjaID == "" {
		return errors.New("update_progression: ninja_id is required")
	}
	if c.Belt == "" {
		return errors.New("update_progression: belt is required")
	}
	return nil
}

// UpdateProgressionResult contains the outcome of the edit.
type UpdateProgressionResult struct {
	Ninja      *ninja.Ninja
	Transition progression.Transition

	// Changed is false when the normalized input equals the stored state.
	Changed bool

	// EntryID is the admin_edit history record (empty when unchanged).
	EntryID string

	// Fallback is true when the new state's bounds came from the fallback constant.
	Fallback bool
}

// UpdateProgressionHandler handles the UpdateProgressionCommand.
type UpdateProgressionHandler struct {
	repo      ninja.Repository
	cache     ninja.Cache
	publisher shared.EventPublisher
	opts      Options
}

// NewUpdateProgressionHandler creates a new UpdateProgressionHandler. cache may be nil.
func NewUpdateProgressionHandler(repo ninja.Repository, cache ninja.Cache, publisher shared.EventPublisher, opts Options) *UpdateProgressionHandler {
	return &UpdateProgressionHandler{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		opts:      opts.withDefaults(),
	}
}

// Handle executes the update progression command.
func (h *UpdateProgressionHandler) Handle(ctx context.Context, cmd UpdateProgressionCommand) (*UpdateProgressionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("ninja", "UpdateProgression", shared.ErrValidation, "invalid command", err)
	}

	belt, err := progression.ParseBelt(cmd.Belt)
	if err != nil {
		return nil, shared.WrapError("ninja", "UpdateProgression", shared.ErrInvalidInput, "unknown belt", err)
	}

	var path progression.Path
	if cmd.Path != "" {
		if path, err = progression.ParsePath(cmd.Path); err != nil {
			return nil, shared.WrapError("ninja", "UpdateProgression", shared.ErrInvalidInput, "unknown path", err)
		}
	}

	var result *UpdateProgressionResult
	err = saveRetrier().Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.attempt(ctx, cmd, path, belt)
		return err
	})
	if err != nil {
		return nil, err
	}

	to := result.Transition.To
	if result.Fallback {
		h.opts.Observer.ObserveFallback(to.Path, to.Belt)
		h.opts.Logger.Warn("progression resolved through fallback bound",
			logger.NinjaID(cmd.NinjaID),
			logger.Path(to.Path.String()),
			logger.Belt(to.Belt.String()),
			logger.Int("fallback", progression.FallbackBound),
		)
	}

	if !result.Changed {
		return result, nil
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, cmd.NinjaID); err != nil {
			h.opts.Logger.Warn("failed to invalidate ninja cache", logger.NinjaID(cmd.NinjaID), logger.Err(err))
		}
	}

	event := shared.NewNinjaProgressedEvent(
		cmd.NinjaID,
		result.EntryID,
		string(ninja.EntryAdminEdit),
		"",
		ninja.Snapshot(result.Transition.From),
		ninja.Snapshot(to),
		0,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if err := h.publisher.Publish(event); err != nil {
		h.opts.Logger.Warn("failed to publish event", logger.NinjaID(cmd.NinjaID), logger.Err(err))
	}

	h.opts.Logger.Info("progression updated",
		logger.NinjaID(cmd.NinjaID),
		logger.String("from", result.Transition.From.String()),
		logger.String("to", to.String()),
	)

	return result, nil
}

func (h *UpdateProgressionHandler) attempt(ctx context.Context, cmd UpdateProgressionCommand, path progression.Path, belt progression.Belt) (*UpdateProgressionResult, error) {
	n, err := h.repo.GetByID(ctx, cmd.NinjaID)
	if err != nil {
		return nil, fmt.Errorf("update_progression: failed to get ninja: %w", err)
	}

	if path == "" {
		path = n.Progression.Path
	}

	t, changed := n.SetProgression(h.opts.Curriculum, path, belt, cmd.Level, cmd.Lesson)
	result := &UpdateProgressionResult{
		Ninja:      n,
		Transition: t,
		Changed:    changed,
		Fallback:   usesFallback(h.opts.Curriculum, t.To),
	}
	if !changed {
		return result, nil
	}

	entry, err := ninja.NewProgressEntry(h.opts.NewID(), n.ID, ninja.EntryAdminEdit, t, 0)
	if err != nil {
		return nil, err
	}
	entry.Note = cmd.Note

	if err := h.repo.SaveProgress(ctx, n, entry); err != nil {
		return nil, fmt.Errorf("update_progression: failed to save progress: %w", err)
	}

	result.EntryID = entry.ID
	return result, nil
}
