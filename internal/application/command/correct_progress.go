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
// CORRECT PROGRESS COMMAND
// Fixes the target position of a history entry. The corrected triple goes
// through the same clamping as the admin form, under the entry's path.
// The ninja's current state is not touched.
// ══════════════════════════════════════════════════════════════════════════════

// CorrectProgressCommand contains the corrected values.
type CorrectProgressCommand struct {
	NinjaID string
	EntryID string

	Belt   string
	Level  float64
	Lesson float64
	Note   string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CorrectProgressCommand) Validate() error {
	if c.NinjaID == "" || c.EntryID == "" {
		return errors.New("correct_progress: ninja_id and entry_id are required")
	}
	if c.Belt == "" {
		return errors.New("correct_progress: belt is required")
	}
	return nil
}

// CorrectProgressResult contains the corrected entry.
type CorrectProgressResult struct {
	Entry    *ninja.ProgressEntry
	Previous progression.State
	Changed  bool
}

// CorrectProgressHandler handles the CorrectProgressCommand.
type CorrectProgressHandler struct {
	history   ninja.HistoryRepository
	publisher shared.EventPublisher
	opts      Options
}

// NewCorrectProgressHandler creates a new CorrectProgressHandler.
func NewCorrectProgressHandler(history ninja.HistoryRepository, publisher shared.EventPublisher, opts Options) *CorrectProgressHandler {
	return &CorrectProgressHandler{
		history:   history,
		publisher: publisher,
		opts:      opts.withDefaults(),
	}
}

// Handle executes the correct progress command.
func (h *CorrectProgressHandler) Handle(ctx context.Context, cmd CorrectProgressCommand) (*CorrectProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("progress", "Correct", shared.ErrValidation, "invalid command", err)
	}

	belt, err := progression.ParseBelt(cmd.Belt)
	if err != nil {
		return nil, shared.WrapError("progress", "Correct", shared.ErrInvalidInput, "unknown belt", err)
	}

	entry, err := h.history.GetByID(ctx, cmd.EntryID)
	if err != nil {
		return nil, fmt.Errorf("correct_progress: failed to get entry: %w", err)
	}
	if entry.NinjaID != cmd.NinjaID {
		return nil, shared.ErrProgressEntryNotFound
	}

	previous := entry.Correct(h.opts.Curriculum, belt, cmd.Level, cmd.Lesson, cmd.Note)

	if err := h.history.UpdateTarget(ctx, entry); err != nil {
		return nil, fmt.Errorf("correct_progress: failed to update entry: %w", err)
	}

	result := &CorrectProgressResult{
		Entry:    entry,
		Previous: previous,
		Changed:  previous != entry.To,
	}

	if !result.Changed {
		h.opts.Logger.Debug("progress entry target unchanged",
			logger.NinjaID(cmd.NinjaID),
			logger.EntryID(entry.ID),
		)
		return result, nil
	}

	event := shared.NewProgressCorrectedEvent(cmd.NinjaID, entry.ID, ninja.Snapshot(previous), ninja.Snapshot(entry.To))
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if err := h.publisher.Publish(event); err != nil {
		h.opts.Logger.Warn("failed to publish event", logger.EntryID(entry.ID), logger.Err(err))
	}

	h.opts.Logger.Info("progress entry corrected",
		logger.NinjaID(cmd.NinjaID),
		logger.EntryID(entry.ID),
		logger.String("previous", previous.String()),
		logger.String("current", entry.To.String()),
	)

	return result, nil
}
