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
// CREATE NINJA COMMAND
// Registers a new ninja at the first lesson of the first belt on the chosen path.
// ══════════════════════════════════════════════════════════════════════════════

// PathPolicy decides which paths new ninjas may start on.
type PathPolicy interface {
	PathAllowed(p progression.Path) bool
}

// allPaths allows every known path.
type allPaths struct{}

func (allPaths) PathAllowed(p progression.Path) bool { return p.IsKnown() }

// CreateNinjaCommand contains the data to create a ninja.
type CreateNinjaCommand struct {
	FirstName string
	LastName  string
	Username  string

	// Path is the curriculum track; empty means the default path.
	Path string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreateNinjaCommand) Validate() error {
	if c.FirstName == "" || c.LastName == "" {
		return errors.New("create_ninja: first_name and last_name are required")
	}
	if c.Username == "" {
		return errors.New("create_ninja: username is required")
	}
	return nil
}

// CreateNinjaResult contains the created ninja.
type CreateNinjaResult struct {
	Ninja *ninja.Ninja
}

// CreateNinjaHandler handles the CreateNinjaCommand.
type CreateNinjaHandler struct {
	repo      ninja.Repository
	publisher shared.EventPublisher
	paths     PathPolicy
	opts      Options
}

// NewCreateNinjaHandler creates a new CreateNinjaHandler.
// A nil policy allows every known path.
func NewCreateNinjaHandler(repo ninja.Repository, publisher shared.EventPublisher, paths PathPolicy, opts Options) *CreateNinjaHandler {
	if paths == nil {
		paths = allPaths{}
	}
	return &CreateNinjaHandler{
		repo:      repo,
		publisher: publisher,
		paths:     paths,
		opts:      opts.withDefaults(),
	}
}

// Handle executes the create ninja command.
func (h *CreateNinjaHandler) Handle(ctx context.Context, cmd CreateNinjaCommand) (*CreateNinjaResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("ninja", "Create", shared.ErrValidation, "invalid command", err)
	}

	path, err := progression.ParsePath(cmd.Path)
	if err != nil {
		return nil, shared.WrapError("ninja", "Create", shared.ErrInvalidInput, "unknown path", err)
	}
	if !h.paths.PathAllowed(path) {
		return nil, shared.NewDomainError("ninja", "Create", shared.ErrInvalidInput,
			fmt.Sprintf("path %q is not open for new ninjas", path))
	}

	n, err := ninja.NewNinja(ninja.NewNinjaParams{
		ID:        h.opts.NewID(),
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Username:  cmd.Username,
		Path:      path,
	})
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create_ninja: failed to save ninja: %w", err)
	}

	event := shared.NewNinjaCreatedEvent(n.ID, n.Username, path.String())
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if err := h.publisher.Publish(event); err != nil {
		h.opts.Logger.Warn("failed to publish event", logger.NinjaID(n.ID), logger.Err(err))
	}

	h.opts.Logger.Info("ninja created",
		logger.NinjaID(n.ID),
		logger.String("username", n.Username),
		logger.Path(path.String()),
	)

	return &CreateNinjaResult{Ninja: n}, nil
}
