package http

import (
	"errors"
	"net/http"

	"github.com/dojo-hub/ninja-dashboard/internal/application/command"
	"github.com/dojo-hub/ninja-dashboard/internal/application/query"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

// AtMaximumMessage is returned by Lesson Up on a ninja at the terminal state.
const AtMaximumMessage = "already at maximum progression"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Ninja Dashboard API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":     "/health",
			"curriculum": "/api/v1/curriculum",
			"bounds":     "/api/v1/progression/bounds",
			"ninjas":     "/api/v1/ninjas",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReady handles the readiness endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM & PROGRESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCurriculum handles GET /api/v1/curriculum and GET /api/v1/curriculum/{path}
func (s *Server) handleGetCurriculum(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCurriculum == nil {
		notConfigured(w, "curriculum")
		return
	}

	result, err := s.deps.GetCurriculum.Handle(r.Context(), query.GetCurriculumQuery{Path: r.PathValue("path")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// handleGetBounds handles GET /api/v1/progression/bounds?path=&belt=&level=&lesson=
// Level and lesson are raw form values; anything unparseable clamps to 1.
func (s *Server) handleGetBounds(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetBounds == nil {
		notConfigured(w, "bounds")
		return
	}

	q := r.URL.Query()
	result, err := s.deps.GetBounds.Handle(r.Context(), query.GetBoundsQuery{
		Path:   q.Get("path"),
		Belt:   q.Get("belt"),
		Level:  progression.ParseNumber(q.Get("level")),
		Lesson: progression.ParseNumber(q.Get("lesson")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// handleNormalize handles POST /api/v1/progression/normalize
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetBounds == nil {
		notConfigured(w, "normalize")
		return
	}

	var req StateRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.GetBounds.Handle(r.Context(), query.GetBoundsQuery{
		Path:   req.Path,
		Belt:   req.Belt,
		Level:  req.Level.Float64(),
		Lesson: req.Lesson.Float64(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result.Normalized, nil)
}

// handlePreviewAdvance handles POST /api/v1/progression/advance
func (s *Server) handlePreviewAdvance(w http.ResponseWriter, r *http.Request) {
	if s.deps.PreviewAdvance == nil {
		notConfigured(w, "advance")
		return
	}

	var req StateRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.PreviewAdvance.Handle(r.Context(), query.PreviewAdvanceQuery{
		Path:   req.Path,
		Belt:   req.Belt,
		Level:  req.Level.Float64(),
		Lesson: req.Lesson.Float64(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// NINJA READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListNinjas handles GET /api/v1/ninjas?offset=&limit=
func (s *Server) handleListNinjas(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetNinja == nil {
		notConfigured(w, "ninjas")
		return
	}

	result, err := s.deps.GetNinja.ListNinjas(r.Context(), query.ListNinjasQuery{
		Offset: getQueryParamInt(r, "offset", 0),
		Limit:  getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Ninjas, &ResponseMeta{
		Offset: result.Offset,
		Limit:  result.Limit,
		Count:  len(result.Ninjas),
	})
}

// handleGetNinja handles GET /api/v1/ninjas/{id}
func (s *Server) handleGetNinja(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetNinja == nil {
		notConfigured(w, "ninjas")
		return
	}

	result, err := s.deps.GetNinja.Handle(r.Context(), query.GetNinjaQuery{NinjaID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// handleGetProgressHistory handles GET /api/v1/ninjas/{id}/progress?offset=&limit=
func (s *Server) handleGetProgressHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressHistory == nil {
		notConfigured(w, "progress history")
		return
	}

	result, err := s.deps.GetProgressHistory.Handle(r.Context(), query.GetProgressHistoryQuery{
		NinjaID: r.PathValue("id"),
		Offset:  getQueryParamInt(r, "offset", 0),
		Limit:   getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		Offset: result.Offset,
		Limit:  result.Limit,
		Count:  len(result.Entries),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateNinja handles POST /api/v1/ninjas
func (s *Server) handleCreateNinja(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateNinja == nil || s.deps.GetNinja == nil {
		notConfigured(w, "create ninja")
		return
	}

	var req CreateNinjaRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.CreateNinja.Handle(r.Context(), command.CreateNinjaCommand{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Username:      req.Username,
		Path:          req.Path,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/ninjas/"+result.Ninja.ID)
	writeJSONWithMeta(w, r, http.StatusCreated, s.deps.GetNinja.ToDTO(result.Ninja), nil)
}

// ProgressionResponse is returned by the admin progression edit.
type ProgressionResponse struct {
	Ninja    *query.NinjaDTO `json:"ninja"`
	From     query.StateDTO  `json:"from"`
	To       query.StateDTO  `json:"to"`
	Changed  bool            `json:"changed"`
	Fallback bool            `json:"fallback"`
	EntryID  string          `json:"entry_id,omitempty"`
}

// handleUpdateProgression handles PUT /api/v1/ninjas/{id}/progression
func (s *Server) handleUpdateProgression(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateProgression == nil || s.deps.GetNinja == nil {
		notConfigured(w, "update progression")
		return
	}

	var req UpdateProgressionRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.UpdateProgression.Handle(r.Context(), command.UpdateProgressionCommand{
		NinjaID:       r.PathValue("id"),
		Path:          req.Path,
		Belt:          req.Belt,
		Level:         req.Level.Float64(),
		Lesson:        req.Lesson.Float64(),
		Note:          req.Note,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, ProgressionResponse{
		Ninja:    s.deps.GetNinja.ToDTO(result.Ninja),
		From:     query.NewStateDTO(result.Transition.From),
		To:       query.NewStateDTO(result.Transition.To),
		Changed:  result.Changed,
		Fallback: result.Fallback,
		EntryID:  result.EntryID,
	}, nil)
}

// LessonUpResponse is returned by Lesson Up.
type LessonUpResponse struct {
	Ninja     *query.NinjaDTO `json:"ninja"`
	From      query.StateDTO  `json:"from"`
	To        query.StateDTO  `json:"to"`
	Rollover  string          `json:"rollover"`
	AtMaximum bool            `json:"at_maximum"`
	BuxDelta  int             `json:"bux_delta"`
	EntryID   string          `json:"entry_id,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// handleLessonUp handles POST /api/v1/ninjas/{id}/lesson-up
// A ninja at the terminal state is not an error: 200 with at_maximum set.
func (s *Server) handleLessonUp(w http.ResponseWriter, r *http.Request) {
	if s.deps.LessonUp == nil || s.deps.GetNinja == nil {
		notConfigured(w, "lesson up")
		return
	}

	result, err := s.deps.LessonUp.Handle(r.Context(), command.LessonUpCommand{
		NinjaID:       r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := LessonUpResponse{
		Ninja:     s.deps.GetNinja.ToDTO(result.Ninja),
		From:      query.NewStateDTO(result.Transition.From),
		To:        query.NewStateDTO(result.Transition.To),
		Rollover:  string(result.Transition.Rollover),
		AtMaximum: result.AtMaximum,
		BuxDelta:  result.BuxDelta,
		EntryID:   result.EntryID,
	}
	if result.AtMaximum {
		resp.Message = AtMaximumMessage
	}
	writeJSONWithMeta(w, r, http.StatusOK, resp, nil)
}

// CorrectionResponse is returned by a progress history correction.
type CorrectionResponse struct {
	Entry    query.ProgressEntryDTO `json:"entry"`
	Previous query.StateDTO         `json:"previous"`
	Changed  bool                   `json:"changed"`
}

// handleCorrectProgress handles PUT /api/v1/ninjas/{id}/progress/{entryID}
func (s *Server) handleCorrectProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.CorrectProgress == nil {
		notConfigured(w, "correct progress")
		return
	}

	var req CorrectProgressRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.CorrectProgress.Handle(r.Context(), command.CorrectProgressCommand{
		NinjaID:       r.PathValue("id"),
		EntryID:       r.PathValue("entryID"),
		Belt:          req.Belt,
		Level:         req.Level.Float64(),
		Lesson:        req.Lesson.Float64(),
		Note:          req.Note,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, CorrectionResponse{
		Entry:    query.NewProgressEntryDTO(result.Entry),
		Previous: query.NewStateDTO(result.Previous),
		Changed:  result.Changed,
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps domain error kinds to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields FieldErrors
	var maxBytes *http.MaxBytesError
	var decodeErr *decodeError

	switch {
	case errors.As(err, &fields):
		writeAPIError(w, http.StatusBadRequest, &APIError{
			Code:    "validation_error",
			Message: "Request validation failed",
			Fields:  fields,
		})
	case errors.As(err, &maxBytes):
		writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
	case errors.As(err, &decodeErr):
		writeJSONError(w, http.StatusBadRequest, "bad_request", decodeErr.Error())
	case errors.Is(err, shared.ErrConcurrentModification):
		writeJSONError(w, http.StatusConflict, "conflict", "Ninja was modified concurrently, retry the request")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", domainMessage(err))
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", domainMessage(err))
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", domainMessage(err))
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func domainMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func notConfigured(w http.ResponseWriter, what string) {
	writeJSONError(w, http.StatusNotImplemented, "not_implemented", what+" handler not configured")
}
