package session

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/httpx"
)

// HTTPHandlers exposes lifecycle control and status endpoints.
type HTTPHandlers struct {
	ctrl   *Controller
	logger zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints.
func NewHTTPHandlers(ctrl *Controller, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		ctrl:   ctrl,
		logger: logger.With().Str("component", "session_http").Logger(),
	}
}

type controlFunc func(ctx context.Context, hostID string, quizID int64) (Outcome, error)

// Control returns the handler for POST /v1/quizzes/{id}/{action}.
func (h *HTTPHandlers) Control(action string) http.HandlerFunc {
	var fn controlFunc
	switch action {
	case "publish":
		fn = h.ctrl.Publish
	case "start":
		fn = h.ctrl.Start
	case "pause":
		fn = h.ctrl.Pause
	case "resume":
		fn = h.ctrl.Resume
	case "stop":
		fn = h.ctrl.Stop
	case "reset":
		fn = h.ctrl.Reset
	case "next":
		fn = func(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
			return h.ctrl.Advance(ctx, hostID, quizID, 1)
		}
	case "previous":
		fn = func(ctx context.Context, hostID string, quizID int64) (Outcome, error) {
			return h.ctrl.Advance(ctx, hostID, quizID, -1)
		}
	default:
		panic("session: unknown control action " + action)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.Claims(w, r)
		if !ok {
			return
		}
		quizID, ok := httpx.PathID(w, r, "id")
		if !ok {
			return
		}

		out, err := fn(r.Context(), claims.UserID.String(), quizID)
		if err != nil {
			httpx.RespondError(w, err, h.logger)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, controlResponse(action, out))
	}
}

// Status handles GET /v1/quizzes/{id}/status
func (h *HTTPHandlers) Status(w http.ResponseWriter, r *http.Request) {
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	status, err := h.ctrl.Status(r.Context(), quizID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, status)
}

func controlResponse(action string, out Outcome) map[string]interface{} {
	resp := map[string]interface{}{
		"action":   action,
		"changed":  out.Changed,
		"finished": out.Finished,
		"state":    out.Quiz.State(),
		"quiz_id":  out.Quiz.ID,
	}
	if out.Quiz.JoinCode != "" {
		resp["join_code"] = out.Quiz.JoinCode
	}
	if out.State != nil {
		resp["current_question_index"] = out.State.QuestionIndex
	}
	return resp
}
