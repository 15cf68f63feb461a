package play

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/httpx"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

// HTTPHandlers exposes participant endpoints.
type HTTPHandlers struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for participant endpoints.
func NewHTTPHandlers(svc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		svc:    svc,
		logger: logger.With().Str("component", "play_http").Logger(),
	}
}

// Join handles GET /v1/join/{code}
func (h *HTTPHandlers) Join(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.JoinByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, info)
}

// Question handles GET /v1/quizzes/{id}/question?index=N
func (h *HTTPHandlers) Question(w http.ResponseWriter, r *http.Request) {
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	index := 0
	if raw := r.URL.Query().Get("index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "index must be an integer", "index")
			return
		}
		index = parsed
	}

	view, err := h.svc.CurrentQuestion(r.Context(), quizID, index)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, view)
}

type submitRequest struct {
	QuestionID    int64    `json:"question_id"`
	QuestionIndex int      `json:"qindex"` // informational; question_id selects the question
	Answer        string   `json:"answer"`
	Selections    []string `json:"selections"`
	TimeTaken     int      `json:"time_taken"`
}

// Submit handles POST /v1/quizzes/{id}/answers
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req submitRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	feedback, err := h.svc.Submit(r.Context(), Submission{
		QuizID:          quizID,
		QuestionID:      req.QuestionID,
		ParticipantID:   claims.UserID.String(),
		ParticipantName: claims.DisplayName,
		Answer:          req.Answer,
		Selections:      req.Selections,
		TimeTaken:       req.TimeTaken,
	})
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, feedback)
}

// Me handles GET /v1/quizzes/{id}/me
func (h *HTTPHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.svc.MyStats(r.Context(), quizID, claims.UserID.String())
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}
