package authoring

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/httpx"
)

// HTTPHandlers exposes host authoring endpoints.
type HTTPHandlers struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for authoring endpoints.
func NewHTTPHandlers(svc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		svc:    svc,
		logger: logger.With().Str("component", "authoring_http").Logger(),
	}
}

// Create handles POST /v1/quizzes
func (h *HTTPHandlers) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	var in QuizInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	qz, err := h.svc.CreateQuiz(r.Context(), claims.UserID.String(), in)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, qz)
}

// Get handles GET /v1/quizzes/{id}
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	qz, err := h.svc.Get(r.Context(), claims.UserID.String(), quizID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, qz)
}

// AddQuestions handles POST /v1/quizzes/{id}/questions
func (h *HTTPHandlers) AddQuestions(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Questions []QuestionInput `json:"questions"`
	}
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	questions, err := h.svc.AddQuestions(r.Context(), claims.UserID.String(), quizID, req.Questions)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"quiz_id":   quizID,
		"questions": questions,
	})
}

// Lock handles POST /v1/quizzes/{id}/lock
func (h *HTTPHandlers) Lock(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	qz, err := h.svc.Lock(r.Context(), claims.UserID.String(), quizID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, qz)
}

// Rename handles PATCH /v1/quizzes/{id}
func (h *HTTPHandlers) Rename(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	qz, err := h.svc.Rename(r.Context(), claims.UserID.String(), quizID, req.Title)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, qz)
}

// Delete handles DELETE /v1/quizzes/{id}
func (h *HTTPHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return
	}
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), claims.UserID.String(), quizID); err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
