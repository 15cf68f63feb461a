package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/httpx"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

// QuizReader is the read side of the store used by the HTTP handler.
type QuizReader interface {
	GetQuiz(ctx context.Context, id int64) (quiz.Quiz, error)
	ListResults(ctx context.Context, quizID int64) ([]quiz.Result, error)
	LatestSnapshot(ctx context.Context, quizID int64) (quiz.Snapshot, error)
}

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	store  QuizReader
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, store QuizReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		store:  store,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the quiz leaderboard.
// Route: GET /v1/quizzes/{id}/leaderboard?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	qz, ok := h.loadQuiz(w, r)
	if !ok {
		return
	}
	if !qz.ShowLeaderboard {
		httperrors.RespondForbidden(w, httperrors.ErrCodeLeaderboardHidden, "Leaderboard is disabled for this quiz")
		return
	}

	top, err := h.svc.Leaderboard(r.Context(), qz)
	if err != nil {
		h.logger.Warn().Err(err).Int64("quiz_id", qz.ID).Msg("leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard")
		return
	}
	if limit := parseLimit(r, 100); len(top) > limit {
		top = top[:limit]
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id":     qz.ID,
		"top":         top,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleGetQuestion responds with the fastest correct respondents on a question.
// Route: GET /v1/quizzes/{id}/questions/{qid}/leaderboard
func (h *HTTPHandler) HandleGetQuestion(w http.ResponseWriter, r *http.Request) {
	qz, ok := h.loadQuiz(w, r)
	if !ok {
		return
	}
	questionID, ok := httpx.PathID(w, r, "qid")
	if !ok {
		return
	}

	questions, err := h.svc.questions.ListQuestions(r.Context(), qz.ID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	var question *quiz.Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		httpx.RespondError(w, quiz.ErrQuestionNotFound, h.logger)
		return
	}

	board, err := h.svc.QuestionLeaderboard(r.Context(), qz, *question)
	if err != nil {
		h.logger.Warn().Err(err).Int64("question_id", questionID).Msg("question leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id":          qz.ID,
		"question_id":      questionID,
		"show_leaderboard": qz.LeaderboardVisible(*question),
		"top":              board,
	})
}

// HandleAnalytics responds with the host report.
// Route: GET /v1/quizzes/{id}/analytics
func (h *HTTPHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	qz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Analytics(r.Context(), qz)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, report)
}

// HandleResults lists the stored session results of a quiz.
// Route: GET /v1/quizzes/{id}/results
func (h *HTTPHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	qz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}
	results, err := h.store.ListResults(r.Context(), qz.ID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}
	if results == nil {
		results = []quiz.Result{}
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id": qz.ID,
		"results": results,
	})
}

// HandleSnapshot responds with the latest persisted leaderboard snapshot.
// Route: GET /v1/quizzes/{id}/leaderboard/snapshot
func (h *HTTPHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	qz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}
	snap, err := h.store.LatestSnapshot(r.Context(), qz.ID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return
	}

	var entries []Entry
	if err := json.Unmarshal(snap.Entries, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		httperrors.RespondInternalError(w, "Snapshot is unreadable")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id":      qz.ID,
		"generated_at": snap.GeneratedAt,
		"source_hash":  snap.SourceHash,
		"top":          entries,
	})
}

func (h *HTTPHandler) loadQuiz(w http.ResponseWriter, r *http.Request) (quiz.Quiz, bool) {
	quizID, ok := httpx.PathID(w, r, "id")
	if !ok {
		return quiz.Quiz{}, false
	}
	qz, err := h.store.GetQuiz(r.Context(), quizID)
	if err != nil {
		httpx.RespondError(w, err, h.logger)
		return quiz.Quiz{}, false
	}
	return qz, true
}

func (h *HTTPHandler) loadOwnedQuiz(w http.ResponseWriter, r *http.Request) (quiz.Quiz, bool) {
	claims, ok := httpx.Claims(w, r)
	if !ok {
		return quiz.Quiz{}, false
	}
	qz, ok := h.loadQuiz(w, r)
	if !ok {
		return quiz.Quiz{}, false
	}
	if qz.HostID != claims.UserID.String() {
		httpx.RespondError(w, quiz.ErrForbidden, h.logger)
		return quiz.Quiz{}, false
	}
	return qz, true
}

func parseLimit(r *http.Request, max int) int {
	limit := max
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= max {
			limit = parsed
		}
	}
	return limit
}
