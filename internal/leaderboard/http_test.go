package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/quiz"
)

func newLeaderboardMux(h *HTTPHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/quizzes/{id}/leaderboard", h.HandleGet)
	mux.HandleFunc("GET /v1/quizzes/{id}/leaderboard/snapshot", h.HandleSnapshot)
	mux.HandleFunc("GET /v1/quizzes/{id}/questions/{qid}/leaderboard", h.HandleGetQuestion)
	mux.HandleFunc("GET /v1/quizzes/{id}/analytics", h.HandleAnalytics)
	mux.HandleFunc("GET /v1/quizzes/{id}/results", h.HandleResults)
	return mux
}

func asUser(req *http.Request, id uuid.UUID, role string) *http.Request {
	claims := &jwt.Claims{UserID: id, Role: role}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestHTTP_LeaderboardEndpoints(t *testing.T) {
	hostID := uuid.New()
	f := newFixture(t, func(q *quiz.Quiz) { q.HostID = hostID.String() })
	f.answer(t, 0, "p1", true, 5, 1.5)
	f.answer(t, 0, "p2", true, 9, 1.2)
	mux := newLeaderboardMux(NewHTTPHandler(f.svc, f.store, zerolog.Nop()))
	base := fmt.Sprintf("/v1/quizzes/%d", f.quiz.ID)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/leaderboard?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		Top []Entry `json:"top"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Top, 1)
	assert.Equal(t, "p1", board.Top[0].ParticipantID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("%s/questions/%d/leaderboard", base, f.questions[0].ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var question struct {
		Show bool            `json:"show_leaderboard"`
		Top  []QuestionEntry `json:"top"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &question))
	assert.True(t, question.Show)
	assert.Len(t, question.Top, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/questions/9999/leaderboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, base+"/analytics", nil), hostID, jwt.RoleHost))
	require.Equal(t, http.StatusOK, rec.Code)
	var report Analytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Participants)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, base+"/analytics", nil), uuid.New(), jwt.RoleHost))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/analytics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_HiddenLeaderboard(t *testing.T) {
	f := newFixture(t, func(q *quiz.Quiz) { q.ShowLeaderboard = false })
	mux := newLeaderboardMux(NewHTTPHandler(f.svc, f.store, zerolog.Nop()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/quizzes/%d/leaderboard", f.quiz.ID), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaderboard_hidden")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/quizzes/abc/leaderboard", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/quizzes/999/leaderboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_SnapshotAndResults(t *testing.T) {
	hostID := uuid.New()
	f := newFixture(t, func(q *quiz.Quiz) { q.HostID = hostID.String() })
	mux := newLeaderboardMux(NewHTTPHandler(f.svc, f.store, zerolog.Nop()))
	base := fmt.Sprintf("/v1/quizzes/%d", f.quiz.ID)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, base+"/leaderboard/snapshot", nil), hostID, jwt.RoleHost))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.answer(t, 0, "p1", true, 5, 1.5)
	worker := NewSnapshotWorker(f.svc, f.store, time.Minute, zerolog.Nop())
	_, err := worker.SnapshotQuiz(ctx, f.quiz)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, base+"/leaderboard/snapshot", nil), hostID, jwt.RoleHost))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Top []Entry `json:"top"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Top, 1)
	assert.Equal(t, 4.5, snap.Top[0].Points)

	_, _, err = f.store.CreateResult(ctx, quiz.Result{QuizID: f.quiz.ID, ParticipantID: "p1", Score: 1, Total: 2, TotalPoints: 4.5})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, base+"/results", nil), hostID, jwt.RoleHost))
	require.Equal(t, http.StatusOK, rec.Code)
	var results struct {
		Results []quiz.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results.Results, 1)
	assert.Equal(t, 1, results.Results[0].Score)
}
