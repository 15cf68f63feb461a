package play

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
)

func newPlayMux(h *HTTPHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/join/{code}", h.Join)
	mux.HandleFunc("GET /v1/quizzes/{id}/question", h.Question)
	mux.HandleFunc("POST /v1/quizzes/{id}/answers", h.Submit)
	mux.HandleFunc("GET /v1/quizzes/{id}/me", h.Me)
	return mux
}

func asGuest(req *http.Request, id uuid.UUID) *http.Request {
	claims := &jwt.Claims{UserID: id, DisplayName: "Ada", Role: jwt.RoleGuest}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestHTTP_ParticipantFlow(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	mux := newPlayMux(NewHTTPHandlers(f.svc, zerolog.Nop()))
	guest := uuid.New()
	base := fmt.Sprintf("/v1/quizzes/%d", f.quiz.ID)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/join/"+f.quiz.JoinCode, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info JoinInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, f.quiz.ID, info.QuizID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/question?index=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correct_answers")
	assert.NotContains(t, rec.Body.String(), "Nile")

	body, _ := json.Marshal(map[string]interface{}{"question_id": f.questions[0].ID, "answer": "nile", "time_taken": 3})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asGuest(httptest.NewRequest(http.MethodPost, base+"/answers", bytes.NewReader(body)), guest))
	require.Equal(t, http.StatusOK, rec.Code)
	var fb Feedback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))
	assert.True(t, fb.IsCorrect)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asGuest(httptest.NewRequest(http.MethodGet, base+"/me", nil), guest))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Correct)
	assert.Equal(t, 1, stats.Rank)

	answers, err := f.store.ListAnswers(t.Context(), f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "Ada", answers[0].ParticipantName)
}

func TestHTTP_ParticipantErrors(t *testing.T) {
	f := newFixture(t, false)
	mux := newPlayMux(NewHTTPHandlers(f.svc, zerolog.Nop()))
	base := fmt.Sprintf("/v1/quizzes/%d", f.quiz.ID)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/answers", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asGuest(httptest.NewRequest(http.MethodPost, base+"/answers", bytes.NewReader([]byte(`{"bogus":1}`))), uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asGuest(httptest.NewRequest(http.MethodPost, base+"/answers", bytes.NewReader([]byte(`{"qindex":0,"answer":"nile"}`))), uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question_id")

	rec = httptest.NewRecorder()
	body := fmt.Sprintf(`{"question_id":%d,"answer":"nile"}`, f.questions[0].ID)
	mux.ServeHTTP(rec, asGuest(httptest.NewRequest(http.MethodPost, base+"/answers", bytes.NewReader([]byte(body))), uuid.New()))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "quiz_not_active")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/question?index=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/join/NOPE42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
