// Package httpx holds request helpers shared by the REST handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

var quizErrors = []struct {
	err    error
	status int
	code   string
}{
	{quiz.ErrQuizNotFound, http.StatusNotFound, httperrors.ErrCodeQuizNotFound},
	{quiz.ErrQuestionNotFound, http.StatusNotFound, httperrors.ErrCodeQuestionNotFound},
	{quiz.ErrSnapshotNotFound, http.StatusNotFound, httperrors.ErrCodeNotFound},
	{quiz.ErrForbidden, http.StatusForbidden, httperrors.ErrCodeForbidden},
	{quiz.ErrQuizLocked, http.StatusConflict, httperrors.ErrCodeQuizLocked},
	{quiz.ErrNotLocked, http.StatusConflict, httperrors.ErrCodeNotLocked},
	{quiz.ErrNoQuestions, http.StatusConflict, httperrors.ErrCodeNoQuestions},
	{quiz.ErrNotPublished, http.StatusConflict, httperrors.ErrCodeNotPublished},
	{quiz.ErrAlreadyActive, http.StatusConflict, httperrors.ErrCodeAlreadyActive},
	{quiz.ErrNotActive, http.StatusConflict, httperrors.ErrCodeNotActive},
	{quiz.ErrQuizPaused, http.StatusConflict, httperrors.ErrCodeQuizPaused},
	{quiz.ErrJoinCodeTaken, http.StatusConflict, httperrors.ErrCodeJoinCodeTaken},
	{quiz.ErrStateConflict, http.StatusConflict, httperrors.ErrCodeStateConflict},
	{quiz.ErrBusy, http.StatusServiceUnavailable, httperrors.ErrCodeLockTimeout},
}

// ErrorCode maps a domain error to its status and error code.
// Unknown errors map to 500.
func ErrorCode(err error) (int, string) {
	var verr *quiz.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, httperrors.ErrCodeValidationFailed
	}
	for _, m := range quizErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, httperrors.ErrCodeInternalError
}

// RespondError writes the mapped error. Internal errors are logged and their text hidden.
func RespondError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var verr *quiz.ValidationError
	if errors.As(err, &verr) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, verr.Message, verr.Field)
		return
	}

	status, code := ErrorCode(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		httperrors.RespondInternalError(w, "Internal server error")
		return
	}
	httperrors.RespondError(w, status, code, err.Error())
}

// RespondJSON writes payload with status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	httperrors.RespondJSON(w, status, payload)
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	return true
}

// PathID parses a positive int64 path value.
func PathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "invalid "+name, name)
		return 0, false
	}
	return id, true
}

// Claims returns the caller's claims or writes 401.
func Claims(w http.ResponseWriter, r *http.Request) (*jwt.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return nil, false
	}
	return claims, true
}
