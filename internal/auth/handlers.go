package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc: authSvc,
		logger:  logger.With().Str("component", "auth_http").Logger(),
	}
}

// CreateGuest handles POST /v1/guests
func (h *HTTPHandlers) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, token, err := h.authSvc.CreateGuest(r.Context(), req)
	if errors.Is(err, ErrInvalidDisplayName) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "display_name")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create guest")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeGuestCreation, "Could not create guest")
		return
	}

	httperrors.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":      user.ID.String(),
		"display_name": user.DisplayName,
		"access_token": token.AccessToken,
		"expires_at":   token.ExpiresAt,
	})
}
