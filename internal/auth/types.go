package auth

import (
	"time"

	"github.com/google/uuid"
)

const maxDisplayNameLen = 40

// User represents the subject of an issued token.
type User struct {
	ID          uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}

// Token is a signed access token with its lifetime.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// GuestRequest creates an ephemeral participant identity.
type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

// HostRequest issues a host token for an identity managed elsewhere.
type HostRequest struct {
	HostID      uuid.UUID
	DisplayName string
}
