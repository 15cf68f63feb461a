package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in tokens.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// Claims for JWT tokens.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	jwt.RegisteredClaims
}

// IsHost reports whether the token may control quizzes.
func (c *Claims) IsHost() bool {
	return c.Role == RoleHost
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenConfig holds JWT signing configuration.
type TokenConfig struct {
	Secret   []byte
	HostTTL  time.Duration // default: 12 hours
	GuestTTL time.Duration // default: 4 hours
	Issuer   string
	Clock    func() time.Time
}

// Manager handles JWT token generation and validation.
type Manager struct {
	secret   []byte
	hostTTL  time.Duration
	guestTTL time.Duration
	issuer   string
	now      func() time.Time
}

// NewManager creates a JWT token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.HostTTL == 0 {
		cfg.HostTTL = 12 * time.Hour
	}
	if cfg.GuestTTL == 0 {
		cfg.GuestTTL = 4 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "livequiz"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Manager{
		secret:   cfg.Secret,
		hostTTL:  cfg.HostTTL,
		guestTTL: cfg.GuestTTL,
		issuer:   cfg.Issuer,
		now:      cfg.Clock,
	}
}

// Identity represents the subject of a token.
type Identity struct {
	ID          uuid.UUID
	DisplayName string
	Role        string
}

// Generate signs a token for the identity. Host tokens live longer than guest tokens.
func (m *Manager) Generate(id Identity) (string, error) {
	if id.ID == uuid.Nil {
		id.ID = uuid.New()
	}
	ttl := m.guestTTL
	if id.Role == RoleHost {
		ttl = m.hostTTL
	}

	now := m.now()
	claims := Claims{
		UserID:      id.ID,
		DisplayName: id.DisplayName,
		Role:        id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates a token.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
