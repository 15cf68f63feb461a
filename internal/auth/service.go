package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
)

// ErrInvalidDisplayName is returned when a display name is empty or too long.
var ErrInvalidDisplayName = errors.New("display name must be 1-40 characters")

// Service issues and validates participant and host tokens.
// Account registration and passwords live in an external identity service.
type Service struct {
	tokenMgr *jwt.Manager
	guestTTL time.Duration
	hostTTL  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
}

// NewService creates an authentication service.
func NewService(opts ServiceOptions, logger zerolog.Logger) *Service {
	cfg := opts.TokenConfig
	if cfg.GuestTTL == 0 {
		cfg.GuestTTL = 4 * time.Hour
	}
	if cfg.HostTTL == 0 {
		cfg.HostTTL = 12 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		tokenMgr: jwt.NewManager(cfg),
		guestTTL: cfg.GuestTTL,
		hostTTL:  cfg.HostTTL,
		now:      cfg.Clock,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// CreateGuest mints a participant identity with a fresh id.
func (s *Service) CreateGuest(_ context.Context, req GuestRequest) (*User, *Token, error) {
	name, err := normalizeDisplayName(req.DisplayName)
	if err != nil {
		return nil, nil, err
	}

	user := &User{ID: uuid.New(), DisplayName: name, Role: jwt.RoleGuest}
	token, err := s.issue(*user, s.guestTTL)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("guest created")
	return user, token, nil
}

// IssueHostToken signs a host token. Used by operator tooling.
func (s *Service) IssueHostToken(req HostRequest) (*User, *Token, error) {
	name, err := normalizeDisplayName(req.DisplayName)
	if err != nil {
		return nil, nil, err
	}
	id := req.HostID
	if id == uuid.Nil {
		id = uuid.New()
	}

	user := &User{ID: id, DisplayName: name, Role: jwt.RoleHost}
	token, err := s.issue(*user, s.hostTTL)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// ValidateToken parses a bearer token.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.Validate(tokenString)
}

func (s *Service) issue(user User, ttl time.Duration) (*Token, error) {
	signed, err := s.tokenMgr.Generate(jwt.Identity{ID: user.ID, DisplayName: user.DisplayName, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, ExpiresAt: s.now().Add(ttl).UTC()}, nil
}

func normalizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLen {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}
