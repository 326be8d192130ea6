package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/identity"
)

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	User         profile.Profile `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

// Service signs users in through the identity provider and resolves their profile.
type Service struct {
	db       *gorm.DB
	provider identity.Provider
	logger   *slog.Logger
}

// NewService constructs an auth service.
func NewService(db *gorm.DB, provider identity.Provider, logger *slog.Logger) *Service {
	return &Service{db: db, provider: provider, logger: logger}
}

// Login authenticates the credentials and requires an active profile.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return s.withProfile(ctx, session)
}

// Refresh exchanges a refresh token for a new session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrMissingFields
	}

	session, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrExpiredToken) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return s.withProfile(ctx, session)
}

// Logout ends the session behind accessToken.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrExpiredToken) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// withProfile loads the profile of the session subject. Sessions without an
// active profile are signed out again.
func (s *Service) withProfile(ctx context.Context, session identity.Session) (*AuthResponse, error) {
	p, err := profile.Get(s.db.WithContext(ctx), session.Subject.ID)
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		s.discard(ctx, session)
		return nil, ErrProfileMissing
	case err != nil:
		return nil, err
	case !p.Active:
		s.discard(ctx, session)
		return nil, ErrInactiveAccount
	}

	return &AuthResponse{
		User:         p,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func (s *Service) discard(ctx context.Context, session identity.Session) {
	if err := s.provider.SignOut(context.WithoutCancel(ctx), session.AccessToken); err != nil {
		s.logger.WarnContext(ctx, "failed to sign out rejected session", "userId", session.Subject.ID, "error", err)
	}
}
