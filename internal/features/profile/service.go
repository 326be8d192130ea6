package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/pkg/apperrors"
	"github.com/aulavirtual/lms-server-go/pkg/metrics"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// Service coordinates identity accounts with profile rows.
type Service struct {
	db       *gorm.DB
	provider identity.Provider
	logger   *slog.Logger
}

// NewService constructs a profile service.
func NewService(db *gorm.DB, provider identity.Provider, logger *slog.Logger) *Service {
	return &Service{db: db, provider: provider, logger: logger}
}

// CreateUserInput is the payload accepted by the privileged create endpoint.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// CreateUser creates the identity account and then the profile row. When the
// profile insert fails the identity account is deleted again.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (Profile, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !ValidEmail(email) {
		return Profile{}, ErrInvalidEmail
	}
	if len(input.Password) < identity.MinPasswordLength {
		return Profile{}, ErrInvalidPassword
	}
	if strings.TrimSpace(input.FullName) == "" {
		return Profile{}, ErrFullNameRequired
	}
	role, err := types.ParseUserRole(input.Role)
	if err != nil {
		return Profile{}, ErrInvalidRole
	}

	subject, err := s.provider.CreateAccount(ctx, email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAccountExists):
			return Profile{}, ErrEmailTaken
		case errors.Is(err, identity.ErrWeakPassword):
			return Profile{}, ErrInvalidPassword
		}
		return Profile{}, apperrors.Upstream("identity provider could not create the account", err)
	}

	p, err := Create(s.db.WithContext(ctx), CreateInput{
		ID:       subject.ID,
		Email:    email,
		FullName: input.FullName,
		Role:     role,
	})
	if err != nil {
		s.rollbackAccount(ctx, subject.ID, err)
		if errors.Is(err, ErrEmailTaken) {
			return Profile{}, ErrEmailTaken
		}
		return Profile{}, errors.Join(ErrProfileCreate, err)
	}

	s.logger.InfoContext(ctx, "user created", "userId", p.ID, "role", p.Role)
	return p, nil
}

func (s *Service) rollbackAccount(ctx context.Context, id uuid.UUID, cause error) {
	delErr := s.provider.DeleteAccount(context.WithoutCancel(ctx), id)
	metrics.RecordCompensation("identity_account", delErr)
	if delErr != nil {
		s.logger.ErrorContext(ctx, "failed to remove identity account after profile insert failed",
			"userId", id, "cause", cause, "error", delErr)
		return
	}
	s.logger.WarnContext(ctx, "identity account removed after profile insert failed", "userId", id, "cause", cause)
}

// DeleteUser removes the identity account of userID. The profile row is left
// for the caller to remove through the directory endpoints.
func (s *Service) DeleteUser(ctx context.Context, requesterID, userID uuid.UUID) error {
	if requesterID == userID {
		return ErrCannotDeleteSelf
	}

	if err := s.provider.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return apperrors.Upstream("identity provider could not delete the account", err)
	}

	s.logger.InfoContext(ctx, "identity account deleted", "userId", userID)
	return nil
}
