// Package identity abstracts the service that owns credentials and sessions.
// The rest of the application only sees subjects (stable user ids) and tokens.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subject is the identity of an authenticated caller.
type Subject struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is the token pair returned by sign-in and refresh.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Subject      Subject   `json:"-"`
}

// Provider is implemented by the local account store and the hosted auth service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	VerifyAccessToken(ctx context.Context, accessToken string) (Subject, error)
	CreateAccount(ctx context.Context, email, password string) (Subject, error)
	DeleteAccount(ctx context.Context, subjectID uuid.UUID) error
}

// MinPasswordLength is enforced by every provider.
const MinPasswordLength = 8
