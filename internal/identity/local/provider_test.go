package local

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
)

func newProvider(t *testing.T) *Provider {
	db := testutil.NewDB(t, &Account{})
	return New(db, Options{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		BcryptCost:    bcrypt.MinCost,
	})
}

func TestCreateAndSignIn(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	subject, err := p.CreateAccount(ctx, "  Ana@Example.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", subject.Email)

	_, err = p.CreateAccount(ctx, "ana@example.com", "another-pass")
	assert.ErrorIs(t, err, identity.ErrAccountExists)

	_, err = p.SignIn(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	session, err := p.SignIn(ctx, "ANA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, subject.ID, session.Subject.ID)

	verified, err := p.VerifyAccessToken(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, subject, verified)

	_, err = p.VerifyAccessToken(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestWeakPassword(t *testing.T) {
	p := newProvider(t)
	_, err := p.CreateAccount(context.Background(), "ana@example.com", "short")
	assert.ErrorIs(t, err, identity.ErrWeakPassword)
}

func TestRefreshRotatesAndSignOutRevokes(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	_, err := p.CreateAccount(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)
	first, err := p.SignIn(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	second, err := p.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = p.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)

	require.NoError(t, p.SignOut(ctx, second.AccessToken))
	_, err = p.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	_, err := p.CreateAccount(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	session, err := p.SignIn(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = p.VerifyAccessToken(ctx, session.AccessToken)
	assert.ErrorIs(t, err, identity.ErrExpiredToken)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	subject, err := p.CreateAccount(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, p.DeleteAccount(ctx, subject.ID))
	assert.ErrorIs(t, p.DeleteAccount(ctx, subject.ID), identity.ErrAccountNotFound)
	assert.ErrorIs(t, p.DeleteAccount(ctx, uuid.New()), identity.ErrAccountNotFound)

	_, err = p.SignIn(ctx, "ana@example.com", "correct-horse")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestSetPassword(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	subject, err := p.CreateAccount(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, p.SetPassword(ctx, subject.ID, "battery-staple"))

	_, err = p.SignIn(ctx, "ana@example.com", "battery-staple")
	assert.NoError(t, err)
}
