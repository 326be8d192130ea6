package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	id := uuid.New()
	token, expiresAt, err := Generate(id, "ana@example.com", TypeAccess, "secret", time.Now(), time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Second)

	claims, err := VerifyToken(token, "secret", TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestVerifyRejectsWrongTypeAndSecret(t *testing.T) {
	token, _, err := Generate(uuid.New(), "", TypeRefresh, "secret", time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken(token, "secret", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyToken(token, "other", TypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	token, _, err := Generate(uuid.New(), "", TypeAccess, "secret", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken(token, "secret", TypeAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
