package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulavirtual/lms-server-go/internal/identity"
)

type fakeAuthService struct {
	t        *testing.T
	userID   uuid.UUID
	accounts map[string]bool
}

func (f *fakeAuthService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON := func(status int, body interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
		assert.Equal(f.t, "anon", r.Header.Get("apikey"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "correct-horse" {
				writeJSON(http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
				return
			}
		case "refresh_token":
			if body["refresh_token"] != "rt-1" {
				writeJSON(http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
		}
		writeJSON(http.StatusOK, map[string]interface{}{
			"access_token":  "at-1",
			"refresh_token": "rt-2",
			"expires_in":    3600,
			"user":          map[string]string{"id": f.userID.String(), "email": "Ana@Example.com"},
		})

	case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user":
		if r.Header.Get("Authorization") != "Bearer at-1" {
			writeJSON(http.StatusUnauthorized, map[string]string{"msg": "invalid JWT: token is expired"})
			return
		}
		writeJSON(http.StatusOK, map[string]string{"id": f.userID.String(), "email": "ana@example.com"})

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/admin/users":
		assert.Equal(f.t, "service", r.Header.Get("apikey"))
		assert.Equal(f.t, "Bearer service", r.Header.Get("Authorization"))
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(f.t, true, body["email_confirm"])

		email := body["email"].(string)
		if f.accounts[email] {
			writeJSON(http.StatusUnprocessableEntity, map[string]string{"error_code": "email_exists", "msg": "A user with this email address has already been registered"})
			return
		}
		f.accounts[email] = true
		writeJSON(http.StatusOK, map[string]string{"id": f.userID.String(), "email": email})

	case r.Method == http.MethodDelete && r.URL.Path == "/auth/v1/admin/users/"+f.userID.String():
		writeJSON(http.StatusOK, map[string]string{})

	case r.Method == http.MethodDelete:
		writeJSON(http.StatusNotFound, map[string]string{"msg": "User not found"})

	default:
		w.WriteHeader(http.StatusTeapot)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeAuthService) {
	fake := &fakeAuthService{t: t, userID: uuid.New(), accounts: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "anon", "service"), fake
}

func TestSignInAndVerify(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient(t)

	_, err := client.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	session, err := client.SignIn(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "at-1", session.AccessToken)
	assert.Equal(t, fake.userID, session.Subject.ID)
	assert.Equal(t, "ana@example.com", session.Subject.Email)
	assert.False(t, session.ExpiresAt.IsZero())

	subject, err := client.VerifyAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, fake.userID, subject.ID)

	_, err = client.VerifyAccessToken(ctx, "stale")
	assert.ErrorIs(t, err, identity.ErrExpiredToken)

	assert.NoError(t, client.SignOut(ctx, "at-1"))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	session, err := client.Refresh(ctx, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-2", session.RefreshToken)

	_, err = client.Refresh(ctx, "unknown")
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestAdminCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient(t)

	subject, err := client.CreateAccount(ctx, "nuevo@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, fake.userID, subject.ID)

	_, err = client.CreateAccount(ctx, "nuevo@example.com", "correct-horse")
	assert.ErrorIs(t, err, identity.ErrAccountExists)

	_, err = client.CreateAccount(ctx, "otro@example.com", "short")
	assert.ErrorIs(t, err, identity.ErrWeakPassword)

	assert.NoError(t, client.DeleteAccount(ctx, fake.userID))
	assert.ErrorIs(t, client.DeleteAccount(ctx, uuid.New()), identity.ErrAccountNotFound)
}
