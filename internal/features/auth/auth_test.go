package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/identity/identitytest"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

func setup(t *testing.T) (*gin.Engine, func(email string, active bool, withProfile bool)) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t, &profile.Profile{})
	fake := identitytest.New()
	log := testutil.Logger()

	auth := middleware.NewAuthMiddleware(db, fake, log)
	router := gin.New()
	RegisterRoutes(router.Group("/api"), NewHandler(db, NewService(db, fake, log), log), auth.Authenticated(), nil)

	add := func(email string, active bool, withProfile bool) {
		id := uuid.New()
		fake.AddAccount(id, email, "password123")
		if withProfile {
			_, err := profile.Create(db, profile.CreateInput{
				ID: id, Email: email, FullName: "User", Role: types.RoleStudent, Active: &active,
			})
			require.NoError(t, err)
		}
	}
	return router, add
}

func post(r *gin.Engine, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type authEnvelope struct {
	Data AuthResponse `json:"data"`
}

func TestLoginRefreshMeLogout(t *testing.T) {
	r, add := setup(t)
	add("ana@example.com", true, true)

	w := post(r, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login authEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Data.AccessToken)
	assert.Equal(t, "ana@example.com", login.Data.User.Email)

	w = post(r, "/api/auth/refresh", "", gin.H{"refreshToken": login.Data.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed authEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))

	// Refresh tokens are single use.
	assert.Equal(t, http.StatusUnauthorized, post(r, "/api/auth/refresh", "", gin.H{"refreshToken": login.Data.RefreshToken}).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+refreshed.Data.AccessToken)
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)

	assert.Equal(t, http.StatusOK, post(r, "/api/auth/logout", refreshed.Data.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/api/auth/logout", refreshed.Data.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/api/auth/logout", "", nil).Code)
}

func TestLoginRejections(t *testing.T) {
	r, add := setup(t)
	add("inactive@example.com", false, true)
	add("orphan@example.com", true, false)
	add("ok@example.com", true, true)

	assert.Equal(t, http.StatusUnauthorized, post(r, "/api/auth/login", "", gin.H{"email": "ok@example.com", "password": "wrong-pass"}).Code)
	assert.Equal(t, http.StatusForbidden, post(r, "/api/auth/login", "", gin.H{"email": "inactive@example.com", "password": "password123"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/api/auth/login", "", gin.H{"email": "orphan@example.com", "password": "password123"}).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/auth/login", "", gin.H{"email": "ok@example.com"}).Code)
}
