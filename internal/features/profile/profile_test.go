package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/identity/identitytest"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

type fixture struct {
	db     *gorm.DB
	fake   *identitytest.Fake
	router *gin.Engine
	admin  Profile
	token  string
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t, &Profile{})
	fake := identitytest.New()
	log := testutil.Logger()

	admin, err := Create(db, CreateInput{ID: uuid.New(), Email: "admin@example.com", FullName: "Admin", Role: types.RoleAdmin})
	require.NoError(t, err)
	token := fake.AddAccount(admin.ID, admin.Email, "password123")

	auth := middleware.NewAuthMiddleware(db, fake, log)
	router := gin.New()
	RegisterRoutes(router.Group("/api"), NewHandler(db, NewService(db, fake, log), log), auth.RequireRoles(types.RoleAdmin))

	return &fixture{db: db, fake: fake, router: router, admin: admin, token: token}
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/users/create", f.token, gin.H{
		"email": "Ana@Example.com", "password": "secret123", "fullName": "Ana Ruiz", "role": "student",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	p, err := GetByEmail(f.db, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleStudent, p.Role)
	assert.True(t, p.Active)
	assert.True(t, f.fake.HasAccount("ana@example.com"))

	w = f.do(http.MethodPost, "/api/users/create", f.token, gin.H{
		"email": "ana@example.com", "password": "secret123", "fullName": "Ana Again", "role": "student",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)

	cases := []gin.H{
		{"email": "bad", "password": "secret123", "fullName": "X", "role": "student"},
		{"email": "x@example.com", "password": "short", "fullName": "X", "role": "student"},
		{"email": "x@example.com", "password": "secret123", "fullName": "X", "role": "janitor"},
		{"email": "x@example.com", "password": "secret123", "role": "student"},
	}
	for _, body := range cases {
		w := f.do(http.MethodPost, "/api/users/create", f.token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.False(t, f.fake.HasAccount("x@example.com"))
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	body := gin.H{"email": "y@example.com", "password": "secret123", "fullName": "Y", "role": "student"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/users/create", "", body).Code)

	student, err := Create(f.db, CreateInput{ID: uuid.New(), Email: "s@example.com", FullName: "S", Role: types.RoleStudent})
	require.NoError(t, err)
	token := f.fake.AddAccount(student.ID, student.Email, "password123")
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/users/create", token, body).Code)
}

func TestCreateUserRollsBackAccountWhenProfileInsertFails(t *testing.T) {
	f := newFixture(t)
	// A profile row without an identity account makes the second insert collide on email.
	_, err := Create(f.db, CreateInput{ID: uuid.New(), Email: "ghost@example.com", FullName: "Ghost", Role: types.RoleStudent})
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/users/create", f.token, gin.H{
		"email": "ghost@example.com", "password": "secret123", "fullName": "Ghost", "role": "student",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, f.fake.HasAccount("ghost@example.com"))
	assert.Len(t, f.fake.Deleted, 1)
}

func TestCreateUserStoreFailure(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, f.fake, testutil.Logger())
	require.NoError(t, f.db.Migrator().DropTable(&Profile{}))

	_, err := svc.CreateUser(t.Context(), CreateUserInput{
		Email: "z@example.com", Password: "secret123", FullName: "Z", Role: "instructor",
	})
	assert.ErrorIs(t, err, ErrProfileCreate)
	assert.False(t, f.fake.HasAccount("z@example.com"))
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.fake.AddAccount(id, "gone@example.com", "password123")

	w := f.do(http.MethodPost, "/api/users/delete", f.token, gin.H{"userId": id.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, f.fake.HasAccount("gone@example.com"))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/users/delete", f.token, gin.H{"userId": id.String()}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/users/delete", f.token, gin.H{"userId": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/users/delete", f.token, gin.H{"userId": f.admin.ID.String()}).Code)
}

func TestIdentityProviderFailuresAreUpstreamErrors(t *testing.T) {
	f := newFixture(t)
	f.fake.CreateErr = errors.New("dial tcp: connection refused")

	w := f.do(http.MethodPost, "/api/users/create", f.token, gin.H{
		"email": "new@example.com", "password": "secret123", "fullName": "Nuevo", "role": "student",
	})
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "upstream_error")
	_, err := GetByEmail(f.db, "new@example.com")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	f.fake.DeleteErr = errors.New("service unavailable")
	w = f.do(http.MethodPost, "/api/users/delete", f.token, gin.H{"userId": uuid.NewString()})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestDirectory(t *testing.T) {
	f := newFixture(t)
	student, err := Create(f.db, CreateInput{ID: uuid.New(), Email: "s1@example.com", FullName: "Student One", Role: types.RoleStudent})
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/api/profiles?role=student", f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data []Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, student.ID, listed.Data[0].ID)

	w = f.do(http.MethodPatch, "/api/profiles/"+student.ID.String(), f.token, gin.H{"fullName": "Student Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/api/profiles/"+student.ID.String(), f.token, gin.H{"role": "admin"}).Code)

	w = f.do(http.MethodPost, "/api/profiles/"+student.ID.String()+"/toggle-active", f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := Get(f.db, student.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "Student Renamed", got.FullName)

	count, err := CountByRole(f.db, types.RoleStudent, true)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/profiles/"+student.ID.String(), f.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/profiles/"+student.ID.String(), f.token, nil).Code)
}
