package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
	"github.com/aulavirtual/lms-server-go/pkg/cache"
	"github.com/aulavirtual/lms-server-go/pkg/storage/storagetest"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

var now = time.Date(2026, 4, 6, 15, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	store  *storagetest.Memory
	cache  *cache.MemoryCache
	svc    *Service
	course course.Course
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t, &course.Course{}, &Video{})
	c, err := course.Create(db, course.CreateInput{Name: "Biología", Code: "BIO-1"})
	require.NoError(t, err)

	store := storagetest.NewMemory()
	mem := cache.NewMemoryCache()
	svc := NewService(db, store, mem, testutil.Logger(), 0)
	svc.now = func() time.Time { return now }
	return &fixture{db: db, store: store, cache: mem, svc: svc, course: c}
}

func (f *fixture) upload(t *testing.T, title string, week int) Video {
	payload := []byte("binary-" + title)
	v, err := f.svc.Upload(context.Background(), UploadInput{
		CourseID: f.course.ID, Title: title, Week: week,
		Filename: "clase.MP4", Body: bytes.NewReader(payload), Size: int64(len(payload)),
	})
	require.NoError(t, err)
	return v
}

func countVideos(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&Video{}).Count(&n).Error)
	return n
}

func TestUploadStoresObjectThenRow(t *testing.T) {
	f := newFixture(t)

	v := f.upload(t, "Células", 1)
	assert.True(t, strings.HasPrefix(v.VideoURL, f.course.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(v.VideoURL, ".mp4"))
	assert.Contains(t, v.VideoURL, "/1775487600000-")
	assert.Zero(t, v.Duration)
	assert.EqualValues(t, len("binary-Células"), v.FileSize)
	assert.True(t, v.Active)

	_, ok := f.store.Object(v.VideoURL)
	assert.True(t, ok)

	second := f.upload(t, "Tejidos", 1)
	assert.Equal(t, 1, second.OrderInWeek)
	other := f.upload(t, "Órganos", 2)
	assert.Equal(t, 0, other.OrderInWeek)
}

func TestUploadRemovesObjectWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&Video{}))

	order := 0
	_, err := f.svc.Upload(context.Background(), UploadInput{
		CourseID: f.course.ID, Title: "Huérfano", Week: 1, OrderInWeek: &order,
		Filename: "a.mp4", Body: strings.NewReader("data"), Size: 4,
	})
	require.Error(t, err)
	assert.Empty(t, f.store.Keys(), "no residual binaries")

	require.NoError(t, f.db.AutoMigrate(&Video{}))
	assert.Zero(t, countVideos(t, f.db), "no metadata rows")
}

func TestUploadFailuresBeforeInsert(t *testing.T) {
	f := newFixture(t)

	f.store.PutErr = errors.New("bucket unavailable")
	_, err := f.svc.Upload(context.Background(), UploadInput{
		CourseID: f.course.ID, Title: "X", Week: 1, Filename: "a.mp4", Body: strings.NewReader("data"), Size: 4,
	})
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Zero(t, countVideos(t, f.db))
	f.store.PutErr = nil

	cases := []struct {
		input UploadInput
		want  error
	}{
		{UploadInput{CourseID: f.course.ID, Week: 1, Body: strings.NewReader("d"), Size: 1}, ErrTitleRequired},
		{UploadInput{CourseID: f.course.ID, Title: "X", Week: 0, Body: strings.NewReader("d"), Size: 1}, ErrInvalidWeek},
		{UploadInput{CourseID: f.course.ID, Title: "X", Week: 1}, ErrFileRequired},
		{UploadInput{CourseID: uuid.New(), Title: "X", Week: 1, Body: strings.NewReader("d"), Size: 1}, course.ErrCourseNotFound},
	}
	for _, tc := range cases {
		_, err := f.svc.Upload(context.Background(), tc.input)
		assert.ErrorIs(t, err, tc.want)
	}
	assert.Empty(t, f.store.Keys())
}

func TestDeleteRemovesObjectFirstAndToleratesFailure(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "A", 1)
	b := f.upload(t, "B", 1)

	require.NoError(t, f.svc.Delete(context.Background(), a.ID))
	_, ok := f.store.Object(a.VideoURL)
	assert.False(t, ok)

	f.store.DeleteErr = errors.New("timeout")
	require.NoError(t, f.svc.Delete(context.Background(), b.ID))
	assert.Zero(t, countVideos(t, f.db))

	assert.ErrorIs(t, f.svc.Delete(context.Background(), b.ID), ErrVideoNotFound)
}

func TestPlaybackURL(t *testing.T) {
	f := newFixture(t)
	v := f.upload(t, "A", 1)
	ctx := context.Background()

	first, err := f.svc.PlaybackURL(ctx, v)
	require.NoError(t, err)
	assert.True(t, first.Signed)
	assert.Contains(t, first.URL, "ttl=3600")
	require.NotNil(t, first.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *first.ExpiresAt)

	cached, err := f.svc.PlaybackURL(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, first.URL, cached.URL)
	assert.Equal(t, 1, f.store.Signed)

	require.NoError(t, f.cache.Delete(ctx, playbackCacheKey(v)))
	f.store.SignErr = errors.New("no credentials")
	fallback, err := f.svc.PlaybackURL(ctx, v)
	require.NoError(t, err)
	assert.False(t, fallback.Signed)
	assert.Equal(t, "https://cdn.test/"+v.VideoURL, fallback.URL)

	legacy, err := f.svc.PlaybackURL(ctx, Video{BaseModel: types.BaseModel{ID: uuid.New()}, VideoURL: "https://old.example.com/v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "https://old.example.com/v.mp4", legacy.URL)
}

func TestPlaybackTTLIsClamped(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, MaxPlaybackTTL, NewService(f.db, f.store, nil, testutil.Logger(), 5*time.Hour).PlaybackTTL())
	assert.Equal(t, 90*time.Minute, NewService(f.db, f.store, nil, testutil.Logger(), 90*time.Minute).PlaybackTTL())
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	v := f.upload(t, "A", 1)
	later := now.Add(24 * time.Hour)

	_, err := Update(f.db, v.ID, UpdateInput{FromProvided: true, AvailableFrom: &later})
	require.NoError(t, err)

	visible, err := List(f.db, ListFilters{CourseID: f.course.ID, AvailableAt: &now})
	require.NoError(t, err)
	assert.Empty(t, visible)

	visible, err = List(f.db, ListFilters{CourseID: f.course.ID, AvailableAt: &later})
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	before := now
	_, err = Update(f.db, v.ID, UpdateInput{UntilProvided: true, AvailableUntil: &before})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	changed, err := RecordDuration(f.db, v.ID, 600)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = RecordDuration(f.db, v.ID, 300)
	require.NoError(t, err)
	assert.False(t, changed)
}

type stubGate struct{ view, manage bool }

func (g stubGate) CanViewCourse(context.Context, *middleware.CurrentUser, uuid.UUID) (bool, error) {
	return g.view, nil
}

func (g stubGate) CanManageCourse(context.Context, *middleware.CurrentUser, uuid.UUID) (bool, error) {
	return g.manage, nil
}

func router(f *fixture, gate Gate, role types.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	asUser := func(c *gin.Context) {
		c.Set("user", &middleware.CurrentUser{ID: uuid.New(), Role: role, Active: true})
	}
	RegisterRoutes(r.Group("/api"), NewHandler(f.db, f.svc, gate, testutil.Logger()),
		[]gin.HandlerFunc{asUser}, []gin.HandlerFunc{asUser})
	return r
}

func TestUploadEndpoint(t *testing.T) {
	f := newFixture(t)
	r := router(f, stubGate{view: true, manage: true}, types.RoleInstructor)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Mitosis"))
	require.NoError(t, mw.WriteField("week", "3"))
	part, err := mw.CreateFormFile("file", "mitosis.webm")
	require.NoError(t, err)
	_, _ = part.Write([]byte("webm-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses/"+f.course.ID.String()+"/videos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data Video `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 3, created.Data.Week)
	assert.True(t, strings.HasSuffix(created.Data.VideoURL, ".webm"))
	require.NotNil(t, created.Data.UploadedBy)

	denied := router(f, stubGate{view: true, manage: false}, types.RoleInstructor)
	w = httptest.NewRecorder()
	denied.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/videos/"+created.Data.ID.String(), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStudentCannotPlayUnavailableVideo(t *testing.T) {
	f := newFixture(t)
	v := f.upload(t, "A", 1)
	r := router(f, stubGate{view: true}, types.RoleStudent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos/"+v.ID.String()+"/playback", nil))
	require.Equal(t, http.StatusOK, w.Code)

	inactive := false
	_, err := Update(f.db, v.ID, UpdateInput{Active: &inactive})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos/"+v.ID.String()+"/playback", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses/"+f.course.ID.String()+"/videos", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data []Video `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed.Data)
}

func TestUpdateRejectsNonStringText(t *testing.T) {
	f := newFixture(t)
	v := f.upload(t, "A", 1)
	r := router(f, stubGate{view: true, manage: true}, types.RoleInstructor)

	patch := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/videos/"+v.ID.String(), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, patch(`{"description": "Introducción", "thumbnailUrl": "https://cdn.example.com/a.jpg"}`).Code)

	for _, body := range []string{`{"description": 42}`, `{"thumbnailUrl": true}`} {
		w := patch(body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)

		var resp struct {
			Error struct {
				Code   string            `json:"code"`
				Fields map[string]string `json:"fields"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Error.Code)
		assert.Len(t, resp.Error.Fields, 1)
	}

	stored, err := Get(f.db, v.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Description)
	assert.Equal(t, "Introducción", *stored.Description)
	require.NotNil(t, stored.ThumbnailURL)

	require.Equal(t, http.StatusOK, patch(`{"description": null}`).Code)
	stored, err = Get(f.db, v.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Description)
}
