package progress

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/video"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Viewer decides whether the caller may see a course.
type Viewer interface {
	CanViewCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error)
}

// Handler processes progress HTTP requests.
type Handler struct {
	db     *gorm.DB
	viewer Viewer
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler constructs a progress handler instance.
func NewHandler(db *gorm.DB, viewer Viewer, logger *slog.Logger) *Handler {
	return &Handler{
		db:     db,
		viewer: viewer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type saveRequest struct {
	Position *float64 `json:"position"`
	Duration *float64 `json:"duration"`
}

// Save records the caller's playback position on a video.
func (h *Handler) Save(c *gin.Context) {
	usr, v, ok := h.loadVideo(c)
	if !ok {
		return
	}

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Position == nil {
		h.respondError(c, ErrInvalidPosition, "")
		return
	}

	view, err := Save(h.db.WithContext(c.Request.Context()), SaveInput{
		UserID:          usr.ID,
		VideoID:         v.ID,
		Position:        *req.Position,
		Duration:        req.Duration,
		PersistDuration: !usr.IsStudent(),
		Now:             h.now(),
	})
	if err != nil {
		h.respondError(c, err, "failed to save progress")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, view, "")
}

// Get returns the caller's progress on a video.
func (h *Handler) Get(c *gin.Context) {
	usr, v, ok := h.loadVideo(c)
	if !ok {
		return
	}

	view, err := Get(h.db.WithContext(c.Request.Context()), usr.ID, v.ID)
	if err != nil {
		h.respondError(c, err, "failed to load progress")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, view, "")
}

// Course returns the caller's completion of a course and the status of each video.
func (h *Handler) Course(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	usr, ok := h.authorize(c, courseID)
	if !ok {
		return
	}

	db := h.db.WithContext(c.Request.Context())
	summary, err := CourseProgress(db, usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to compute course progress")
		return
	}

	rows, err := ForCourse(db, usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course progress")
		return
	}

	filters := video.ListFilters{CourseID: courseID}
	if usr.IsStudent() {
		now := h.now()
		filters.AvailableAt = &now
	}
	listed, err := video.List(db, filters)
	if err != nil {
		h.respondError(c, err, "failed to load course videos")
		return
	}

	videos := make([]View, 0, len(listed))
	for _, v := range listed {
		if row, ok := rows[v.ID]; ok {
			videos = append(videos, viewOf(v.ID, &row))
			continue
		}
		videos = append(videos, viewOf(v.ID, nil))
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{
		"summary": summary,
		"videos":  videos,
	}, "")
}

func (h *Handler) loadVideo(c *gin.Context) (*middleware.CurrentUser, video.Video, bool) {
	id, err := request.ParamUUID(c, "videoId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid video id", err)
		return nil, video.Video{}, false
	}

	v, err := video.Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load video")
		return nil, v, false
	}

	usr, ok := h.authorize(c, v.CourseID)
	if !ok {
		return nil, v, false
	}
	if usr.IsStudent() && !v.Available(h.now()) {
		h.respondError(c, ErrVideoInactive, "")
		return nil, v, false
	}
	return usr, v, true
}

func (h *Handler) authorize(c *gin.Context, courseID uuid.UUID) (*middleware.CurrentUser, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return nil, false
	}

	allowed, err := h.viewer.CanViewCourse(c.Request.Context(), usr, courseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to check course access", err)
		return nil, false
	}
	if !allowed {
		response.ErrorWithLog(h.logger, c, http.StatusForbidden, "You do not have access to this course.", nil)
		return nil, false
	}
	return usr, true
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrInvalidPosition), errors.Is(err, ErrInvalidDuration):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, ErrVideoInactive):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, video.ErrVideoNotFound):
		status = http.StatusNotFound
		message = err.Error()
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
