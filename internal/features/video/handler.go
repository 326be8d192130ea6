package video

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Gate decides course-level permissions for the caller.
type Gate interface {
	CanViewCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error)
	CanManageCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error)
}

// Handler processes video HTTP requests.
type Handler struct {
	db      *gorm.DB
	service *Service
	gate    Gate
	logger  *slog.Logger
}

// NewHandler constructs a video handler instance.
func NewHandler(db *gorm.DB, service *Service, gate Gate, logger *slog.Logger) *Handler {
	return &Handler{db: db, service: service, gate: gate, logger: logger}
}

// ListByCourse returns a course's videos in playback order.
func (h *Handler) ListByCourse(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	usr, ok := h.authorize(c, courseID, false)
	if !ok {
		return
	}

	filters := ListFilters{CourseID: courseID}
	if value := c.Query("week"); value != "" {
		week, err := strconv.Atoi(value)
		if err != nil || week < 1 {
			h.respondError(c, ErrInvalidWeek, "")
			return
		}
		filters.Week = &week
	}
	if usr.IsStudent() {
		now := h.service.now()
		filters.AvailableAt = &now
	}

	videos, err := List(h.db.WithContext(c.Request.Context()), filters)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list videos", err)
		return
	}

	response.Success(c, http.StatusOK, videos, "", nil)
}

// Upload accepts a multipart video upload for a course.
func (h *Handler) Upload(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	usr, ok := h.authorize(c, courseID, true)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.respondError(c, errors.Join(ErrFileRequired, err), "")
		return
	}
	defer file.Close()

	week, err := strconv.Atoi(strings.TrimSpace(c.PostForm("week")))
	if err != nil {
		h.respondError(c, ErrInvalidWeek, "")
		return
	}

	input := UploadInput{
		CourseID:   courseID,
		Title:      c.PostForm("title"),
		Week:       week,
		UploadedBy: &usr.ID,
		Filename:   header.Filename,
		Body:       file,
		Size:       header.Size,
	}

	if value := strings.TrimSpace(c.PostForm("orderInWeek")); value != "" {
		order, err := strconv.Atoi(value)
		if err != nil {
			h.respondError(c, ErrInvalidOrder, "")
			return
		}
		input.OrderInWeek = &order
	}
	if value := strings.TrimSpace(c.PostForm("description")); value != "" {
		input.Description = &value
	}
	if value := strings.TrimSpace(c.PostForm("thumbnailUrl")); value != "" {
		input.ThumbnailURL = &value
	}
	if input.AvailableFrom, err = formTime(c, "availableFrom"); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "availableFrom must be an RFC3339 timestamp", err)
		return
	}
	if input.AvailableUntil, err = formTime(c, "availableUntil"); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "availableUntil must be an RFC3339 timestamp", err)
		return
	}

	v, err := h.service.Upload(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, "failed to upload video")
		return
	}

	response.Created(c, v, "Video uploaded successfully.")
}

// GetByID fetches a single video.
func (h *Handler) GetByID(c *gin.Context) {
	v, ok := h.loadReadable(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, v, "", nil)
}

// Playback returns a playable URL and the player settings for a video.
func (h *Handler) Playback(c *gin.Context) {
	v, ok := h.loadReadable(c)
	if !ok {
		return
	}

	playback, err := h.service.PlaybackURL(c.Request.Context(), v)
	if err != nil {
		h.respondError(c, err, "failed to resolve playback url")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{
		"videoId":             v.ID,
		"url":                 playback.URL,
		"signed":              playback.Signed,
		"expiresAt":           playback.ExpiresAt,
		"duration":            v.Duration,
		"saveIntervalSeconds": int(PlayerSaveInterval / time.Second),
	}, "")
}

// Update applies a partial update to a video.
func (h *Handler) Update(c *gin.Context) {
	v, ok := h.loadManageable(c)
	if !ok {
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid video payload", err)
		return
	}

	input := UpdateInput{}

	if value, ok := body["title"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			h.respondError(c, ErrTitleRequired, "")
			return
		}
		input.Title = &str
	}
	if value, ok := body["description"]; ok {
		desc, err := request.ReadNullableString("description", value)
		if err != nil {
			h.respondError(c, err, "")
			return
		}
		input.DescProvided, input.Description = true, desc
	}
	if value, ok := body["thumbnailUrl"]; ok {
		thumb, err := request.ReadNullableString("thumbnailUrl", value)
		if err != nil {
			h.respondError(c, err, "")
			return
		}
		input.ThumbProvided, input.ThumbnailURL = true, thumb
	}
	if value, ok := body["week"]; ok {
		week, err := request.ReadInt(value)
		if err != nil {
			h.respondError(c, ErrInvalidWeek, "")
			return
		}
		input.Week = &week
	}
	if value, ok := body["orderInWeek"]; ok {
		order, err := request.ReadInt(value)
		if err != nil {
			h.respondError(c, ErrInvalidOrder, "")
			return
		}
		input.OrderInWeek = &order
	}
	if value, ok := body["isActive"]; ok {
		active, err := request.ReadBool(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "isActive must be boolean", err)
			return
		}
		input.Active = &active
	}
	if value, ok := body["availableFrom"]; ok {
		ts, err := request.ReadTimePtr(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "availableFrom must be an RFC3339 timestamp", err)
			return
		}
		input.FromProvided, input.AvailableFrom = true, ts
	}
	if value, ok := body["availableUntil"]; ok {
		ts, err := request.ReadTimePtr(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "availableUntil must be an RFC3339 timestamp", err)
			return
		}
		input.UntilProvided, input.AvailableUntil = true, ts
	}

	updated, err := Update(h.db.WithContext(c.Request.Context()), v.ID, input)
	if err != nil {
		h.respondError(c, err, "failed to update video")
		return
	}

	response.Success(c, http.StatusOK, updated, "", nil)
}

// Delete removes a video and its stored binary.
func (h *Handler) Delete(c *gin.Context) {
	v, ok := h.loadManageable(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), v.ID); err != nil {
		h.respondError(c, err, "failed to delete video")
		return
	}

	response.Success(c, http.StatusOK, nil, "Video deleted successfully.", nil)
}

func (h *Handler) loadReadable(c *gin.Context) (Video, bool) {
	v, usr, ok := h.load(c, false)
	if !ok {
		return v, false
	}
	if usr.IsStudent() && !v.Available(h.service.now()) {
		h.respondError(c, ErrVideoNotAvailable, "")
		return v, false
	}
	return v, true
}

func (h *Handler) loadManageable(c *gin.Context) (Video, bool) {
	v, _, ok := h.load(c, true)
	return v, ok
}

func (h *Handler) load(c *gin.Context, manage bool) (Video, *middleware.CurrentUser, bool) {
	id, err := request.ParamUUID(c, "videoId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid video id", err)
		return Video{}, nil, false
	}

	v, err := Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load video")
		return v, nil, false
	}

	usr, ok := h.authorize(c, v.CourseID, manage)
	return v, usr, ok
}

// authorize checks the caller against the course and writes the error response when denied.
func (h *Handler) authorize(c *gin.Context, courseID uuid.UUID, manage bool) (*middleware.CurrentUser, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return nil, false
	}

	check := h.gate.CanViewCourse
	if manage {
		check = h.gate.CanManageCourse
	}

	allowed, err := check(c.Request.Context(), usr, courseID)
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
	case errors.Is(err, ErrVideoNotFound):
		status = http.StatusNotFound
		message = "Video not found."
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrVideoNotAvailable):
		status = http.StatusForbidden
		message = "This video is not available yet."
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrInvalidWeek),
		errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrFileRequired),
		errors.Is(err, ErrInvalidWindow):
		status = http.StatusBadRequest
		message = firstLine(err)
	case errors.Is(err, ErrUploadFailed):
		status = http.StatusBadGateway
		message = "Failed to store the video file."
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}

func formTime(c *gin.Context, field string) (*time.Time, error) {
	value := c.PostForm(field)
	return request.ParseRFC3339Ptr(&value)
}

// firstLine returns the sentinel message of an errors.Join chain.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
