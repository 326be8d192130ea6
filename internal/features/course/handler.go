package course

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Viewer decides whether a user may read a course.
type Viewer interface {
	CanViewCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error)
}

// Handler processes course HTTP requests.
type Handler struct {
	db     *gorm.DB
	viewer Viewer
	logger *slog.Logger
}

// NewHandler constructs a course handler instance.
func NewHandler(db *gorm.DB, viewer Viewer, logger *slog.Logger) *Handler {
	return &Handler{db: db, viewer: viewer, logger: logger}
}

// List returns paginated courses scoped to the caller's role.
func (h *Handler) List(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	params := pagination.Extract(c)
	filters := ListFilters{Keyword: c.Query("filterKeyword")}

	if value := c.Query("cycle"); value != "" {
		cycle, err := strconv.Atoi(value)
		if err != nil || !validCycle(cycle) {
			h.respondError(c, ErrInvalidCycle, "invalid cycle")
			return
		}
		filters.Cycle = &cycle
	}

	switch {
	case usr.IsAdmin():
		if value := c.Query("active"); value != "" {
			active := value == "true"
			filters.Active = &active
		}
	case usr.IsInstructor():
		filters.TeacherID = &usr.ID
	default:
		active := true
		filters.Active = &active
		filters.StudentID = &usr.ID
	}

	courses, total, err := List(h.db.WithContext(c.Request.Context()), filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}

	response.Success(c, http.StatusOK, courses, "", pagination.MetadataFrom(total, params))
}

type createRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Code        string  `json:"code" binding:"required"`
	Cycle       *int    `json:"cycle"`
	Credits     *int    `json:"credits"`
	Color       *string `json:"color"`
	Active      *bool   `json:"isActive"`
}

// Create inserts a new course.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "name and code are required", err)
		return
	}

	input := CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Code:        req.Code,
		Cycle:       req.Cycle,
		Credits:     req.Credits,
		Color:       req.Color,
		Active:      req.Active,
	}
	if usr, ok := middleware.GetUserFromContext(c); ok {
		input.CreatedBy = &usr.ID
	}

	course, err := Create(h.db.WithContext(c.Request.Context()), input)
	if err != nil {
		h.respondError(c, err, "failed to create course")
		return
	}

	h.logger.InfoContext(c.Request.Context(), "course created", "courseId", course.ID, "code", course.Code)
	response.Created(c, course, "")
}

// GetByID fetches a single course.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	course, err := Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	if h.viewer != nil && !usr.IsAdmin() {
		allowed, err := h.viewer.CanViewCourse(c.Request.Context(), usr, id)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to check course access", err)
			return
		}
		if !allowed {
			response.ErrorWithLog(h.logger, c, http.StatusForbidden, "You do not have access to this course.", nil)
			return
		}
	}

	response.Success(c, http.StatusOK, course, "", nil)
}

// Update applies a partial update to a course.
func (h *Handler) Update(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	input := UpdateInput{}

	if value, ok := body["name"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			h.respondError(c, ErrNameRequired, "")
			return
		}
		input.Name = &str
	}

	if value, ok := body["description"]; ok {
		desc, err := request.ReadNullableString("description", value)
		if err != nil {
			h.respondError(c, err, "")
			return
		}
		input.DescProvided, input.Description = true, desc
	}

	if value, ok := body["code"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			h.respondError(c, ErrCodeRequired, "")
			return
		}
		input.Code = &str
	}

	if value, ok := body["cycle"]; ok {
		val, err := request.ReadInt(value)
		if err != nil {
			h.respondError(c, ErrInvalidCycle, "")
			return
		}
		input.Cycle = &val
	}

	if value, ok := body["credits"]; ok {
		input.CredProvided = true
		if value != nil {
			val, err := request.ReadInt(value)
			if err != nil {
				h.respondError(c, ErrInvalidCredits, "")
				return
			}
			input.Credits = &val
		}
	}

	if value, ok := body["color"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			h.respondError(c, ErrInvalidColor, "")
			return
		}
		input.Color = &str
	}

	if value, ok := body["isActive"]; ok {
		val, err := request.ReadBool(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "isActive must be boolean", err)
			return
		}
		input.Active = &val
	}

	course, err := Update(h.db.WithContext(c.Request.Context()), id, input)
	if err != nil {
		h.respondError(c, err, "failed to update course")
		return
	}

	response.Success(c, http.StatusOK, course, "", nil)
}

// ToggleActive flips the active flag of a course.
func (h *Handler) ToggleActive(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	course, err := ToggleActive(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to update course")
		return
	}

	response.Success(c, http.StatusOK, course, "", nil)
}

// Delete removes a course.
func (h *Handler) Delete(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), id); err != nil {
		h.respondError(c, err, "failed to delete course")
		return
	}

	h.logger.InfoContext(c.Request.Context(), "course deleted", "courseId", id)
	response.Success(c, http.StatusOK, nil, "Course deleted successfully.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrCodeTaken):
		status = http.StatusConflict
		message = "A course with this code already exists."
	case errors.Is(err, ErrCourseInUse):
		status = http.StatusConflict
		message = "Course still has videos or enrollments. Remove them first."
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrCodeRequired),
		errors.Is(err, ErrInvalidCycle),
		errors.Is(err, ErrInvalidCredits),
		errors.Is(err, ErrInvalidColor):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
