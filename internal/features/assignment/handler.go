package assignment

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Handler processes instructor assignment HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs an assignment handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// List returns assignments filtered by teacher or course.
func (h *Handler) List(c *gin.Context) {
	teacherID, err := request.QueryUUID(c, "teacherId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid teacher id", err)
		return
	}
	courseID, err := request.QueryUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	assignments, err := List(h.db.WithContext(c.Request.Context()), ListFilters{
		TeacherID:  teacherID,
		CourseID:   courseID,
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list assignments", err)
		return
	}

	response.Success(c, http.StatusOK, assignments, "", nil)
}

// Create assigns an instructor to a course.
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		TeacherID string `json:"teacherId" binding:"required"`
		CourseID  string `json:"courseId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "teacherId and courseId are required", err)
		return
	}

	teacherID, err := request.ReadUUID(req.TeacherID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid teacher id", err)
		return
	}
	courseID, err := request.ReadUUID(req.CourseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	a, err := Assign(h.db.WithContext(c.Request.Context()), teacherID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to assign instructor")
		return
	}

	response.Created(c, a, "")
}

// ToggleActive flips the active flag of an assignment.
func (h *Handler) ToggleActive(c *gin.Context) {
	id, err := request.ParamUUID(c, "assignmentId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid assignment id", err)
		return
	}

	a, err := ToggleActive(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to update assignment")
		return
	}

	response.Success(c, http.StatusOK, a, "", nil)
}

// Delete removes an assignment.
func (h *Handler) Delete(c *gin.Context) {
	id, err := request.ParamUUID(c, "assignmentId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid assignment id", err)
		return
	}

	if err := Unassign(h.db.WithContext(c.Request.Context()), id); err != nil {
		h.respondError(c, err, "failed to delete assignment")
		return
	}

	response.Success(c, http.StatusOK, nil, "Assignment removed.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrAssignmentNotFound):
		status = http.StatusNotFound
		message = "Assignment not found."
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrAlreadyAssigned):
		status = http.StatusConflict
		message = "Instructor is already assigned to this course."
	case errors.Is(err, ErrNotInstructor):
		status = http.StatusBadRequest
		message = "Only active instructors can be assigned to courses."
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
