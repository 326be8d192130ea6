package enrollment

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Handler processes enrollment HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler constructs an enrollment handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// View is an enrollment with its derived window state.
type View struct {
	Enrollment
	DaysRemaining int  `json:"daysRemaining"`
	IsExpired     bool `json:"isExpired"`
	HasAccess     bool `json:"hasAccess"`
}

func viewOf(e Enrollment, now time.Time) View {
	access := e.GrantsAccess(now)
	if e.Course != nil && !e.Course.Active {
		access = false
	}
	return View{
		Enrollment:    e,
		DaysRemaining: e.DaysRemaining(now),
		IsExpired:     e.IsExpired(now),
		HasAccess:     access,
	}
}

// List returns enrollments with filters.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)

	studentID, err := request.QueryUUID(c, "studentId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid student id", err)
		return
	}
	courseID, err := request.QueryUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	now := h.now()
	enrollments, total, err := List(h.db.WithContext(c.Request.Context()), ListFilters{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    c.Query("status"),
		Now:       now,
	}, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list enrollments", err)
		return
	}

	views := make([]View, 0, len(enrollments))
	for _, e := range enrollments {
		views = append(views, viewOf(e, now))
	}

	response.Success(c, http.StatusOK, views, "", pagination.MetadataFrom(total, params))
}

// Mine returns the caller's enrollments.
func (h *Handler) Mine(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	enrollments, err := ActiveForStudent(h.db.WithContext(c.Request.Context()), usr.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list enrollments", err)
		return
	}

	now := h.now()
	views := make([]View, 0, len(enrollments))
	for _, e := range enrollments {
		views = append(views, viewOf(e, now))
	}

	response.Success(c, http.StatusOK, views, "", nil)
}

// Stats returns counts of active, expiring and expired enrollments.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := ComputeStats(h.db.WithContext(c.Request.Context()), h.now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to compute enrollment stats", err)
		return
	}

	response.Success(c, http.StatusOK, stats, "", nil)
}

type createRequest struct {
	StudentID     string  `json:"studentId" binding:"required"`
	CourseID      string  `json:"courseId" binding:"required"`
	DurationWeeks int     `json:"durationWeeks"`
	Notes         *string `json:"notes"`
}

// Create enrolls a student in a course.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "studentId and courseId are required", err)
		return
	}

	studentID, err := request.ReadUUID(req.StudentID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid student id", err)
		return
	}
	courseID, err := request.ReadUUID(req.CourseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	input := CreateInput{
		StudentID:     studentID,
		CourseID:      courseID,
		DurationWeeks: req.DurationWeeks,
		Notes:         req.Notes,
		EnrolledAt:    h.now(),
	}
	if usr, ok := middleware.GetUserFromContext(c); ok {
		input.CreatedBy = &usr.ID
	}

	e, err := Create(h.db.WithContext(c.Request.Context()), input)
	if err != nil {
		h.respondError(c, err, "failed to create enrollment")
		return
	}

	h.logger.InfoContext(c.Request.Context(), "enrollment created",
		"enrollmentId", e.ID, "studentId", e.UserID, "courseId", e.CourseID, "expiresAt", e.ExpiresAt)
	response.Created(c, viewOf(e, h.now()), "")
}

// Update changes payment verification and notes.
func (h *Handler) Update(c *gin.Context) {
	id, err := request.ParamUUID(c, "enrollmentId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment id", err)
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment payload", err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	e, err := Get(db, id)
	if err != nil {
		h.respondError(c, err, "failed to load enrollment")
		return
	}

	if value, ok := body["paymentVerified"]; ok {
		verified, err := request.ReadBool(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "paymentVerified must be boolean", err)
			return
		}
		if e, err = SetPaymentVerified(db, id, verified); err != nil {
			h.respondError(c, err, "failed to update enrollment")
			return
		}
	}

	if value, ok := body["notes"]; ok {
		notes, err := request.ReadNullableString("notes", value)
		if err != nil {
			h.respondError(c, err, "")
			return
		}
		if e, err = UpdateNotes(db, id, notes); err != nil {
			h.respondError(c, err, "failed to update enrollment")
			return
		}
	}

	response.Success(c, http.StatusOK, viewOf(e, h.now()), "", nil)
}

// ToggleActive flips the active flag of an enrollment.
func (h *Handler) ToggleActive(c *gin.Context) {
	id, err := request.ParamUUID(c, "enrollmentId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment id", err)
		return
	}

	e, err := ToggleActive(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to update enrollment")
		return
	}

	response.Success(c, http.StatusOK, viewOf(e, h.now()), "", nil)
}

// Delete removes an enrollment.
func (h *Handler) Delete(c *gin.Context) {
	id, err := request.ParamUUID(c, "enrollmentId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment id", err)
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), id); err != nil {
		h.respondError(c, err, "failed to delete enrollment")
		return
	}

	h.logger.InfoContext(c.Request.Context(), "enrollment deleted", "enrollmentId", id)
	response.Success(c, http.StatusOK, nil, "Enrollment deleted successfully.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrEnrollmentNotFound):
		status = http.StatusNotFound
		message = "Enrollment not found."
	case errors.Is(err, profile.ErrProfileNotFound):
		status = http.StatusNotFound
		message = "Student not found."
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrDuplicateActiveEnrollment):
		status = http.StatusConflict
		message = "The student already has an active enrollment in this course."
	case errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrNotStudent),
		errors.Is(err, ErrStudentInactive):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
