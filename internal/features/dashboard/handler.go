package dashboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
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

// Viewer decides whether the caller may see a course.
type Viewer interface {
	CanViewCourse(ctx context.Context, usr *middleware.CurrentUser, courseID uuid.UUID) (bool, error)
}

type Handler struct {
	db     *gorm.DB
	viewer Viewer
	logDir string
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(db *gorm.DB, viewer Viewer, logDir string, logger *slog.Logger) *Handler {
	return &Handler{
		db:     db,
		viewer: viewer,
		logDir: logDir,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetAdminDashboard returns platform counters.
// GET /dashboard/admin
func (h *Handler) GetAdminDashboard(c *gin.Context) {
	stats, err := ComputeAdminStats(h.db.WithContext(c.Request.Context()), h.now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}
	response.SuccessNoCache(c, http.StatusOK, stats, "")
}

// GetInstructorDashboard returns the caller's assigned courses.
// GET /dashboard/instructor
func (h *Handler) GetInstructorDashboard(c *gin.Context) {
	currentUser, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	courses, err := InstructorCourses(h.db.WithContext(c.Request.Context()), currentUser.ID, h.now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{"courses": courses}, "")
}

// GetInstructorStudents returns the students of the caller's assigned courses
// with their progress. courseId and search narrow the list, not the totals.
// GET /dashboard/instructor/students
func (h *Handler) GetInstructorStudents(c *gin.Context) {
	currentUser, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	courseID, err := request.QueryUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	roster, err := InstructorStudents(h.db.WithContext(c.Request.Context()), currentUser.ID, h.now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}
	roster.Students = FilterRoster(roster.Students, courseID, c.Query("search"))

	response.SuccessNoCache(c, http.StatusOK, roster, "")
}

// GetStudentDashboard returns the caller's enrolled courses with progress.
// GET /dashboard/student
func (h *Handler) GetStudentDashboard(c *gin.Context) {
	currentUser, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	courses, err := StudentCourses(h.db.WithContext(c.Request.Context()), currentUser.ID, h.now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{"courses": courses}, "")
}

// GetCoursePage returns a course with the caller's status on each video.
// GET /dashboard/courses/:courseId
func (h *Handler) GetCoursePage(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	currentUser, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	allowed, err := h.viewer.CanViewCourse(c.Request.Context(), currentUser, courseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to check course access", err)
		return
	}
	if !allowed {
		response.Error(c, http.StatusForbidden, "You do not have access to this course.", nil)
		return
	}

	page, err := BuildCoursePage(h.db.WithContext(c.Request.Context()), currentUser.ID, courseID, h.now(), currentUser.IsStudent())
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) {
			response.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve course page", err)
		return
	}

	response.SuccessNoCache(c, http.StatusOK, page, "")
}

// GetSystemLogs returns the last N lines from info.log or error.log
// GET /dashboard/logs?type=info|error&lines=100
func (h *Handler) GetSystemLogs(c *gin.Context) {
	if h.logDir == "" {
		response.Error(c, http.StatusNotFound, "File logging is disabled", nil)
		return
	}

	logType := c.DefaultQuery("type", "info")
	if logType != "info" && logType != "error" {
		logType = "info"
	}

	lines, err := strconv.Atoi(c.DefaultQuery("lines", "100"))
	if err != nil {
		lines = 100
	}
	if lines < 10 {
		lines = 10
	}
	if lines > 1000 {
		lines = 1000
	}

	logFile := filepath.Join(h.logDir, fmt.Sprintf("%s.log", logType))
	file, err := os.Open(logFile)
	if os.IsNotExist(err) {
		response.Error(c, http.StatusNotFound, fmt.Sprintf("Log file not found: %s.log", logType), nil)
		return
	}
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to read log file", err)
		return
	}
	defer file.Close()

	// Keep a ring of the last N lines.
	tail := make([]string, 0, lines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(tail) == lines {
			tail = tail[1:]
		}
		tail = append(tail, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to read log file", err)
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{
		"type":  logType,
		"lines": len(tail),
		"log":   tail,
	}, "")
}

// ClearLogs truncates all log files in the log directory
// POST /dashboard/logs/clear
func (h *Handler) ClearLogs(c *gin.Context) {
	if h.logDir == "" {
		response.Error(c, http.StatusNotFound, "File logging is disabled", nil)
		return
	}

	files, err := os.ReadDir(h.logDir)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to read logs directory", err)
		return
	}

	cleared := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".log") {
			continue
		}
		if err := os.Truncate(filepath.Join(h.logDir, file.Name()), 0); err != nil {
			h.logger.Warn("Failed to clear log file", "file", file.Name(), "error", err)
			continue
		}
		cleared++
	}

	response.Success(c, http.StatusOK, gin.H{"cleared": cleared}, fmt.Sprintf("Cleared %d log files.", cleared), nil)
}

// GetSystemStats returns memory, CPU and disk statistics
// GET /dashboard/system-stats
func (h *Handler) GetSystemStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	root := "/"
	if runtime.GOOS == "windows" {
		root = "C:"
	}
	disk, err := diskUsage(root)
	if err != nil {
		h.logger.Warn("Failed to read disk usage", "path", root, "error", err)
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{
		"memory": gin.H{
			"total": m.Sys,
			"used":  m.Alloc,
			"free":  m.Sys - m.Alloc,
		},
		"cpu": gin.H{
			"numCPU":     runtime.NumCPU(),
			"goroutines": runtime.NumGoroutine(),
		},
		"disk": disk,
	}, "")
}

// DiskStats describes the filesystem holding path.
type DiskStats struct {
	Free uint64 `json:"free"`
	Size uint64 `json:"size"`
	Path string `json:"path"`
}
