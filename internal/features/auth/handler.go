package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Handler processes authentication HTTP requests.
type Handler struct {
	db      *gorm.DB
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an auth handler.
func NewHandler(db *gorm.DB, service *Service, logger *slog.Logger) *Handler {
	return &Handler{db: db, service: service, logger: logger}
}

// Login authenticates a user and returns a session.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid login payload", err)
		return
	}

	authResp, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err, "login failed")
		return
	}

	h.logger.InfoContext(c.Request.Context(), "user logged in", "userId", authResp.User.ID, "role", authResp.User.Role)
	response.SuccessNoCache(c, http.StatusOK, authResp, "Login successful")
}

// RefreshToken exchanges a refresh token for a new session.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid refresh token payload", err)
		return
	}

	authResp, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err, "token refresh failed")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, authResp, "")
}

// Logout ends the caller's session.
func (h *Handler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "no access token provided", nil)
		return
	}

	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		h.respondError(c, err, "logout failed")
		return
	}

	response.Success(c, http.StatusOK, true, "Logout successful", nil)
}

// Me returns the profile of the authenticated caller.
func (h *Handler) Me(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	p, err := profile.Get(h.db.WithContext(c.Request.Context()), usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to load profile")
		return
	}

	response.SuccessNoCache(c, http.StatusOK, p, "")
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrMissingFields):
		status = http.StatusBadRequest
		message = "Missing required fields"
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = "Invalid email or password"
	case errors.Is(err, ErrInvalidToken):
		status = http.StatusUnauthorized
		message = "Invalid or expired token"
	case errors.Is(err, ErrProfileMissing):
		status = http.StatusUnauthorized
		message = "No profile exists for this account"
	case errors.Is(err, ErrInactiveAccount):
		status = http.StatusForbidden
		message = "Your account is inactive. Please contact an administrator"
	case errors.Is(err, profile.ErrProfileNotFound):
		status = http.StatusNotFound
		message = "Profile not found"
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
