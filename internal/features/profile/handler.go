package profile

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/pagination"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/response"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// Handler processes profile and privileged user HTTP requests.
type Handler struct {
	db      *gorm.DB
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a profile handler instance.
func NewHandler(db *gorm.DB, service *Service, logger *slog.Logger) *Handler {
	return &Handler{db: db, service: service, logger: logger}
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// CreateUser provisions an identity account and its profile.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "email, password, fullName and role are required", err)
		return
	}

	p, err := h.service.CreateUser(c.Request.Context(), CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		h.respondError(c, err, "failed to create user")
		return
	}

	response.Created(c, p, "User created successfully.")
}

type deleteUserRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// DeleteUser removes the identity account of a user.
func (h *Handler) DeleteUser(c *gin.Context) {
	var req deleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "userId is required", err)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	var requesterID uuid.UUID
	if requester, ok := middleware.GetUserFromContext(c); ok {
		requesterID = requester.ID
	}
	if err := h.service.DeleteUser(c.Request.Context(), requesterID, userID); err != nil {
		h.respondError(c, err, "failed to delete user")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"userId": userID}, "User deleted successfully.", nil)
}

// List returns paginated profiles.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	filters := ListFilters{Keyword: c.Query("filterKeyword")}

	if value := c.Query("role"); value != "" {
		role, err := types.ParseUserRole(value)
		if err != nil {
			h.respondError(c, ErrInvalidRole, "invalid role")
			return
		}
		filters.Role = &role
	}
	if value := c.Query("active"); value != "" {
		active := value == "true"
		filters.Active = &active
	}

	profiles, total, err := List(h.db.WithContext(c.Request.Context()), filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list profiles", err)
		return
	}

	response.Success(c, http.StatusOK, profiles, "", pagination.MetadataFrom(total, params))
}

// GetByID fetches a single profile.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := request.ParamUUID(c, "profileId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid profile id", err)
		return
	}

	p, err := Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, p, "", nil)
}

// Update changes the full name of a profile.
func (h *Handler) Update(c *gin.Context) {
	id, err := request.ParamUUID(c, "profileId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid profile id", err)
		return
	}

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid profile payload", err)
		return
	}

	if _, ok := body["role"]; ok {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "role cannot be changed", nil)
		return
	}

	fullName, err := request.ReadString(body["fullName"])
	if err != nil {
		h.respondError(c, ErrFullNameRequired, "invalid full name")
		return
	}

	p, err := UpdateName(h.db.WithContext(c.Request.Context()), id, fullName)
	if err != nil {
		h.respondError(c, err, "failed to update profile")
		return
	}

	response.Success(c, http.StatusOK, p, "", nil)
}

// ToggleActive flips the active flag of a profile.
func (h *Handler) ToggleActive(c *gin.Context) {
	id, err := request.ParamUUID(c, "profileId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid profile id", err)
		return
	}

	requester, _ := middleware.GetUserFromContext(c)
	if requester != nil && requester.ID == id {
		h.respondError(c, ErrCannotDisableSelf, "")
		return
	}

	db := h.db.WithContext(c.Request.Context())
	current, err := Get(db, id)
	if err != nil {
		h.respondError(c, err, "failed to load profile")
		return
	}

	p, err := SetActive(db, id, !current.Active)
	if err != nil {
		h.respondError(c, err, "failed to update profile")
		return
	}

	response.Success(c, http.StatusOK, p, "", nil)
}

// Delete removes a profile row.
func (h *Handler) Delete(c *gin.Context) {
	id, err := request.ParamUUID(c, "profileId")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid profile id", err)
		return
	}

	requester, _ := middleware.GetUserFromContext(c)
	if requester != nil && requester.ID == id {
		h.respondError(c, ErrCannotDeleteSelf, "")
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), id); err != nil {
		h.respondError(c, err, "failed to delete profile")
		return
	}

	response.Success(c, http.StatusOK, nil, "Profile deleted successfully.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrProfileNotFound):
		status = http.StatusNotFound
		message = "Profile not found."
	case errors.Is(err, ErrAccountNotFound):
		status = http.StatusNotFound
		message = "User not found."
	case errors.Is(err, ErrEmailTaken):
		status = http.StatusConflict
		message = "A user with this email already exists."
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrFullNameRequired),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrCannotDeleteSelf),
		errors.Is(err, ErrCannotDisableSelf):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, ErrProfileCreate):
		message = "Failed to create user profile."
	default:
		status, message = request.StatusFor(err, fallback)
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
