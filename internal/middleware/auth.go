package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/pkg/cache"
	"github.com/aulavirtual/lms-server-go/pkg/logger"
	"github.com/aulavirtual/lms-server-go/pkg/response"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// CurrentUser is the profile of the caller, resolved once per request.
type CurrentUser struct {
	ID       uuid.UUID      `gorm:"column:id;primaryKey" json:"id"`
	Email    string         `gorm:"column:email" json:"email"`
	FullName string         `gorm:"column:full_name" json:"fullName"`
	Role     types.UserRole `gorm:"column:role" json:"role"`
	Active   bool           `gorm:"column:is_active" json:"isActive"`
}

// TableName specifies the table name for the CurrentUser model
func (CurrentUser) TableName() string {
	return "user_profiles"
}

func (u *CurrentUser) IsAdmin() bool      { return u.Role == types.RoleAdmin }
func (u *CurrentUser) IsInstructor() bool { return u.Role == types.RoleInstructor }
func (u *CurrentUser) IsStudent() bool    { return u.Role == types.RoleStudent }

// AuthMiddleware holds dependencies for authentication middleware
type AuthMiddleware struct {
	db       *gorm.DB
	provider identity.Provider
	logger   *slog.Logger
	cache    cache.Client
	cacheTTL time.Duration
}

// NewAuthMiddleware creates an auth middleware backed by provider.
func NewAuthMiddleware(db *gorm.DB, provider identity.Provider, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// WithSubjectCache caches verified subjects by token fingerprint for ttl.
// Useful when token verification is a network call.
func (m *AuthMiddleware) WithSubjectCache(store cache.Client, ttl time.Duration) *AuthMiddleware {
	m.cache = store
	m.cacheTTL = ttl
	return m
}

// AuthenticateToken resolves the bearer token into a CurrentUser.
func (m *AuthMiddleware) AuthenticateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.ensureAuthenticated(c); !ok {
			return
		}
		c.Next()
	}
}

// AuthorizeRoles checks if user has one of the allowed roles.
func (m *AuthMiddleware) AuthorizeRoles(roles ...types.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		usr, ok := GetUserFromContext(c)
		if !ok {
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
			c.Abort()
			return
		}

		for _, role := range roles {
			if usr.Role == role {
				c.Next()
				return
			}
		}

		response.ErrorWithLog(m.logger, c, http.StatusForbidden, "Access denied: Insufficient permissions.", nil)
		c.Abort()
	}
}

// RequireRoles authenticates and then restricts the route to roles.
func (m *AuthMiddleware) RequireRoles(roles ...types.UserRole) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.AuthenticateToken(),
		m.AuthorizeRoles(roles...),
	}
}

// Authenticated allows any active profile.
func (m *AuthMiddleware) Authenticated() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.AuthenticateToken()}
}

// GetUserFromContext retrieves the authenticated user from the Gin context.
func GetUserFromContext(c *gin.Context) (*CurrentUser, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		return nil, false
	}

	usr, ok := userVal.(*CurrentUser)
	return usr, ok && usr != nil
}

type userCtxKey struct{}

// WithUser stores usr on ctx.
func WithUser(ctx context.Context, usr *CurrentUser) context.Context {
	return context.WithValue(ctx, userCtxKey{}, usr)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*CurrentUser, bool) {
	usr, ok := ctx.Value(userCtxKey{}).(*CurrentUser)
	return usr, ok && usr != nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func (m *AuthMiddleware) ensureAuthenticated(c *gin.Context) (*CurrentUser, bool) {
	if usr, ok := GetUserFromContext(c); ok {
		return usr, true
	}

	token, ok := BearerToken(c)
	if !ok {
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "No token provided", nil)
		c.Abort()
		return nil, false
	}

	ctx := c.Request.Context()
	subject, err := m.verify(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrExpiredToken):
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Token expired", err)
		case errors.Is(err, identity.ErrInvalidToken):
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Invalid token", err)
		default:
			response.ErrorWithLog(m.logger, c, http.StatusServiceUnavailable, "Authentication service unavailable", err)
		}
		c.Abort()
		return nil, false
	}

	var usr CurrentUser
	if err := m.db.WithContext(ctx).First(&usr, "id = ?", subject.ID).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "No profile exists for this account", err)
		default:
			response.ErrorWithLog(m.logger, c, http.StatusInternalServerError, "Internal Server Error", err)
		}
		c.Abort()
		return nil, false
	}

	if !usr.Active {
		response.ErrorWithLog(m.logger, c, http.StatusForbidden, "Account is inactive", nil)
		c.Abort()
		return nil, false
	}

	c.Set("user", &usr)
	c.Set("userId", usr.ID)
	ctx = logger.AppendCtx(WithUser(ctx, &usr), slog.String("user_id", usr.ID.String()))
	c.Request = c.Request.WithContext(ctx)
	return &usr, true
}

func (m *AuthMiddleware) verify(ctx context.Context, token string) (identity.Subject, error) {
	if m.cache == nil {
		return m.provider.VerifyAccessToken(ctx, token)
	}

	sum := sha256.Sum256([]byte(token))
	key := "auth:subject:" + hex.EncodeToString(sum[:])

	var subject identity.Subject
	if err := cache.GetJSON(ctx, m.cache, key, &subject); err == nil && subject.ID != uuid.Nil {
		return subject, nil
	}

	subject, err := m.provider.VerifyAccessToken(ctx, token)
	if err != nil {
		return subject, err
	}
	if err := cache.SetJSON(ctx, m.cache, key, subject, m.cacheTTL); err != nil {
		m.logger.WarnContext(ctx, "failed to cache verified subject", "error", err)
	}
	return subject, nil
}
