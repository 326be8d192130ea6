package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/aulavirtual/lms-server-go/pkg/apperrors"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// Recovery turns panics into a 500 envelope and logs the stack.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.ErrorContext(c.Request.Context(),
					"panic recovered",
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("client_ip", c.ClientIP()),
					slog.Any("error", err),
					slog.String("stack", string(debug.Stack())),
				)

				response.Error(c, http.StatusInternalServerError, "Internal server error", response.ErrorBody{Code: apperrors.ErrInternal})
				c.Abort()
			}
		}()

		c.Next()
	}
}
