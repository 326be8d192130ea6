package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aulavirtual/lms-server-go/pkg/apperrors"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// SecurityHeaders adds the headers a JSON API needs. Responses under /api are never cached.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if gin.Mode() == gin.ReleaseMode {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}

		c.Next()
	}
}

// RequestSizeLimit limits the size of request bodies.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, "The request body exceeds the maximum allowed size", response.ErrorBody{Code: apperrors.ErrTooLarge})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		c.Next()
	}
}

// RouteSizeLimit applies RequestSizeLimit with a per-route override. Routes
// are keyed by method and gin full path, e.g. "POST /api/courses/:courseId/videos".
func RouteSizeLimit(defaultMax int64, overrides map[string]int64) gin.HandlerFunc {
	standard := RequestSizeLimit(defaultMax)
	limits := make(map[string]gin.HandlerFunc, len(overrides))
	for route, maxBytes := range overrides {
		limits[route] = RequestSizeLimit(maxBytes)
	}

	return func(c *gin.Context) {
		if limit, ok := limits[c.Request.Method+" "+c.FullPath()]; ok {
			limit(c)
			return
		}
		standard(c)
	}
}
