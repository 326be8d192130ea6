package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulavirtual/lms-server-go/pkg/apperrors"
)

// Envelope represents the standard API response shape.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      interface{} `json:"error,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
}

// ErrorBody is the machine readable part of an error envelope.
type ErrorBody struct {
	Code   apperrors.ErrorCode `json:"code"`
	Fields map[string]string   `json:"fields,omitempty"`
}

// Success writes a success response with optional message and data.
func Success(c *gin.Context, status int, data interface{}, message string, pagination interface{}) {
	c.JSON(status, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// SuccessNoCache sends a successful JSON response that intermediaries must not store.
func SuccessNoCache(c *gin.Context, status int, data interface{}, message string) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	Success(c, status, data, message, nil)
}

// Created is a convenience helper for POST 201 responses.
func Created(c *gin.Context, data interface{}, message string) {
	Success(c, http.StatusCreated, data, message, nil)
}

// Error writes an error response capturing the message and optional error payload.
func Error(c *gin.Context, status int, message string, err interface{}) {
	c.JSON(status, Envelope{
		Success: false,
		Message: message,
		Error:   err,
	})
}

// ErrorWithLog writes an error response and logs the error via slog.
// Server errors log at error level, client errors at debug.
func ErrorWithLog(logger *slog.Logger, c *gin.Context, status int, message string, err error) {
	if logger != nil && err != nil {
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, message,
			slog.Int("status", status),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}

	Error(c, status, message, bodyFor(status, err))
}

func bodyFor(status int, err error) ErrorBody {
	body := ErrorBody{Code: apperrors.CodeForStatus(status)}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code()
		body.Fields = appErr.Fields()
	}
	return body
}
