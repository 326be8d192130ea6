package request

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulavirtual/lms-server-go/pkg/apperrors"
)

// ParseRFC3339Ptr parses an optional RFC3339 timestamp string into a UTC *time.Time.
func ParseRFC3339Ptr(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// ReadTimePtr reads a nullable RFC3339 value from a decoded JSON body.
func ReadTimePtr(value interface{}) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("value is not a string")
	}
	return ParseRFC3339Ptr(&str)
}

// ReadString trims the input if it is a string and returns an error otherwise.
func ReadString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", fmt.Errorf("string is empty")
		}
		return trimmed, nil
	default:
		return "", fmt.Errorf("value is not a string")
	}
}

// ReadNullableString reads an optional text field. null and blank strings yield
// nil; any other non-string value is a validation error naming field.
func ReadNullableString(field string, value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	str, ok := value.(string)
	if !ok {
		return nil, apperrors.Validation(field+" must be a string").
			WithFields(map[string]string{field: "must be a string"})
	}
	trimmed := strings.TrimSpace(str)
	if trimmed == "" {
		return nil, nil
	}
	return &trimmed, nil
}

// ReadInt converts JSON numbers (float64) to int, rejecting fractions.
func ReadInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value is not an integer")
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("value is not a number")
	}
}

// ReadFloat converts JSON numbers to float64.
func ReadFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value is not a number")
	}
}

// ReadBool asserts that the value is a boolean.
func ReadBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("value is not a boolean")
	}
}

// ReadUUID parses a string JSON value into a UUID.
func ReadUUID(value interface{}) (uuid.UUID, error) {
	str, err := ReadString(value)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(str)
}

// ParamUUID parses a path parameter as a UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// QueryUUID parses an optional query parameter as a UUID. Missing values return nil.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
