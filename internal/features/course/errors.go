package course

import "errors"

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrNameRequired   = errors.New("course name is required")
	ErrCodeRequired   = errors.New("course code is required")
	ErrCodeTaken      = errors.New("a course with this code already exists")
	ErrInvalidCycle   = errors.New("cycle must be 1 or 2")
	ErrInvalidCredits = errors.New("credits must be between 0 and 30")
	ErrInvalidColor   = errors.New("color must be a hex value such as #3B82F6")
	ErrCourseInUse    = errors.New("course still has videos or enrollments")
)
