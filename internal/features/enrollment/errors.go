package enrollment

import "errors"

var (
	ErrEnrollmentNotFound        = errors.New("enrollment not found")
	ErrDuplicateActiveEnrollment = errors.New("student already has an active enrollment in this course")
	ErrInvalidDuration           = errors.New("duration must be between 1 and 104 weeks")
	ErrNotStudent                = errors.New("enrollments can only be created for students")
	ErrStudentInactive           = errors.New("student account is inactive")
)
