package assignment

import "errors"

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAlreadyAssigned    = errors.New("instructor is already assigned to this course")
	ErrNotInstructor      = errors.New("only active instructors can be assigned to courses")
)
