package profile

import "errors"

var (
	ErrProfileNotFound   = errors.New("profile not found")
	ErrEmailTaken        = errors.New("email already exists")
	ErrInvalidEmail      = errors.New("a valid email is required")
	ErrInvalidPassword   = errors.New("password must be at least 8 characters")
	ErrFullNameRequired  = errors.New("full name is required")
	ErrInvalidRole       = errors.New("role must be admin, instructor or student")
	ErrCannotDeleteSelf  = errors.New("admins cannot delete their own account")
	ErrCannotDisableSelf = errors.New("admins cannot deactivate their own profile")
	ErrAccountNotFound   = errors.New("identity account not found")
	ErrProfileCreate     = errors.New("failed to create profile")
)
