package auth

import "errors"

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrProfileMissing     = errors.New("no profile exists for this account")
	ErrInactiveAccount    = errors.New("your account is inactive. Please contact an administrator")
)
