package identity

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)
