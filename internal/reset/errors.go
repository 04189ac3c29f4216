package reset

import "errors"

var (
	// ErrNotFound is returned by Store implementations for missing rows.
	ErrNotFound = errors.New("reset: not found")

	ErrMissingData      = errors.New("reset: missing token or password")
	ErrPasswordTooShort = errors.New("reset: password below minimum length")
	ErrInvalidToken     = errors.New("reset: invalid token")
	ErrTokenExpired     = errors.New("reset: token expired")
	ErrTokenUsed        = errors.New("reset: token already used")
	ErrUserGone         = errors.New("reset: user no longer exists")
)
