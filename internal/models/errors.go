package models

import "errors"

// Expected outcomes of core operations. Storage wraps these with detail,
// so match with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrNotFound             = errors.New("not found")
	ErrAuthenticationFailed = errors.New("invalid username or password")
)
