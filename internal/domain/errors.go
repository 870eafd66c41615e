package domain

import "errors"

// Domain errors - use these for consistent error handling
var (
	ErrUserNotFound = errors.New("user not found")
)
