package repository

import "errors"

// Sentinel kinds for progress store errors.
var (
	ErrNotFound = errors.New("user not found")
)
