package repository

import "errors"

// Sentinel errors for store lookups.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)
