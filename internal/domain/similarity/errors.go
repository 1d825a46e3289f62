package similarity

import "errors"

// Sentinel errors for similarity scoring.
var (
	ErrInvalidCategory = errors.New("invalid similarity category")
	ErrInvalidCeiling  = errors.New("normalization ceiling must be positive")
	ErrUnknownTeam     = errors.New("unknown team")
	ErrMissingField    = errors.New("target is missing a weighted field")
)
