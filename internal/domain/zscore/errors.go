package zscore

import "errors"

// Sentinel errors returned while validating or normalizing a source batch.
var (
	ErrInvalidSourceData = errors.New("invalid source data")
	ErrEmptyPopulation   = errors.New("empty population")
)
