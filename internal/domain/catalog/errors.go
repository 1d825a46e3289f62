package catalog

import "errors"

// Sentinel errors for catalog construction and subset parsing.
var (
	ErrEmptyCatalog    = errors.New("catalog has no sources")
	ErrCatalogTooLarge = errors.New("catalog too large for power-set precomputation")
	ErrInvalidSource   = errors.New("invalid source descriptor")
	ErrDuplicateSource = errors.New("duplicate source")
	ErrUnknownSource   = errors.New("unknown source")
	ErrEmptySubset     = errors.New("subset must not be empty")
)
