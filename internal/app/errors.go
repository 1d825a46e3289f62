package app

import "errors"

// Sentinel errors returned by Service operations.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrIngestInProgress = errors.New("ingestion already in progress for source and date")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyIngest      = errors.New("no batches to ingest")
	ErrQueueFull        = errors.New("ingestion queue full")
	ErrNoData           = errors.New("no ranking data")
	ErrUnknownCategory  = errors.New("unknown similarity category")
)
