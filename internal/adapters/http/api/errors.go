package api

import (
	"errors"
	"net/http"

	"github.com/okian/hoopsrank/internal/adapters/repository"
	"github.com/okian/hoopsrank/internal/app"
	"github.com/okian/hoopsrank/internal/domain/backfill"
	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/similarity"
	"github.com/okian/hoopsrank/internal/domain/zscore"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// Error tags an underlying error with the operation and kind it failed as.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// NewKind returns an Error of kind for op.
func NewKind(op string, kind error) error { return &Error{Op: op, Kind: kind} }

// WrapKind returns an Error of kind for op wrapping err.
func WrapKind(op string, kind, err error) error { return &Error{Op: op, Kind: kind, Err: err} }

// statusFor maps domain errors to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrNoData),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, similarity.ErrUnknownTeam):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, app.ErrIngestInProgress):
		return http.StatusConflict, "in_progress"
	case errors.Is(err, app.ErrQueueFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, app.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, backfill.ErrNoCompleteDates),
		errors.Is(err, similarity.ErrMissingField),
		errors.Is(err, similarity.ErrInvalidCeiling):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, app.ErrInvalidDate),
		errors.Is(err, app.ErrEmptyIngest),
		errors.Is(err, app.ErrUnknownCategory),
		errors.Is(err, catalog.ErrUnknownSource),
		errors.Is(err, catalog.ErrDuplicateSource),
		errors.Is(err, catalog.ErrEmptySubset),
		errors.Is(err, zscore.ErrInvalidSourceData),
		errors.Is(err, zscore.ErrEmptyPopulation),
		errors.Is(err, similarity.ErrInvalidCategory):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
