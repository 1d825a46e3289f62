package backfill

import "errors"

// ErrNoCompleteDates is returned when no candidate date has data from every source.
var ErrNoCompleteDates = errors.New("no date has data from every source")
