package backfill

import "github.com/okian/hoopsrank/pkg/logger"

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Backfiller) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithDates restricts the run to the given dates instead of every stored date.
func WithDates(dates ...string) Option {
	return func(b *Backfiller) {
		b.dates = append([]string(nil), dates...)
	}
}
