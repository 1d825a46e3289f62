package similarity

import "github.com/okian/hoopsrank/pkg/logger"

// Option configures a Scorer.
type Option func(*Scorer)

// WithCeiling sets the rank normalization ceiling, normally the number of
// ranked teams.
func WithCeiling(ceiling float64) Option {
	return func(s *Scorer) { s.ceiling = ceiling }
}

// WithSignedFieldSpan sets the multiple of the ceiling that signed fields are
// divided by.
func WithSignedFieldSpan(span float64) Option {
	return func(s *Scorer) {
		if span > 0 {
			s.span = span
		}
	}
}

// WithMinScore sets the threshold below which candidates are discarded.
func WithMinScore(score int) Option {
	return func(s *Scorer) { s.minScore = score }
}

// WithSignedFields replaces the set of signed fields.
func WithSignedFields(fields ...string) Option {
	return func(s *Scorer) {
		s.signed = make(map[string]bool, len(fields))
		for _, f := range fields {
			s.signed[f] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}
