package app

import (
	"github.com/okian/hoopsrank/internal/adapters/cache"
	"github.com/okian/hoopsrank/internal/adapters/repository"
	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCatalog replaces the default four-source catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithStore sets the persistence layer. The service closes it on Stop.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithCache sets the composite cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWorkerCount sets the number of normalization workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued source jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCategories sets the named similarity categories.
func WithCategories(cats []model.Category) Option {
	return func(s *Service) {
		if len(cats) > 0 {
			s.categories = cats
		}
	}
}

// WithSimilarityMinScore sets the threshold for similarity matches.
func WithSimilarityMinScore(score int) Option {
	return func(s *Service) { s.minScore = score }
}

// WithSimilarityCeiling fixes the rank normalization ceiling. Zero derives it
// from the number of ranked teams.
func WithSimilarityCeiling(ceiling int) Option {
	return func(s *Service) {
		if ceiling >= 0 {
			s.ceiling = ceiling
		}
	}
}

// WithSignedFieldSpan sets the divisor multiple used for offDefDiff.
func WithSignedFieldSpan(span float64) Option {
	return func(s *Service) {
		if span > 0 {
			s.span = span
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
