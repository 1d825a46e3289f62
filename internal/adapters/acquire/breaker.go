package acquire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/pkg/logger"
)

const defaultTripAfter = 3

// BreakerFetcher guards each source with its own circuit breaker so a failing
// upstream stops being hit until its timeout elapses.
type BreakerFetcher struct {
	next     Fetcher
	settings gobreaker.Settings
	logger   logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerFetcher wraps next. maxRequests is the number of trial calls
// allowed while half-open; timeout is how long a tripped breaker stays open.
func NewBreakerFetcher(next Fetcher, maxRequests uint32, timeout time.Duration) *BreakerFetcher {
	b := &BreakerFetcher{
		next:     next,
		logger:   logger.Get().Named("acquire"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	b.settings = gobreaker.Settings{
		MaxRequests: maxRequests,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("source", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	}
	return b
}

func (b *BreakerFetcher) breaker(source string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[source]
	if !ok {
		s := b.settings
		s.Name = source
		cb = gobreaker.NewCircuitBreaker(s)
		b.breakers[source] = cb
	}
	return cb
}

func (b *BreakerFetcher) Fetch(ctx context.Context, source, date string) ([]model.RawRow, error) {
	out, err := b.breaker(source).Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, source, date)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	return out.([]model.RawRow), nil
}

// State reports the breaker state for source.
func (b *BreakerFetcher) State(source string) gobreaker.State {
	return b.breaker(source).State()
}
