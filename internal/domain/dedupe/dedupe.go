// Package dedupe tracks which ingestion keys are currently in flight so the
// same source and date are never processed twice at once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records keys to ensure at-most-once concurrent processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key is recorded and records it if not.
	// Returns true if key was already recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key, typically once its job finished or failed.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key builds the ingestion key for a source and date.
func Key(source, date string) string {
	return source + "@" + date
}

// inMemoryDeduper implements Deduper with a map. When maxSize is positive and
// reached, new keys are refused as if already recorded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{seen: make(map[string]struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
