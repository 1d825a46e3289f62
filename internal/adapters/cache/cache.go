// Package cache holds computed composite rankings between ingestion cycles.
//
// Entries are scoped to a generation. Invalidate starts a new generation, so
// every entry written before it becomes unreachable at once.
package cache

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/pkg/metrics"
)

// Cache stores composite rows by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]model.CompositeRankingRow, bool, error)
	Set(ctx context.Context, key string, rows []model.CompositeRankingRow) error
	// Invalidate drops every entry by advancing the generation.
	Invalidate(ctx context.Context) error
	Generation(ctx context.Context) (int64, error)
}

// Key builds the cache key for one date and subset signature.
func Key(date, subset string) string {
	return "composite:" + date + ":" + subset
}

type memEntry struct {
	gen     int64
	rows    []model.CompositeRankingRow
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	gen     int64
	ttl     time.Duration
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl never expires.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]model.CompositeRankingRow, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.gen != c.gen || (!e.expires.IsZero() && c.now().After(e.expires)) {
		metrics.RecordCacheMiss()
		return nil, false, nil
	}
	metrics.RecordCacheHit()
	out := make([]model.CompositeRankingRow, len(e.rows))
	copy(out, e.rows)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, rows []model.CompositeRankingRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{gen: c.gen, rows: make([]model.CompositeRankingRow, len(rows))}
	copy(e.rows, rows)
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]memEntry)
	return nil
}

func (c *MemoryCache) Generation(context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen, nil
}

// wireRow is the JSON form of a composite row. NaN travels as null.
type wireRow struct {
	Date          string   `json:"date"`
	Team          string   `json:"team"`
	Subset        string   `json:"subset"`
	Overall       *float64 `json:"overall"`
	Offensive     *float64 `json:"offensive"`
	Defensive     *float64 `json:"defensive"`
	OverallRank   int      `json:"overall_rank"`
	OffensiveRank int      `json:"offensive_rank"`
	DefensiveRank int      `json:"defensive_rank"`
}

func toWire(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fromWire(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func encode(rows []model.CompositeRankingRow) ([]byte, error) {
	out := make([]wireRow, len(rows))
	for i := range rows {
		r := &rows[i]
		out[i] = wireRow{
			Date: r.Date, Team: r.Team, Subset: r.Subset,
			Overall: toWire(r.Overall), Offensive: toWire(r.Offensive), Defensive: toWire(r.Defensive),
			OverallRank: r.OverallRank, OffensiveRank: r.OffensiveRank, DefensiveRank: r.DefensiveRank,
		}
	}
	return json.Marshal(out)
}

func decode(b []byte) ([]model.CompositeRankingRow, error) {
	var in []wireRow
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	out := make([]model.CompositeRankingRow, len(in))
	for i, w := range in {
		out[i] = model.CompositeRankingRow{
			Date: w.Date, Team: w.Team, Subset: w.Subset,
			Overall: fromWire(w.Overall), Offensive: fromWire(w.Offensive), Defensive: fromWire(w.Defensive),
			OverallRank: w.OverallRank, OffensiveRank: w.OffensiveRank, DefensiveRank: w.DefensiveRank,
		}
	}
	return out, nil
}
