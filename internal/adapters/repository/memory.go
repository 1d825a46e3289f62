package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/hoopsrank/internal/domain/model"
)

// MemoryStore is an in-process Store keyed by the canonical identity tuples.
type MemoryStore struct {
	mu        sync.RWMutex
	metrics   map[model.MetricKey]model.TeamMetricRow
	composite map[model.CompositeKey]model.CompositeRankingRow
	closed    bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metrics:   make(map[model.MetricKey]model.TeamMetricRow),
		composite: make(map[model.CompositeKey]model.CompositeRankingRow),
	}
}

// cloneMetric detaches the optional dimension pointers from the caller's row.
func cloneMetric(r model.TeamMetricRow) model.TeamMetricRow { //nolint:gocritic // hugeParam: value copy is the point
	if r.Offensive != nil {
		o := *r.Offensive
		r.Offensive = &o
	}
	if r.Defensive != nil {
		d := *r.Defensive
		r.Defensive = &d
	}
	return r
}

func (s *MemoryStore) UpsertMetricRows(_ context.Context, rows []model.TeamMetricRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range rows {
		s.metrics[model.MetricKey{Date: r.Date, Team: r.Team, Source: r.Source}] = cloneMetric(r)
	}
	return nil
}

func (s *MemoryStore) MetricRows(_ context.Context, date string) ([]model.TeamMetricRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []model.TeamMetricRow
	for k, r := range s.metrics {
		if k.Date == date {
			out = append(out, cloneMetric(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Team < out[j].Team
	})
	return out, nil
}

func (s *MemoryStore) Dates(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.datesLocked(), nil
}

func (s *MemoryStore) datesLocked() []string {
	seen := make(map[string]struct{})
	for k := range s.metrics {
		seen[k.Date] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) LatestDate(ctx context.Context) (string, error) {
	dates, err := s.Dates(ctx)
	if err != nil {
		return "", err
	}
	if len(dates) == 0 {
		return "", ErrNotFound
	}
	return dates[len(dates)-1], nil
}

func (s *MemoryStore) UpsertComposite(_ context.Context, rows []model.CompositeRankingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range rows {
		s.composite[r.Key()] = r
	}
	return nil
}

func (s *MemoryStore) Composite(_ context.Context, date, subset string) ([]model.CompositeRankingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []model.CompositeRankingRow
	for k, r := range s.composite {
		if k.Date == date && k.Subset == subset {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OverallRank != out[j].OverallRank {
			return out[i].OverallRank < out[j].OverallRank
		}
		return out[i].Team < out[j].Team
	})
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		MetricRows:    len(s.metrics),
		CompositeRows: len(s.composite),
		Dates:         len(s.datesLocked()),
	}, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
