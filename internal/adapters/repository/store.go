// Package repository persists per-source metric rows and composite rankings
// with upsert semantics keyed by their identity tuples.
package repository

import (
	"context"

	"github.com/okian/hoopsrank/internal/domain/model"
)

// Stats summarizes what a store holds.
type Stats struct {
	MetricRows    int `json:"metric_rows"`
	CompositeRows int `json:"composite_rows"`
	Dates         int `json:"dates"`
}

// Store provides read/write access to ranking state. Writes never append a
// second row for an existing key; they overwrite every derived field.
type Store interface {
	// UpsertMetricRows writes rows keyed by (date, team, source).
	UpsertMetricRows(ctx context.Context, rows []model.TeamMetricRow) error
	// MetricRows returns every source's rows for date, ordered by source then team.
	MetricRows(ctx context.Context, date string) ([]model.TeamMetricRow, error)
	// Dates returns every date with metric rows, ascending.
	Dates(ctx context.Context) ([]string, error)
	// LatestDate returns the most recent date, or ErrNotFound.
	LatestDate(ctx context.Context) (string, error)

	// UpsertComposite writes rows keyed by (date, team, subset) in one batch.
	UpsertComposite(ctx context.Context, rows []model.CompositeRankingRow) error
	// Composite returns one subset's rows for date ordered by overall rank,
	// or ErrNotFound when nothing was backfilled.
	Composite(ctx context.Context, date, subset string) ([]model.CompositeRankingRow, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
