// Package backfill precomputes composite rankings for every non-empty source
// subset over every historical date that has data from all sources.
package backfill

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/composite"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/tracing"
	"github.com/okian/hoopsrank/pkg/logger"
	"github.com/okian/hoopsrank/pkg/metrics"
)

// Reader supplies stored per-source metric rows.
type Reader interface {
	Dates(ctx context.Context) ([]string, error)
	MetricRows(ctx context.Context, date string) ([]model.TeamMetricRow, error)
}

// Writer persists composite rows with upsert semantics.
type Writer interface {
	UpsertComposite(ctx context.Context, rows []model.CompositeRankingRow) error
}

// Report summarizes one run.
type Report struct {
	RunID    string        `json:"run_id"`
	Dates    []string      `json:"dates"`
	Skipped  []string      `json:"skipped"`
	Subsets  int           `json:"subsets"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// Backfiller runs the power-set precomputation.
type Backfiller struct {
	catalog *catalog.Catalog
	reader  Reader
	writer  Writer
	logger  logger.Logger
	dates   []string
}

// New creates a Backfiller over cat.
func New(cat *catalog.Catalog, r Reader, w Writer, opts ...Option) *Backfiller {
	b := &Backfiller{
		catalog: cat,
		reader:  r,
		writer:  w,
		logger:  logger.Get().Named("backfill"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run stages every (date, team, subset) row in memory and writes them with a
// single bulk upsert. Re-running is safe because every write is an upsert.
func (b *Backfiller) Run(ctx context.Context) (report Report, err error) {
	start := time.Now()
	report.RunID = uuid.NewString()

	ctx, end := tracing.StartSpan(ctx, "backfill.run", attribute.String("run_id", report.RunID))
	defer func() {
		end(err)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		report.Duration = time.Since(start)
		metrics.RecordBackfillRun(outcome, float64(report.Duration.Milliseconds()))
	}()

	dates := b.dates
	if len(dates) == 0 {
		if dates, err = b.reader.Dates(ctx); err != nil {
			return report, fmt.Errorf("list dates: %w", err)
		}
	}
	sort.Strings(dates)

	subsets := b.catalog.PowerSet()
	report.Subsets = len(subsets)
	metrics.UpdateBackfillSubsets(len(subsets))

	staged := make(map[model.CompositeKey]model.CompositeRankingRow)
	for _, date := range dates {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		rows, rerr := b.reader.MetricRows(ctx, date)
		if rerr != nil {
			err = fmt.Errorf("load %s: %w", date, rerr)
			return report, err
		}
		if missing := b.missingSources(rows); len(missing) > 0 {
			report.Skipped = append(report.Skipped, date)
			metrics.RecordBackfillSkippedDate()
			tracing.AddEvent(ctx, "date_skipped", attribute.String("date", date))
			b.logger.Warn(ctx, "skipping incomplete date",
				logger.String("date", date),
				logger.Strings("missing", missing),
			)
			continue
		}

		pop := composite.Population(rows)
		for _, s := range subsets {
			for _, r := range composite.Aggregate(date, pop, s) {
				staged[r.Key()] = r
			}
		}
		report.Dates = append(report.Dates, date)
	}

	if len(report.Dates) == 0 {
		err = ErrNoCompleteDates
		return report, err
	}

	batch := make([]model.CompositeRankingRow, 0, len(staged))
	for _, r := range staged {
		batch = append(batch, r)
	}
	sort.Slice(batch, func(i, j int) bool {
		a, c := batch[i], batch[j]
		if a.Date != c.Date {
			return a.Date < c.Date
		}
		if a.Subset != c.Subset {
			return a.Subset < c.Subset
		}
		return a.Team < c.Team
	})

	if err = b.writer.UpsertComposite(ctx, batch); err != nil {
		err = fmt.Errorf("upsert composite rows: %w", err)
		return report, err
	}
	report.Rows = len(batch)
	metrics.RecordBackfillRows(len(batch))
	tracing.SetAttributes(ctx, attribute.Int("rows", len(batch)), attribute.Int("dates", len(report.Dates)))

	b.logger.Info(ctx, "backfill complete",
		logger.String("run_id", report.RunID),
		logger.Int("dates", len(report.Dates)),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("subsets", report.Subsets),
		logger.Int("rows", report.Rows),
	)
	return report, nil
}

func (b *Backfiller) missingSources(rows []model.TeamMetricRow) []string {
	present := make(map[string]bool, b.catalog.Len())
	for _, r := range rows {
		present[r.Source] = true
	}
	var missing []string
	for _, key := range b.catalog.Keys() {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	return missing
}
