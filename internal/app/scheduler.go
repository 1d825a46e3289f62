package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/hoopsrank/internal/adapters/acquire"
	"github.com/okian/hoopsrank/internal/domain/backfill"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/pkg/logger"
)

// refreshTimeout bounds a single scheduled fetch-ingest-backfill run.
const refreshTimeout = 10 * time.Minute

// Scheduler runs the daily refresh: fetch every source for today, ingest the
// batches, then backfill that date.
type Scheduler struct {
	svc     *Service
	fetcher acquire.Fetcher
	cron    *cron.Cron
	now     func() time.Time
	logger  logger.Logger
}

// NewScheduler registers the refresh job on spec, a standard five-field cron
// expression.
func NewScheduler(svc *Service, fetcher acquire.Fetcher, spec string) (*Scheduler, error) {
	s := &Scheduler{
		svc:     svc,
		fetcher: fetcher,
		now:     time.Now,
		logger:  logger.Get().Named("scheduler"),
	}
	cl := cronLogger{l: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "refresh scheduler started",
		logger.Int("jobs", len(s.cron.Entries())),
	)
}

// Stop halts the schedule and waits for a running job until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	date := s.now().Format(model.DateLayout)
	if _, _, err := s.Refresh(ctx, date); err != nil {
		s.logger.Error(ctx, "scheduled refresh failed", logger.String("date", date), logger.Error(err))
	}
}

// Refresh fetches, ingests and backfills one date. Sources that cannot be
// fetched are skipped; the backfill only covers the date once every source
// has data for it.
func (s *Scheduler) Refresh(ctx context.Context, date string) (IngestReport, backfill.Report, error) {
	batches := make(map[string][]model.RawRow)
	var fetchErrs []error
	for _, key := range s.svc.Catalog().Keys() {
		rows, err := s.fetcher.Fetch(ctx, key, date)
		if err != nil {
			s.logger.Warn(ctx, "source fetch failed", logger.String("source", key), logger.Error(err))
			fetchErrs = append(fetchErrs, err)
			continue
		}
		batches[key] = rows
	}
	if len(batches) == 0 {
		return IngestReport{}, backfill.Report{}, fmt.Errorf("nothing fetched for %s: %w", date, errors.Join(fetchErrs...))
	}

	ingest, err := s.svc.Ingest(ctx, date, batches)
	if err != nil {
		return ingest, backfill.Report{}, err
	}
	bf, err := s.svc.Backfill(ctx, date)
	if errors.Is(err, backfill.ErrNoCompleteDates) {
		s.logger.Info(ctx, "date incomplete, backfill deferred",
			logger.String("date", date),
			logger.Int("fetched", len(batches)),
		)
		return ingest, bf, nil
	}
	return ingest, bf, err
}

// cronLogger routes cron's key-value logging into the service logger.
type cronLogger struct {
	l logger.Logger
}

func fields(keysAndValues []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}
