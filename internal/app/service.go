// Package app wires the ranking domain to storage, caching and the ingestion
// worker pool, and exposes the operations the HTTP API serves.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hoopsrank/internal/adapters/cache"
	"github.com/okian/hoopsrank/internal/adapters/mq/queue"
	"github.com/okian/hoopsrank/internal/adapters/mq/worker"
	"github.com/okian/hoopsrank/internal/adapters/repository"
	"github.com/okian/hoopsrank/internal/domain/backfill"
	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/composite"
	"github.com/okian/hoopsrank/internal/domain/dedupe"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/rerank"
	"github.com/okian/hoopsrank/internal/domain/similarity"
	"github.com/okian/hoopsrank/internal/domain/zscore"
	"github.com/okian/hoopsrank/internal/tracing"
	"github.com/okian/hoopsrank/pkg/logger"
	"github.com/okian/hoopsrank/pkg/metrics"
)

// SourceReport is the outcome of one source within an ingestion cycle.
type SourceReport struct {
	Source     string            `json:"source"`
	Rows       int               `json:"rows"`
	Degenerate []model.Dimension `json:"degenerate,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// IngestReport summarizes one ingestion cycle.
type IngestReport struct {
	RunID   string         `json:"run_id"`
	Date    string         `json:"date"`
	Sources []SourceReport `json:"sources"`
}

// SimilarityQuery selects a target team and the categories to score under.
// Custom categories are scored alongside named ones.
type SimilarityQuery struct {
	Date       string           `json:"date,omitempty"`
	Team       string           `json:"team"`
	Categories []string         `json:"categories,omitempty"`
	Custom     []model.Category `json:"custom,omitempty"`
}

// SimilarityResult holds matches per category.
type SimilarityResult struct {
	Date    string                        `json:"date"`
	Team    string                        `json:"team"`
	Ceiling float64                       `json:"ceiling"`
	Matches map[string][]similarity.Match `json:"matches"`
}

// Service implements the API dependencies for the ranking system.
type Service struct {
	mu sync.RWMutex

	catalog  *catalog.Catalog
	store    repository.Store
	cache    cache.Cache
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	reranker *rerank.Reranker

	workerCount int
	queueSize   int
	categories  []model.Category
	minScore    int
	ceiling     int
	span        float64

	started bool
	logger  logger.Logger
}

// New constructs a Service. Components not supplied by options default to
// in-process implementations.
func New(opts ...Option) *Service {
	s := &Service{
		catalog:     catalog.Default(),
		workerCount: runtime.NumCPU(),
		queueSize:   64,
		categories:  similarity.DefaultCategories(),
		minScore:    similarity.DefaultMinScore,
		span:        similarity.DefaultSignedFieldSpan,
		logger:      logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryCache(0)
	}
	s.reranker = rerank.ForCatalog(s.catalog)
	return s
}

// Catalog returns the source catalog the service ranks over.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Start creates the queue and starts the worker pool. Workers live until ctx
// ends or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper()
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, catalogNormalizer{catalog: s.catalog}, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Strings("sources", s.catalog.Keys()),
	)
	return nil
}

// Stop drains the worker pool and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping ranking service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
	return errors.Join(errs...)
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func validDate(date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// Ingest runs one ingestion cycle for date. Every batch is validated before
// any is queued, so one corrupt row rejects the whole cycle. Sources are then
// normalized concurrently by the worker pool and the composite cache is
// invalidated once any source was written.
func (s *Service) Ingest(ctx context.Context, date string, batches map[string][]model.RawRow) (report IngestReport, err error) {
	if !s.isStarted() {
		return IngestReport{}, ErrNotStarted
	}
	if err := validDate(date); err != nil {
		return IngestReport{}, err
	}
	if len(batches) == 0 {
		return IngestReport{}, ErrEmptyIngest
	}

	report = IngestReport{RunID: uuid.NewString(), Date: date}
	ctx, end := tracing.StartSpan(ctx, "ingest.cycle",
		attribute.String("run_id", report.RunID),
		attribute.String("date", date),
		attribute.Int("sources", len(batches)),
	)
	defer func() { end(err) }()

	// Resolve and validate everything up front.
	sources := make([]catalog.SourceSystem, 0, len(batches))
	rows := make(map[string][]model.RawRow, len(batches))
	for key, batch := range batches {
		src, ok := s.catalog.Lookup(key)
		if !ok {
			metrics.RecordIngestFailure("unknown_source")
			return report, fmt.Errorf("%w: %q", catalog.ErrUnknownSource, key)
		}
		if _, dup := rows[src.Key]; dup {
			return report, fmt.Errorf("%w: %q", catalog.ErrDuplicateSource, key)
		}
		if err := zscore.Validate(batch, zscore.Keys(src)); err != nil {
			metrics.RecordIngestFailure("invalid_data")
			return report, fmt.Errorf("%s: %w", src.Key, err)
		}
		sources = append(sources, src)
		rows[src.Key] = batch
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Key < sources[j].Key })

	var claimed []string
	defer func() {
		for _, k := range claimed {
			s.deduper.Unrecord(ctx, k)
		}
	}()
	for _, src := range sources {
		k := dedupe.Key(src.Key, date)
		if s.deduper.SeenAndRecord(ctx, k) {
			metrics.RecordIngestFailure("in_progress")
			return report, fmt.Errorf("%w: %s", ErrIngestInProgress, k)
		}
		claimed = append(claimed, k)
	}

	done := make(chan queue.Result, len(sources))
	enqueued := 0
	var enqueueErr error
	for _, src := range sources {
		job := queue.Job{ID: uuid.NewString(), Date: date, Source: src.Key, Rows: rows[src.Key], Done: done}
		if !s.queue.Enqueue(ctx, job) {
			enqueueErr = fmt.Errorf("%w: %s", ErrQueueFull, src.Key)
			report.Sources = append(report.Sources, SourceReport{Source: src.Key, Error: enqueueErr.Error()})
			break
		}
		enqueued++
	}

	errs := []error{enqueueErr}
	written := 0
	for i := 0; i < enqueued; i++ {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case res := <-done:
			sr := SourceReport{Source: res.Source, Rows: res.Rows, Degenerate: res.Degenerate}
			if res.Err != nil {
				sr.Error = res.Err.Error()
				errs = append(errs, res.Err)
			} else {
				written++
			}
			report.Sources = append(report.Sources, sr)
		}
	}
	sort.Slice(report.Sources, func(i, j int) bool { return report.Sources[i].Source < report.Sources[j].Source })

	if written > 0 {
		s.invalidate(ctx)
	}
	s.logger.Info(ctx, "ingestion cycle finished",
		logger.String("run_id", report.RunID),
		logger.String("date", date),
		logger.Int("sources", len(sources)),
		logger.Int("written", written),
	)
	return report, errors.Join(errs...)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn(ctx, "cache invalidation failed", logger.Error(err))
	}
}

// Backfill precomputes composite rankings for every source subset. With no
// dates, every stored date is considered.
func (s *Service) Backfill(ctx context.Context, dates ...string) (backfill.Report, error) {
	for _, d := range dates {
		if err := validDate(d); err != nil {
			return backfill.Report{}, err
		}
	}
	var opts []backfill.Option
	if len(dates) > 0 {
		opts = append(opts, backfill.WithDates(dates...))
	}
	report, err := backfill.New(s.catalog, s.store, s.store, opts...).Run(ctx)
	if err != nil {
		return report, err
	}
	s.invalidate(ctx)
	return report, nil
}

func (s *Service) resolveDate(ctx context.Context, date string) (string, error) {
	if date != "" {
		return date, validDate(date)
	}
	latest, err := s.store.LatestDate(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrNoData
	}
	return latest, err
}

// DefaultComposite returns the full-catalog composite for date, or for the
// latest stored date when date is empty, ordered by overall rank. It is
// computed from stored metric rows and cached until the next ingestion.
func (s *Service) DefaultComposite(ctx context.Context, date string) ([]model.CompositeRankingRow, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryLatency("default", float64(time.Since(start).Milliseconds())) }()

	date, err := s.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	rows, _, err := s.defaultComposite(ctx, date)
	return rows, err
}

// defaultComposite also returns the metric rows it was built from when it had
// to read them.
func (s *Service) defaultComposite(ctx context.Context, date string) ([]model.CompositeRankingRow, []model.TeamMetricRow, error) {
	key := cache.Key(date, s.catalog.Full().Signature())
	if rows, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
	} else if ok {
		return rows, nil, nil
	}

	metricRows, err := s.store.MetricRows(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	if len(metricRows) == 0 {
		return nil, nil, fmt.Errorf("%w for %s", ErrNoData, date)
	}
	rows := composite.SortByRank(composite.Default(date, composite.Population(metricRows), s.catalog), model.Overall)
	if err := s.cache.Set(ctx, key, rows); err != nil {
		s.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
	return rows, metricRows, nil
}

// Composite returns the backfilled ranking for one source subset. Sources may
// be keys or short keys in any order.
func (s *Service) Composite(ctx context.Context, date string, sources []string) ([]model.CompositeRankingRow, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryLatency("subset", float64(time.Since(start).Milliseconds())) }()

	date, err := s.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	subset := s.catalog.Full()
	if len(sources) > 0 {
		if subset, err = s.catalog.Subset(sources...); err != nil {
			return nil, err
		}
	}

	key := cache.Key(date, subset.Signature())
	if rows, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return rows, nil
	}
	rows, err := s.store.Composite(ctx, date, subset.Signature())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on %s not backfilled", ErrNoData, subset.Signature(), date)
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, rows); err != nil {
		s.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
	return rows, nil
}

// inputs returns the metric and default composite rows for date.
func (s *Service) inputs(ctx context.Context, date string) (string, []model.TeamMetricRow, []model.CompositeRankingRow, error) {
	date, err := s.resolveDate(ctx, date)
	if err != nil {
		return "", nil, nil, err
	}
	compositeRows, metricRows, err := s.defaultComposite(ctx, date)
	if err != nil {
		return "", nil, nil, err
	}
	if metricRows == nil {
		if metricRows, err = s.store.MetricRows(ctx, date); err != nil {
			return "", nil, nil, err
		}
	}
	return date, metricRows, compositeRows, nil
}

// RerankTeams re-derives every eligible rank column within the given teams
// using the stored data for date. Unknown teams are ignored.
func (s *Service) RerankTeams(ctx context.Context, date string, teams []string) ([]rerank.Row, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryLatency("rerank", float64(time.Since(start).Milliseconds())) }()

	_, metricRows, compositeRows, err := s.inputs(ctx, date)
	if err != nil {
		return nil, err
	}
	rows := rerank.Table(metricRows, compositeRows)
	if len(teams) > 0 {
		rows = rerank.Filter(rows, teams)
	}
	return s.Rerank(rows), nil
}

// Rerank re-derives rank columns over caller-supplied rows.
func (s *Service) Rerank(rows []rerank.Row) []rerank.Row {
	metrics.RecordRerankPopulation(len(rows))
	return s.reranker.Rerank(rows)
}

// Categories returns the configured named categories.
func (s *Service) Categories() []model.Category {
	out := make([]model.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Service) selectCategories(q SimilarityQuery) ([]model.Category, error) {
	if len(q.Categories) == 0 && len(q.Custom) == 0 {
		return s.Categories(), nil
	}
	byName := make(map[string]model.Category, len(s.categories))
	for _, c := range s.categories {
		byName[c.Name] = c
	}
	out := make([]model.Category, 0, len(q.Categories)+len(q.Custom))
	for _, name := range q.Categories {
		c, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		out = append(out, c)
	}
	return append(out, q.Custom...), nil
}

// Similar scores every team against q.Team under each selected category.
func (s *Service) Similar(ctx context.Context, q SimilarityQuery) (SimilarityResult, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryLatency("similar", float64(time.Since(start).Milliseconds())) }()

	cats, err := s.selectCategories(q)
	if err != nil {
		return SimilarityResult{}, err
	}
	date, metricRows, compositeRows, err := s.inputs(ctx, q.Date)
	if err != nil {
		return SimilarityResult{}, err
	}
	vectors := similarity.BuildVectors(metricRows, compositeRows)
	target, err := similarity.Find(vectors, q.Team)
	if err != nil {
		return SimilarityResult{}, err
	}

	ceiling := float64(s.ceiling)
	if ceiling == 0 {
		ceiling = float64(len(vectors))
	}
	scorer := similarity.New(
		similarity.WithCeiling(ceiling),
		similarity.WithSignedFieldSpan(s.span),
		similarity.WithMinScore(s.minScore),
		similarity.WithLogger(s.logger.Named("similarity")),
	)
	matches, err := scorer.ScoreAll(cats, target, vectors)
	if err != nil {
		return SimilarityResult{}, err
	}
	return SimilarityResult{Date: date, Team: target.Team, Ceiling: ceiling, Matches: matches}, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"sources":     s.catalog.Keys(),
	}
	if gen, err := s.cache.Generation(ctx); err == nil {
		stats["cacheGeneration"] = gen
	}
	if st, err := s.store.Stats(ctx); err == nil {
		stats["store"] = st
	}
	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["inFlight"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
