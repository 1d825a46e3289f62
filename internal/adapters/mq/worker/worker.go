// Package worker normalizes queued source batches and persists the resulting
// metric rows.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/hoopsrank/internal/adapters/mq/queue"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/tracing"
	"github.com/okian/hoopsrank/pkg/logger"
	"github.com/okian/hoopsrank/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Normalizer turns one source's raw batch into metric rows.
type Normalizer interface {
	Normalize(ctx context.Context, source, date string, rows []model.RawRow) ([]model.TeamMetricRow, []model.Dimension, error)
}

// Writer persists metric rows with upsert semantics.
type Writer interface {
	UpsertMetricRows(ctx context.Context, rows []model.TeamMetricRow) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its context ends or the queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	normalizer Normalizer
	writer     Writer
	name       string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, n Normalizer, w Writer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:      q,
		normalizer: n,
		writer:     w,
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.name != "worker" {
		wk.logger = wk.logger.Named(wk.name)
	}
	return wk
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.finish(ctx, j, w.process(ctx, j))
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) (res queue.Result) { //nolint:gocritic // hugeParam: Job passed by value off the channel
	start := time.Now()
	res = queue.Result{JobID: j.ID, Date: j.Date, Source: j.Source}

	ctx, end := tracing.StartSpan(ctx, "ingest.source",
		attribute.String("source", j.Source),
		attribute.String("date", j.Date),
	)
	defer func() {
		end(res.Err)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, degenerate, err := w.normalizer.Normalize(ctx, j.Source, j.Date, j.Rows)
	if err != nil {
		metrics.RecordWorkerError()
		res.Err = fmt.Errorf("normalize %s %s: %w", j.Source, j.Date, err)
		return res
	}
	for _, d := range degenerate {
		metrics.RecordDegenerateNormalization(j.Source, string(d))
		w.logger.Warn(ctx, "zero variance in source column",
			logger.String("source", j.Source),
			logger.String("date", j.Date),
			logger.String("dimension", string(d)),
		)
	}
	res.Degenerate = degenerate

	if err := w.writer.UpsertMetricRows(ctx, rows); err != nil {
		metrics.RecordWorkerError()
		res.Err = fmt.Errorf("persist %s %s: %w", j.Source, j.Date, err)
		return res
	}
	res.Rows = len(rows)
	metrics.RecordIngestRows(j.Source, len(rows))
	return res
}

func (w *InMemoryWorker) finish(ctx context.Context, j queue.Job, res queue.Result) { //nolint:gocritic // hugeParam: Job passed by value off the channel
	outcome := "success"
	if res.Err != nil {
		outcome = "failure"
		w.logger.Error(ctx, "ingest job failed",
			logger.String("job_id", j.ID),
			logger.Error(res.Err),
		)
	}
	metrics.RecordIngestBatch(j.Source, outcome)
	if j.Done != nil {
		j.Done <- res
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A count below one uses the CPU count.
func NewPool(workerCount int, q Queue, n Normalizer, w Writer) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, n, w, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	return nil
}
