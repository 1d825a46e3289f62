package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/hoopsrank/internal/adapters/mq/queue"
	"github.com/okian/hoopsrank/internal/adapters/mq/worker"
	"github.com/okian/hoopsrank/internal/domain/model"
	logging "github.com/okian/hoopsrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockNormalizer struct {
	fail map[string]error
	mu   sync.Mutex
}

func (m *mockNormalizer) Normalize(_ context.Context, source, date string, rows []model.RawRow) ([]model.TeamMetricRow, []model.Dimension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[source]; ok {
		return nil, nil, err
	}
	out := make([]model.TeamMetricRow, len(rows))
	for i, r := range rows {
		out[i] = model.TeamMetricRow{Date: date, Team: r.Team, Source: source}
	}
	var degenerate []model.Dimension
	if source == "net" {
		degenerate = []model.Dimension{model.Overall}
	}
	return out, degenerate, nil
}

type mockWriter struct {
	rows []model.TeamMetricRow
	err  error
	mu   sync.Mutex
}

func (m *mockWriter) UpsertMetricRows(_ context.Context, rows []model.TeamMetricRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *mockWriter) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func job(id, source string, done chan queue.Result) queue.Job {
	return queue.Job{
		ID: id, Date: "2025-01-05", Source: source, Done: done,
		Rows: []model.RawRow{{Team: "iowa"}, {Team: "ohio-state"}},
	}
}

func await(done chan queue.Result) queue.Result {
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		return queue.Result{Err: errors.New("timed out")}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		n := &mockNormalizer{fail: map[string]error{"barttorvik": errors.New("bad batch")}}
		w := &mockWriter{}
		wk := worker.NewInMemoryWorker(q, n, w, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go wk.Run(ctx)

		convey.Convey("When a good job is processed", func() {
			done := make(chan queue.Result, 1)
			q.jobs <- job("j1", "kenpom", done)
			res := await(done)

			convey.Convey("Then its rows are persisted and reported", func() {
				convey.So(res.Err, convey.ShouldBeNil)
				convey.So(res.Rows, convey.ShouldEqual, 2)
				convey.So(res.JobID, convey.ShouldEqual, "j1")
				convey.So(w.count(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the normalizer reports a degenerate column", func() {
			done := make(chan queue.Result, 1)
			q.jobs <- job("j2", "net", done)
			res := await(done)
			convey.So(res.Err, convey.ShouldBeNil)
			convey.So(res.Degenerate, convey.ShouldResemble, []model.Dimension{model.Overall})
		})

		convey.Convey("When normalization fails", func() {
			done := make(chan queue.Result, 1)
			q.jobs <- job("j3", "barttorvik", done)
			res := await(done)

			convey.Convey("Then nothing is written and the error is returned", func() {
				convey.So(res.Err, convey.ShouldNotBeNil)
				convey.So(w.count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When persistence fails", func() {
			diskFull := errors.New("disk full")
			w.setErr(diskFull)
			done := make(chan queue.Result, 1)
			q.jobs <- job("j4", "kenpom", done)
			res := await(done)
			convey.So(errors.Is(res.Err, diskFull), convey.ShouldBeTrue)
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			convey.So(wk.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of three workers on a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		w := &mockWriter{}
		pool := worker.NewPool(3, q, &mockNormalizer{}, w)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When one job per source is enqueued", func() {
			sources := []string{"kenpom", "evanmiya", "barttorvik", "net"}
			done := make(chan queue.Result, len(sources))
			for i, s := range sources {
				convey.So(q.Enqueue(ctx, job(s+string(rune('0'+i)), s, done)), convey.ShouldBeTrue)
			}

			convey.Convey("Then every job completes and all rows are written", func() {
				for range sources {
					convey.So(await(done).Err, convey.ShouldBeNil)
				}
				convey.So(w.count(), convey.ShouldEqual, 8)
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the pool shuts down with an idle queue", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})
}
