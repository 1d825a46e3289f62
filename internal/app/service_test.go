package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/hoopsrank/internal/adapters/repository"
	"github.com/okian/hoopsrank/internal/app"
	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/rerank"
	"github.com/okian/hoopsrank/internal/domain/similarity"
	"github.com/okian/hoopsrank/internal/domain/zscore"
	"github.com/okian/hoopsrank/internal/synth"
	"github.com/okian/hoopsrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	day1 = "2025-02-01"
	day2 = "2025-02-02"
	day3 = "2025-02-03"
)

func startService(opts ...app.Option) *app.Service {
	svc := app.New(append([]app.Option{app.WithWorkerCount(2), app.WithQueueSize(8)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	Reset(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := app.New()
		ctx := context.Background()

		Convey("When it has not been started", func() {
			_, err := svc.Ingest(ctx, day1, map[string][]model.RawRow{"kenpom": nil})

			Convey("Then ingestion is refused", func() {
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
				So(svc.Stats(ctx)["started"], ShouldEqual, false)
			})
		})

		Convey("When it is started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stats(ctx)["started"], ShouldEqual, true)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped", func() {
				So(svc.Stats(ctx)["started"], ShouldEqual, false)
			})
		})
	})
}

func TestServiceIngest(t *testing.T) {
	Convey("Given a started service and a synthetic league", t, func() {
		svc := startService()
		ctx := context.Background()
		league := synth.NewLeague(synth.Teams(12), 1)

		Convey("When a full day is ingested", func() {
			report, err := svc.Ingest(ctx, day1, league.Batches(svc.Catalog()))

			Convey("Then every source is normalized and stored", func() {
				So(err, ShouldBeNil)
				So(report.RunID, ShouldNotBeEmpty)
				So(len(report.Sources), ShouldEqual, 4)
				for _, sr := range report.Sources {
					So(sr.Rows, ShouldEqual, 12)
					So(sr.Error, ShouldBeEmpty)
				}
				So(svc.Stats(ctx)["store"], ShouldResemble, repository.Stats{MetricRows: 48, Dates: 1})
				So(svc.Stats(ctx)["cacheGeneration"], ShouldEqual, int64(1))
			})

			Convey("Then the default composite ranks every team once", func() {
				rows, err := svc.DefaultComposite(ctx, "")
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 12)
				for i, r := range rows {
					So(r.OverallRank, ShouldEqual, i+1)
					So(r.Subset, ShouldEqual, "kp_em_bt_net")
					So(r.Date, ShouldEqual, day1)
				}

				again, err := svc.DefaultComposite(ctx, day1)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, rows)
			})
		})

		Convey("When one source carries a corrupt row", func() {
			batches := league.Batches(svc.Catalog())
			batches["evanmiya"][4].Values["o_rate"] = nil

			_, err := svc.Ingest(ctx, day1, batches)

			Convey("Then the whole cycle is rejected before anything is written", func() {
				So(errors.Is(err, zscore.ErrInvalidSourceData), ShouldBeTrue)
				So(svc.Stats(ctx)["store"], ShouldResemble, repository.Stats{})
			})
		})

		Convey("When a batch names an unknown source", func() {
			_, err := svc.Ingest(ctx, day1, map[string][]model.RawRow{"sagarin": league.Batches(svc.Catalog())["kenpom"]})
			So(errors.Is(err, catalog.ErrUnknownSource), ShouldBeTrue)
		})

		Convey("When the date is malformed or nothing is sent", func() {
			_, err := svc.Ingest(ctx, "02/01/2025", league.Batches(svc.Catalog()))
			So(errors.Is(err, app.ErrInvalidDate), ShouldBeTrue)
			_, err = svc.Ingest(ctx, day1, nil)
			So(errors.Is(err, app.ErrEmptyIngest), ShouldBeTrue)
		})

		Convey("When nothing has been ingested", func() {
			_, err := svc.DefaultComposite(ctx, "")
			So(errors.Is(err, app.ErrNoData), ShouldBeTrue)
		})
	})
}

// gatedStore blocks metric writes until released.
type gatedStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) UpsertMetricRows(ctx context.Context, rows []model.TeamMetricRow) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.MemoryStore.UpsertMetricRows(ctx, rows)
}

func TestServiceIngestInProgress(t *testing.T) {
	Convey("Given a source and date whose ingestion is still running", t, func() {
		store := &gatedStore{
			MemoryStore: repository.NewMemoryStore(),
			entered:     make(chan struct{}),
			release:     make(chan struct{}),
		}
		svc := startService(app.WithStore(store))
		ctx := context.Background()
		batch := synth.NewLeague(synth.Teams(6), 3).Batches(svc.Catalog())["kenpom"]

		first := make(chan error, 1)
		go func() {
			_, err := svc.Ingest(ctx, day1, map[string][]model.RawRow{"kenpom": batch})
			first <- err
		}()
		<-store.entered

		Convey("When the same source and date is ingested again", func() {
			_, err := svc.Ingest(ctx, day1, map[string][]model.RawRow{"kp": batch})
			close(store.release)

			Convey("Then it is refused and the first cycle completes", func() {
				So(errors.Is(err, app.ErrIngestInProgress), ShouldBeTrue)
				So(<-first, ShouldBeNil)
			})

			Convey("Then the key is released afterwards", func() {
				So(<-first, ShouldBeNil)
				_, err := svc.Ingest(ctx, day1, map[string][]model.RawRow{"kenpom": batch})
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestServiceBackfillAndSubsets(t *testing.T) {
	Convey("Given two complete days and one partial day", t, func() {
		svc := startService()
		ctx := context.Background()
		league := synth.NewLeague(synth.Teams(10), 5)

		_, err := svc.Ingest(ctx, day1, league.Batches(svc.Catalog()))
		So(err, ShouldBeNil)
		league.Advance()
		_, err = svc.Ingest(ctx, day2, league.Batches(svc.Catalog()))
		So(err, ShouldBeNil)
		league.Advance()
		_, err = svc.Ingest(ctx, day3, map[string][]model.RawRow{"kenpom": league.Batches(svc.Catalog())["kenpom"]})
		So(err, ShouldBeNil)

		Convey("When the backfill runs over every date", func() {
			report, err := svc.Backfill(ctx)

			Convey("Then every subset of each complete date is stored", func() {
				So(err, ShouldBeNil)
				So(report.Dates, ShouldResemble, []string{day1, day2})
				So(report.Skipped, ShouldResemble, []string{day3})
				So(report.Subsets, ShouldEqual, 15)
				So(report.Rows, ShouldEqual, 2*15*10)
			})

			Convey("Then a subset can be read back in any member order", func() {
				rows, err := svc.Composite(ctx, day2, []string{"net", "kp"})
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 10)
				So(rows[0].Subset, ShouldEqual, "kp_net")
				So(rows[0].OverallRank, ShouldEqual, 1)
			})

			Convey("Then the full-catalog subset matches the default composite", func() {
				stored, err := svc.Composite(ctx, day1, nil)
				So(err, ShouldBeNil)
				live, err := svc.DefaultComposite(ctx, day1)
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, len(live))
				for i := range live {
					So(stored[i].Team, ShouldEqual, live[i].Team)
					So(stored[i].OverallRank, ShouldEqual, live[i].OverallRank)
				}
			})

			Convey("Then the partial date has no subsets", func() {
				_, err := svc.Composite(ctx, day3, []string{"kp"})
				So(errors.Is(err, app.ErrNoData), ShouldBeTrue)
			})
		})

		Convey("When an unknown source is requested", func() {
			_, err := svc.Composite(ctx, day1, []string{"kp", "sagarin"})
			So(errors.Is(err, catalog.ErrUnknownSource), ShouldBeTrue)
		})

		Convey("When only a partial date is backfilled", func() {
			_, err := svc.Backfill(ctx, day3)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestServiceRerankAndSimilar(t *testing.T) {
	Convey("Given one ingested day", t, func() {
		svc := startService()
		ctx := context.Background()
		teams := synth.Teams(20)
		_, err := svc.Ingest(ctx, day1, synth.NewLeague(teams, 9).Batches(svc.Catalog()))
		So(err, ShouldBeNil)

		Convey("When a subset of teams is re-ranked", func() {
			conference := []string{teams[2], teams[7], teams[11], teams[19]}
			rows, err := svc.RerankTeams(ctx, day1, conference)

			Convey("Then ranks are positions within that population", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 4)
				seen := make(map[float64]bool)
				for _, r := range rows {
					seen[r.Fields["composite_overall"+rerank.RankSuffix]] = true
					_, hasNet := r.Fields["net_overall"+rerank.RankSuffix]
					So(hasNet, ShouldBeTrue)
				}
				So(seen, ShouldResemble, map[float64]bool{1: true, 2: true, 3: true, 4: true})
			})

			Convey("Then re-ranking the result again changes nothing", func() {
				So(svc.Rerank(rows), ShouldResemble, rows)
			})
		})

		Convey("When similar teams are requested under every category", func() {
			res, err := svc.Similar(ctx, app.SimilarityQuery{Team: teams[0]})

			Convey("Then each category is scored without the target itself", func() {
				So(err, ShouldBeNil)
				So(res.Date, ShouldEqual, day1)
				So(res.Ceiling, ShouldEqual, float64(20))
				So(len(res.Matches), ShouldEqual, 3)
				for _, matches := range res.Matches {
					for i, m := range matches {
						So(m.Team, ShouldNotEqual, teams[0])
						So(m.Score, ShouldBeGreaterThanOrEqualTo, similarity.DefaultMinScore)
						if i > 0 {
							So(m.Score, ShouldBeLessThanOrEqualTo, matches[i-1].Score)
						}
					}
				}
			})
		})

		Convey("When a custom category is supplied", func() {
			res, err := svc.Similar(ctx, app.SimilarityQuery{
				Team:       teams[3],
				Categories: []string{"defense"},
				Custom: []model.Category{{Name: "balance", Weights: []model.FieldWeight{
					{Field: similarity.OffDefDiff, Weight: 1},
				}}},
			})
			So(err, ShouldBeNil)
			So(len(res.Matches), ShouldEqual, 2)
			_, ok := res.Matches["balance"]
			So(ok, ShouldBeTrue)
		})

		Convey("When the request is invalid", func() {
			_, err := svc.Similar(ctx, app.SimilarityQuery{Team: teams[0], Categories: []string{"tempo"}})
			So(errors.Is(err, app.ErrUnknownCategory), ShouldBeTrue)

			_, err = svc.Similar(ctx, app.SimilarityQuery{Team: "nobody"})
			So(errors.Is(err, similarity.ErrUnknownTeam), ShouldBeTrue)

			_, err = svc.Similar(ctx, app.SimilarityQuery{Team: teams[0], Custom: []model.Category{{Name: "bad"}}})
			So(errors.Is(err, similarity.ErrInvalidCategory), ShouldBeTrue)
		})
	})
}
