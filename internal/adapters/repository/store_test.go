package repository_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/hoopsrank/internal/adapters/repository"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func metricRow(date, team, source string, overall float64, full bool) model.TeamMetricRow {
	r := model.TeamMetricRow{
		Date: date, Team: team, Source: source,
		Overall: model.Metric{Raw: overall * 10, Rank: 1, Z: overall},
	}
	if full {
		r.Offensive = &model.Metric{Raw: 110, Rank: 4, Z: 0.4}
		r.Defensive = &model.Metric{Raw: 95, Rank: 7, Z: -0.2}
	}
	return r
}

func compositeRow(date, team, subset string, overall float64, rank int) model.CompositeRankingRow {
	return model.CompositeRankingRow{
		Date: date, Team: team, Subset: subset,
		Overall: overall, OverallRank: rank, OffensiveRank: rank, DefensiveRank: rank,
	}
}

func exerciseStore(newStore func() repository.Store) {
	ctx := context.Background()
	s := newStore()
	Reset(func() { _ = s.Close() })

	Convey("When the store is empty", func() {
		_, err := s.LatestDate(ctx)
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		_, err = s.Composite(ctx, "2025-01-01", "kp")
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
	})

	Convey("When metric rows are upserted", func() {
		So(s.UpsertMetricRows(ctx, []model.TeamMetricRow{
			metricRow("2025-01-02", "purdue", "kenpom", 1.2, true),
			metricRow("2025-01-02", "purdue", "net", 0.9, false),
			metricRow("2025-01-01", "purdue", "kenpom", 1.0, true),
		}), ShouldBeNil)

		Convey("Then they round-trip with optional dimensions intact", func() {
			rows, err := s.MetricRows(ctx, "2025-01-02")
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 2)
			So(rows[0].Source, ShouldEqual, "kenpom")
			So(rows[0].Offensive, ShouldNotBeNil)
			So(rows[0].Offensive.Rank, ShouldEqual, 4)
			So(rows[0].Defensive.Z, ShouldEqual, -0.2)
			So(rows[1].Source, ShouldEqual, "net")
			So(rows[1].Offensive, ShouldBeNil)
			So(rows[1].Overall.Z, ShouldEqual, 0.9)
		})

		Convey("Then dates are listed ascending", func() {
			dates, err := s.Dates(ctx)
			So(err, ShouldBeNil)
			So(dates, ShouldResemble, []string{"2025-01-01", "2025-01-02"})
			latest, err := s.LatestDate(ctx)
			So(err, ShouldBeNil)
			So(latest, ShouldEqual, "2025-01-02")
		})

		Convey("Then upserting the same key overwrites instead of appending", func() {
			So(s.UpsertMetricRows(ctx, []model.TeamMetricRow{
				metricRow("2025-01-02", "purdue", "kenpom", -0.5, true),
			}), ShouldBeNil)
			rows, _ := s.MetricRows(ctx, "2025-01-02")
			So(len(rows), ShouldEqual, 2)
			So(rows[0].Overall.Z, ShouldEqual, -0.5)

			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.MetricRows, ShouldEqual, 3)
			So(st.Dates, ShouldEqual, 2)
		})

		Convey("Then a degenerate NaN z-score survives the round trip", func() {
			r := metricRow("2025-01-03", "iona", "net", 0, false)
			r.Overall.Z = math.NaN()
			So(s.UpsertMetricRows(ctx, []model.TeamMetricRow{r}), ShouldBeNil)
			rows, _ := s.MetricRows(ctx, "2025-01-03")
			So(math.IsNaN(rows[0].Overall.Z), ShouldBeTrue)
		})
	})

	Convey("When composite rows are upserted", func() {
		So(s.UpsertComposite(ctx, []model.CompositeRankingRow{
			compositeRow("2025-01-02", "tennessee", "kp_em", -0.3, 2),
			compositeRow("2025-01-02", "auburn", "kp_em", 0.3, 1),
			compositeRow("2025-01-02", "auburn", "kp", 0.5, 1),
		}), ShouldBeNil)

		Convey("Then one subset is returned ordered by overall rank", func() {
			rows, err := s.Composite(ctx, "2025-01-02", "kp_em")
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 2)
			So(rows[0].Team, ShouldEqual, "auburn")
			So(rows[1].Overall, ShouldEqual, -0.3)
		})

		Convey("Then re-upserting the same keys is idempotent", func() {
			So(s.UpsertComposite(ctx, []model.CompositeRankingRow{
				compositeRow("2025-01-02", "tennessee", "kp_em", 0.9, 1),
				compositeRow("2025-01-02", "auburn", "kp_em", 0.1, 2),
			}), ShouldBeNil)
			rows, _ := s.Composite(ctx, "2025-01-02", "kp_em")
			So(len(rows), ShouldEqual, 2)
			So(rows[0].Team, ShouldEqual, "tennessee")

			st, _ := s.Stats(ctx)
			So(st.CompositeRows, ShouldEqual, 3)
		})

		Convey("Then NaN composite values read back as NaN", func() {
			r := compositeRow("2025-01-04", "x", "net", math.NaN(), 1)
			So(s.UpsertComposite(ctx, []model.CompositeRankingRow{r}), ShouldBeNil)
			rows, err := s.Composite(ctx, "2025-01-04", "net")
			So(err, ShouldBeNil)
			So(math.IsNaN(rows[0].Overall), ShouldBeTrue)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	_ = logger.Init()
	Convey("Given a MemoryStore", t, func() {
		exerciseStore(func() repository.Store { return repository.NewMemoryStore() })
	})

	Convey("Given a closed MemoryStore", t, func() {
		s := repository.NewMemoryStore()
		So(s.Close(), ShouldBeNil)
		So(errors.Is(s.UpsertMetricRows(context.Background(), nil), repository.ErrClosed), ShouldBeTrue)
	})

	Convey("Given a row stored in a MemoryStore", t, func() {
		s := repository.NewMemoryStore()
		r := metricRow("2025-01-02", "uconn", "kenpom", 1, true)
		So(s.UpsertMetricRows(context.Background(), []model.TeamMetricRow{r}), ShouldBeNil)

		Convey("Then mutating the caller's copy does not change the stored row", func() {
			r.Offensive.Z = 99
			rows, _ := s.MetricRows(context.Background(), "2025-01-02")
			So(rows[0].Offensive.Z, ShouldEqual, 0.4)
		})
	})
}

func TestSQLStore(t *testing.T) {
	_ = logger.Init()
	Convey("Given an in-memory SQLStore", t, func() {
		exerciseStore(func() repository.Store {
			s, err := repository.NewSQLStore(context.Background(), ":memory:")
			So(err, ShouldBeNil)
			return s
		})
	})
}
