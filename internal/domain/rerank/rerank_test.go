package rerank_test

import (
	"testing"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/composite"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/rerank"
	"github.com/okian/hoopsrank/internal/domain/zscore"
	. "github.com/smartystreets/goconvey/convey"
)

const date = "2025-02-15"

func ptr(v float64) *float64 { return &v }

type raw map[string]float64

func batch(values map[string]raw) []model.RawRow {
	var rows []model.RawRow
	for _, team := range []string{"arizona", "byu", "colorado", "duke", "kansas"} {
		v := make(map[string]*float64)
		for k, x := range values[team] {
			v[k] = ptr(x)
		}
		rows = append(rows, model.RawRow{Team: team, Values: v})
	}
	return rows
}

// league normalizes a five-team league across every default source.
func league() ([]model.TeamMetricRow, []model.CompositeRankingRow) {
	cat := catalog.Default()
	input := map[string]map[string]raw{
		"kenpom": {
			"arizona":  {"adj_em": 22.1, "adj_o": 119.0, "adj_d": 96.9},
			"byu":      {"adj_em": 18.3, "adj_o": 121.4, "adj_d": 103.1},
			"colorado": {"adj_em": 8.7, "adj_o": 108.2, "adj_d": 99.5},
			"duke":     {"adj_em": 33.5, "adj_o": 126.0, "adj_d": 92.5},
			"kansas":   {"adj_em": 20.4, "adj_o": 113.9, "adj_d": 93.5},
		},
		"evanmiya": {
			"arizona":  {"relative_rating": 18.2, "o_rate": 9.1, "d_rate": 9.1},
			"byu":      {"relative_rating": 15.0, "o_rate": 10.4, "d_rate": 4.6},
			"colorado": {"relative_rating": 6.1, "o_rate": 2.0, "d_rate": 4.1},
			"duke":     {"relative_rating": 27.9, "o_rate": 14.2, "d_rate": 13.7},
			"kansas":   {"relative_rating": 17.5, "o_rate": 6.3, "d_rate": 11.2},
		},
		"barttorvik": {
			"arizona":  {"barthag": 0.921, "adj_oe": 118.1, "adj_de": 97.2},
			"byu":      {"barthag": 0.874, "adj_oe": 120.7, "adj_de": 102.6},
			"colorado": {"barthag": 0.701, "adj_oe": 107.9, "adj_de": 100.1},
			"duke":     {"barthag": 0.978, "adj_oe": 125.3, "adj_de": 91.8},
			"kansas":   {"barthag": 0.902, "adj_oe": 112.6, "adj_de": 94.0},
		},
		"net": {
			"arizona": {"net_rank": 14}, "byu": {"net_rank": 22}, "colorado": {"net_rank": 71},
			"duke": {"net_rank": 1}, "kansas": {"net_rank": 17},
		},
	}

	var metrics []model.TeamMetricRow
	for _, src := range cat.Sources() {
		rows, _, err := zscore.NormalizeSource(src, date, batch(input[src.Key]))
		if err != nil {
			panic(err)
		}
		metrics = append(metrics, rows...)
	}
	return metrics, composite.Default(date, composite.Population(metrics), cat)
}

func TestEligibleColumns(t *testing.T) {
	Convey("Given the flattened league table", t, func() {
		metrics, comp := league()
		rows := rerank.Table(metrics, comp)
		r := rerank.ForCatalog(catalog.Default())

		Convey("Then rank-only source columns are excluded and the rest are eligible", func() {
			cols := r.EligibleColumns(rows)
			So(cols, ShouldContain, "kenpom_defensive_rank")
			So(cols, ShouldContain, "composite_overall_rank")
			So(cols, ShouldNotContain, "net_overall_rank")
			So(len(cols), ShouldEqual, 12)
		})

		Convey("Then defensive columns of two sources sort ascending", func() {
			So(r.LowerIsBetter("kenpom_defensive_rank"), ShouldBeTrue)
			So(r.LowerIsBetter("barttorvik_defensive"), ShouldBeTrue)
			So(r.LowerIsBetter("evanmiya_defensive"), ShouldBeFalse)
		})
	})
}

func TestRerankIdentity(t *testing.T) {
	Convey("Given the full unfiltered population", t, func() {
		metrics, comp := league()
		rows := rerank.Table(metrics, comp)
		r := rerank.ForCatalog(catalog.Default())

		Convey("When every team is re-ranked", func() {
			out := r.Rerank(rows)

			Convey("Then every eligible rank column reproduces the stored rank", func() {
				for _, col := range r.EligibleColumns(rows) {
					for i := range rows {
						So(out[i].Fields[col], ShouldEqual, rows[i].Fields[col])
					}
				}
			})
		})
	})
}

func TestRerankFiltered(t *testing.T) {
	Convey("Given a two-team subset of the league", t, func() {
		metrics, comp := league()
		rows := rerank.Table(metrics, comp)
		r := rerank.ForCatalog(catalog.Default())
		subset := rerank.Filter(rows, []string{"arizona", "kansas"})
		So(len(subset), ShouldEqual, 2)
		fullArizona := subset[0].Fields["composite_overall_rank"]

		Convey("When it is re-ranked", func() {
			out := r.Rerank(subset)

			Convey("Then every eligible column holds ranks 1 and 2", func() {
				for _, col := range r.EligibleColumns(subset) {
					got := []float64{out[0].Fields[col], out[1].Fields[col]}
					So(got, ShouldContain, 1.0)
					So(got, ShouldContain, 2.0)
				}
			})

			Convey("Then the smallest kenpom adjusted defense ranks first", func() {
				So(subset[1].Fields["kenpom_defensive"], ShouldBeLessThan, subset[0].Fields["kenpom_defensive"])
				So(out[1].Fields["kenpom_defensive_rank"], ShouldEqual, 1)
			})

			Convey("Then the input rows are not mutated", func() {
				So(subset[0].Fields["composite_overall_rank"], ShouldEqual, fullArizona)
			})

			Convey("Then excluded columns keep their league-wide values", func() {
				So(out[0].Fields["net_overall_rank"], ShouldEqual, subset[0].Fields["net_overall_rank"])
			})
		})
	})

	Convey("Given hand-built rows with a custom direction", t, func() {
		rows := []rerank.Row{
			{Team: "a", Fields: map[string]float64{"tempo": 70, "tempo_rank": 9}},
			{Team: "b", Fields: map[string]float64{"tempo": 64, "tempo_rank": 40}},
			{Team: "c", Fields: map[string]float64{"orphan_rank": 3}},
		}
		out := rerank.New(rerank.WithLowerIsBetter("tempo_rank")).Rerank(rows)

		Convey("Then the slowest tempo ranks first and orphan rank columns are left alone", func() {
			So(out[1].Fields["tempo_rank"], ShouldEqual, 1)
			So(out[0].Fields["tempo_rank"], ShouldEqual, 2)
			So(out[2].Fields["tempo_rank"], ShouldEqual, 3)
			So(out[2].Fields["orphan_rank"], ShouldEqual, 3)
		})
	})
}
