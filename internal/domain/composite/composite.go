// Package composite averages per-source z-scores across a subset of the
// catalog and ranks the result.
package composite

import (
	"math"
	"sort"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/ranking"
)

// Entry is one team carrying its per-source metric rows for a single date.
type Entry struct {
	Team    string
	Sources map[string]model.TeamMetricRow
}

// Population groups metric rows by team, ordered by team key.
func Population(rows []model.TeamMetricRow) []Entry {
	byTeam := make(map[string]map[string]model.TeamMetricRow)
	for _, r := range rows {
		m, ok := byTeam[r.Team]
		if !ok {
			m = make(map[string]model.TeamMetricRow)
			byTeam[r.Team] = m
		}
		m[r.Source] = r
	}
	out := make([]Entry, 0, len(byTeam))
	for team, sources := range byTeam {
		out = append(out, Entry{Team: team, Sources: sources})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out
}

// Aggregate computes one CompositeRankingRow per team for subset. Rows come
// back in population order.
//
// A dimension no member defines is exactly 0 for every team. A team lacking a
// member's data for a defined dimension gets NaN there and ranks last.
func Aggregate(date string, pop []Entry, subset catalog.Subset) []model.CompositeRankingRow {
	members := subset.Members()
	sig := subset.Signature()

	teams := make([]string, len(pop))
	for i, e := range pop {
		teams[i] = e.Team
	}

	out := make([]model.CompositeRankingRow, len(pop))
	for i, e := range pop {
		out[i] = model.CompositeRankingRow{Date: date, Team: e.Team, Subset: sig}
	}

	for _, d := range model.Dimensions {
		values := average(pop, members, d)
		ranks := ranking.Positions(teams, values, ranking.HigherIsBetter)
		for i := range out {
			switch d {
			case model.Overall:
				out[i].Overall, out[i].OverallRank = values[i], ranks[i]
			case model.Offensive:
				out[i].Offensive, out[i].OffensiveRank = values[i], ranks[i]
			case model.Defensive:
				out[i].Defensive, out[i].DefensiveRank = values[i], ranks[i]
			}
		}
	}
	return out
}

// Default is the full-catalog composite served without a source filter.
func Default(date string, pop []Entry, cat *catalog.Catalog) []model.CompositeRankingRow {
	return Aggregate(date, pop, cat.Full())
}

// SortByRank orders rows by their rank on d. The input is not modified.
func SortByRank(rows []model.CompositeRankingRow, d model.Dimension) []model.CompositeRankingRow {
	out := make([]model.CompositeRankingRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rank(d), out[j].Rank(d)
		if ri != rj {
			return ri < rj
		}
		return out[i].Team < out[j].Team
	})
	return out
}

func average(pop []Entry, members []catalog.SourceSystem, d model.Dimension) []float64 {
	definers := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := m.Field(d); ok {
			definers = append(definers, m.Key)
		}
	}

	values := make([]float64, len(pop))
	if len(definers) == 0 {
		return values
	}
	for i, e := range pop {
		var sum float64
		for _, key := range definers {
			row, ok := e.Sources[key]
			if !ok {
				sum = math.NaN()
				break
			}
			m, ok := row.Metric(d)
			if !ok {
				sum = math.NaN()
				break
			}
			sum += m.Z
		}
		values[i] = sum / float64(len(definers))
	}
	return values
}
