// Package rerank recomputes rank columns over a caller-filtered population of
// teams, such as a single conference.
package rerank

import (
	"math"
	"sort"
	"strings"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/ranking"
)

// RankSuffix marks a rank column; the paired magnitude column drops it.
const RankSuffix = "_rank"

// CompositePrefix names the columns carrying the default composite ranking.
const CompositePrefix = "composite"

// Row is one team's flattened magnitude and rank columns.
type Row struct {
	Team   string             `json:"team"`
	Fields map[string]float64 `json:"fields"`
}

// Reranker re-derives ranks within whatever population it is handed.
type Reranker struct {
	lowerIsBetter map[string]bool
	excluded      []string
}

// New creates a Reranker.
func New(opts ...Option) *Reranker {
	r := &Reranker{lowerIsBetter: make(map[string]bool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForCatalog configures directions and exclusions from cat: columns of a
// rank-only source are excluded and lower-is-better fields sort ascending.
func ForCatalog(cat *catalog.Catalog) *Reranker {
	var lower, excluded []string
	for _, src := range cat.Sources() {
		if src.RankOnly() {
			excluded = append(excluded, src.Key+"_")
			continue
		}
		for _, d := range model.Dimensions {
			if ref, ok := src.Field(d); ok && ref.LowerIsBetter {
				lower = append(lower, Column(src.Key, d))
			}
		}
	}
	return New(WithLowerIsBetter(lower...), WithExcludedPrefixes(excluded...))
}

// Column returns the magnitude column name for a source dimension.
func Column(prefix string, d model.Dimension) string {
	return prefix + "_" + string(d)
}

// LowerIsBetter reports whether the magnitude column sorts ascending.
func (r *Reranker) LowerIsBetter(column string) bool {
	return r.lowerIsBetter[strings.TrimSuffix(column, RankSuffix)]
}

// EligibleColumns lists, sorted, the rank columns present in rows that have a
// paired magnitude column and are not excluded.
func (r *Reranker) EligibleColumns(rows []Row) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for name := range row.Fields {
			if !strings.HasSuffix(name, RankSuffix) || seen[name] || r.isExcluded(name) {
				continue
			}
			if _, ok := row.Fields[strings.TrimSuffix(name, RankSuffix)]; ok {
				seen[name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Rerank returns copies of rows with every eligible rank column recomputed
// over rows alone. The input is not modified.
func (r *Reranker) Rerank(rows []Row) []Row {
	out := make([]Row, len(rows))
	teams := make([]string, len(rows))
	for i, row := range rows {
		fields := make(map[string]float64, len(row.Fields))
		for k, v := range row.Fields {
			fields[k] = v
		}
		out[i] = Row{Team: row.Team, Fields: fields}
		teams[i] = row.Team
	}

	for _, col := range r.EligibleColumns(rows) {
		magnitude := strings.TrimSuffix(col, RankSuffix)
		values := make([]float64, len(rows))
		for i, row := range rows {
			v, ok := row.Fields[magnitude]
			if !ok {
				v = math.NaN()
			}
			values[i] = v
		}
		dir := ranking.HigherIsBetter
		if r.lowerIsBetter[magnitude] {
			dir = ranking.LowerIsBetter
		}
		for i, rank := range ranking.Positions(teams, values, dir) {
			out[i].Fields[col] = float64(rank)
		}
	}
	return out
}

func (r *Reranker) isExcluded(column string) bool {
	for _, p := range r.excluded {
		if strings.HasPrefix(column, p) {
			return true
		}
	}
	return false
}

// Table flattens one date's metric and default composite rows into Rows,
// ordered by team key.
func Table(metricRows []model.TeamMetricRow, compositeRows []model.CompositeRankingRow) []Row {
	byTeam := make(map[string]map[string]float64)
	fields := func(team string) map[string]float64 {
		f, ok := byTeam[team]
		if !ok {
			f = make(map[string]float64)
			byTeam[team] = f
		}
		return f
	}

	for i := range metricRows {
		m := &metricRows[i]
		f := fields(m.Team)
		for _, d := range model.Dimensions {
			if v, ok := m.Metric(d); ok {
				col := Column(m.Source, d)
				f[col] = v.Raw
				f[col+RankSuffix] = float64(v.Rank)
			}
		}
	}
	for i := range compositeRows {
		c := &compositeRows[i]
		f := fields(c.Team)
		for _, d := range model.Dimensions {
			col := Column(CompositePrefix, d)
			f[col] = c.Value(d)
			f[col+RankSuffix] = float64(c.Rank(d))
		}
	}

	out := make([]Row, 0, len(byTeam))
	for team, f := range byTeam {
		out = append(out, Row{Team: team, Fields: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out
}

// Filter keeps the rows whose team is in teams, preserving order.
func Filter(rows []Row, teams []string) []Row {
	keep := make(map[string]bool, len(teams))
	for _, t := range teams {
		keep[strings.TrimSpace(t)] = true
	}
	out := make([]Row, 0, len(teams))
	for _, row := range rows {
		if keep[row.Team] {
			out = append(out, row)
		}
	}
	return out
}
