// Package zscore converts raw per-source metric columns into population
// z-scores.
package zscore

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/ranking"
)

// Normalize returns the population z-score of every value, negated when flip
// is set. A population with zero variance yields NaN for every entry.
func Normalize(values []float64, flip bool) ([]float64, error) {
	n := len(values)
	if n == 0 {
		return nil, ErrEmptyPopulation
	}
	degenerate := true
	var sum float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value %d is not a finite number", ErrInvalidSourceData, i)
		}
		if v != values[0] {
			degenerate = false
		}
		sum += v
	}

	out := make([]float64, n)
	if degenerate {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}

	mean := sum / float64(n)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	stddev := math.Sqrt(ss / float64(n))

	for i, v := range values {
		z := (v - mean) / stddev
		if flip {
			z = -z
		}
		out[i] = z
	}
	return out, nil
}

// Validate checks a whole batch before any normalization runs. Every row must
// name a distinct team and carry a finite value for every key.
func Validate(rows []model.RawRow, keys []string) error {
	if len(rows) == 0 {
		return ErrEmptyPopulation
	}
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		team := strings.TrimSpace(r.Team)
		if team == "" {
			return fmt.Errorf("%w: row %d has no team", ErrInvalidSourceData, i)
		}
		if _, dup := seen[team]; dup {
			return fmt.Errorf("%w: team %q appears twice", ErrInvalidSourceData, team)
		}
		seen[team] = struct{}{}
		for _, k := range keys {
			v, ok := r.Values[k]
			switch {
			case !ok:
				return fmt.Errorf("%w: team %q is missing %q", ErrInvalidSourceData, team, k)
			case v == nil:
				return fmt.Errorf("%w: team %q has null %q", ErrInvalidSourceData, team, k)
			case math.IsNaN(*v) || math.IsInf(*v, 0):
				return fmt.Errorf("%w: team %q has non-numeric %q", ErrInvalidSourceData, team, k)
			}
		}
	}
	return nil
}

// Keys lists the raw columns a source contributes.
func Keys(src catalog.SourceSystem) []string {
	keys := make([]string, 0, len(model.Dimensions))
	for _, d := range model.Dimensions {
		if ref, ok := src.Field(d); ok {
			keys = append(keys, ref.Key)
		}
	}
	return keys
}

// Column extracts one raw column. Rows must already be validated.
func Column(rows []model.RawRow, ref catalog.FieldRef) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = *r.Values[ref.Key]
	}
	return out
}

// NormalizeSource validates and normalizes one source's batch for one date.
// It also returns the dimensions whose population had zero variance.
func NormalizeSource(src catalog.SourceSystem, date string, rows []model.RawRow) ([]model.TeamMetricRow, []model.Dimension, error) {
	if err := Validate(rows, Keys(src)); err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", src.Key, date, err)
	}

	teams := make([]string, len(rows))
	for i, r := range rows {
		teams[i] = strings.TrimSpace(r.Team)
	}

	out := make([]model.TeamMetricRow, len(rows))
	for i := range out {
		out[i] = model.TeamMetricRow{Date: date, Team: teams[i], Source: src.Key}
	}

	var degenerate []model.Dimension
	for _, d := range model.Dimensions {
		ref, ok := src.Field(d)
		if !ok {
			continue
		}
		raw := Column(rows, ref)
		z, err := Normalize(raw, ref.LowerIsBetter)
		if err != nil {
			return nil, nil, fmt.Errorf("%s %s %s: %w", src.Key, date, d, err)
		}
		if math.IsNaN(z[0]) {
			degenerate = append(degenerate, d)
		}
		ranks := publishedRanks(rows, ref.Key)
		if ranks == nil {
			dir := ranking.HigherIsBetter
			if ref.LowerIsBetter {
				dir = ranking.LowerIsBetter
			}
			ranks = ranking.Positions(teams, raw, dir)
		}
		for i := range out {
			m := model.Metric{Raw: raw[i], Rank: ranks[i], Z: z[i]}
			switch d {
			case model.Overall:
				out[i].Overall = m
			case model.Offensive:
				out[i].Offensive = &m
			case model.Defensive:
				out[i].Defensive = &m
			}
		}
	}
	return out, degenerate, nil
}

// publishedRanks returns the source's own ranks for key, or nil unless every
// row carries one.
func publishedRanks(rows []model.RawRow, key string) []int {
	ranks := make([]int, len(rows))
	for i, r := range rows {
		rank, ok := r.Ranks[key]
		if !ok || rank <= 0 {
			return nil
		}
		ranks[i] = rank
	}
	return ranks
}
