// Package similarity scores how statistically alike two teams are from their
// league-wide rank vectors.
package similarity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/rerank"
	"github.com/okian/hoopsrank/pkg/logger"
	"github.com/okian/hoopsrank/pkg/metrics"
)

// OffDefDiff is the composite offensive rank minus the composite defensive
// rank. Its range is signed, roughly [-ceiling, ceiling].
const OffDefDiff = "offDefDiff"

// Defaults.
const (
	DefaultCeiling         = 364
	DefaultSignedFieldSpan = 2
	DefaultMinScore        = 60
)

// Match is one scored candidate.
type Match struct {
	Team     string  `json:"team"`
	Score    int     `json:"score"`
	Distance float64 `json:"distance"`
}

// Scorer compares rank vectors under a weighting category. It holds no
// per-call state and is safe for concurrent use.
type Scorer struct {
	ceiling  float64
	span     float64
	minScore int
	signed   map[string]bool
	logger   logger.Logger
}

// New creates a Scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		ceiling:  DefaultCeiling,
		span:     DefaultSignedFieldSpan,
		minScore: DefaultMinScore,
		signed:   map[string]bool{OffDefDiff: true},
		logger:   logger.Get().Named("similarity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ceiling returns the normalization ceiling.
func (s *Scorer) Ceiling() float64 { return s.ceiling }

type weight struct {
	field string
	w     float64
}

func normalizeWeights(cat model.Category) ([]weight, error) {
	if len(cat.Weights) == 0 {
		return nil, fmt.Errorf("%w: %q has no weights", ErrInvalidCategory, cat.Name)
	}
	var sum float64
	for _, fw := range cat.Weights {
		if strings.TrimSpace(fw.Field) == "" {
			return nil, fmt.Errorf("%w: %q has an unnamed field", ErrInvalidCategory, cat.Name)
		}
		if fw.Weight < 0 || math.IsNaN(fw.Weight) || math.IsInf(fw.Weight, 0) {
			return nil, fmt.Errorf("%w: %q weight for %q is %v", ErrInvalidCategory, cat.Name, fw.Field, fw.Weight)
		}
		sum += fw.Weight
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: %q weights sum to zero", ErrInvalidCategory, cat.Name)
	}
	out := make([]weight, len(cat.Weights))
	for i, fw := range cat.Weights {
		out[i] = weight{field: fw.Field, w: fw.Weight / sum}
	}
	return out, nil
}

// distance returns the weighted distance in [0,1], or false when b lacks a
// weighted field.
func (s *Scorer) distance(weights []weight, a, b model.TeamRankVector) (float64, bool) {
	var total float64
	for _, w := range weights {
		av, aok := a.Ranks[w.field]
		bv, bok := b.Ranks[w.field]
		if !aok || !bok || math.IsNaN(av) || math.IsNaN(bv) {
			return 0, false
		}
		div := s.ceiling
		if s.signed[w.field] {
			div *= s.span
		}
		d := math.Min(math.Abs(av-bv)/div, 1)
		total += math.Sqrt(d) * w.w
	}
	return math.Min(math.Max(total, 0), 1), true
}

func toScore(dist float64) int {
	return int(math.Round(100 * (1 - dist)))
}

// Pair scores b against a without any threshold.
func (s *Scorer) Pair(cat model.Category, a, b model.TeamRankVector) (int, error) {
	if s.ceiling <= 0 {
		return 0, ErrInvalidCeiling
	}
	weights, err := normalizeWeights(cat)
	if err != nil {
		return 0, err
	}
	dist, ok := s.distance(weights, a, b)
	if !ok {
		return 0, fmt.Errorf("%w: %s or %s", ErrMissingField, a.Team, b.Team)
	}
	return toScore(dist), nil
}

// Score ranks pool against target. Candidates missing a weighted field or
// scoring under the threshold are dropped, as is the target's own team.
// Results are ordered by score descending, then team key.
func (s *Scorer) Score(cat model.Category, target model.TeamRankVector, pool []model.TeamRankVector) ([]Match, error) {
	if s.ceiling <= 0 {
		return nil, ErrInvalidCeiling
	}
	weights, err := normalizeWeights(cat)
	if err != nil {
		return nil, err
	}
	for _, w := range weights {
		if v, ok := target.Ranks[w.field]; !ok || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s lacks %q", ErrMissingField, target.Team, w.field)
		}
	}

	var missing, below int
	out := make([]Match, 0, len(pool))
	for _, c := range pool {
		if c.Team == target.Team {
			continue
		}
		dist, ok := s.distance(weights, target, c)
		if !ok {
			missing++
			continue
		}
		score := toScore(dist)
		if score < s.minScore {
			below++
			continue
		}
		out = append(out, Match{Team: c.Team, Score: score, Distance: dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Team < out[j].Team
	})

	metrics.RecordSimilarityScored(cat.Name, len(out))
	if missing > 0 {
		metrics.RecordSimilarityDropped(cat.Name, "missing_field", missing)
		s.logger.Debug(context.Background(), "dropped candidates with missing fields",
			logger.String("category", cat.Name),
			logger.Int("count", missing),
		)
	}
	if below > 0 {
		metrics.RecordSimilarityDropped(cat.Name, "below_threshold", below)
	}
	return out, nil
}

// ScoreAll scores the same pool independently under every category.
func (s *Scorer) ScoreAll(cats []model.Category, target model.TeamRankVector, pool []model.TeamRankVector) (map[string][]Match, error) {
	out := make(map[string][]Match, len(cats))
	for _, c := range cats {
		m, err := s.Score(c, target, pool)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c.Name, err)
		}
		out[c.Name] = m
	}
	return out, nil
}

// BuildVectors derives one rank vector per team from a date's metric rows and
// its default composite rows, ordered by team key.
func BuildVectors(metricRows []model.TeamMetricRow, compositeRows []model.CompositeRankingRow) []model.TeamRankVector {
	byTeam := make(map[string]map[string]float64)
	ranks := func(team string) map[string]float64 {
		r, ok := byTeam[team]
		if !ok {
			r = make(map[string]float64)
			byTeam[team] = r
		}
		return r
	}
	for i := range metricRows {
		m := &metricRows[i]
		r := ranks(m.Team)
		for _, d := range model.Dimensions {
			if v, ok := m.Metric(d); ok {
				r[rerank.Column(m.Source, d)] = float64(v.Rank)
			}
		}
	}
	for i := range compositeRows {
		c := &compositeRows[i]
		r := ranks(c.Team)
		for _, d := range model.Dimensions {
			r[rerank.Column(rerank.CompositePrefix, d)] = float64(c.Rank(d))
		}
		r[OffDefDiff] = float64(c.OffensiveRank - c.DefensiveRank)
	}

	out := make([]model.TeamRankVector, 0, len(byTeam))
	for team, r := range byTeam {
		out = append(out, model.TeamRankVector{Team: team, Ranks: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out
}

// Find returns the vector for team.
func Find(vectors []model.TeamRankVector, team string) (model.TeamRankVector, error) {
	for _, v := range vectors {
		if v.Team == team {
			return v, nil
		}
	}
	return model.TeamRankVector{}, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
}

// DefaultCategories returns the overall, offense and defense weightings.
func DefaultCategories() []model.Category {
	return []model.Category{
		{Name: "overall", Weights: []model.FieldWeight{
			{Field: "composite_overall", Weight: 0.4},
			{Field: "kenpom_overall", Weight: 0.15},
			{Field: "evanmiya_overall", Weight: 0.15},
			{Field: "barttorvik_overall", Weight: 0.15},
			{Field: "net_overall", Weight: 0.15},
		}},
		{Name: "offense", Weights: []model.FieldWeight{
			{Field: "composite_offensive", Weight: 0.4},
			{Field: "kenpom_offensive", Weight: 0.2},
			{Field: "evanmiya_offensive", Weight: 0.1},
			{Field: "barttorvik_offensive", Weight: 0.2},
			{Field: OffDefDiff, Weight: 0.1},
		}},
		{Name: "defense", Weights: []model.FieldWeight{
			{Field: "composite_defensive", Weight: 0.4},
			{Field: "kenpom_defensive", Weight: 0.2},
			{Field: "evanmiya_defensive", Weight: 0.1},
			{Field: "barttorvik_defensive", Weight: 0.2},
			{Field: OffDefDiff, Weight: 0.1},
		}},
	}
}
