// Package synth generates synthetic per-source rating batches for local runs,
// demos and load checks. Output is deterministic for a given seed.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
)

// Noise applied to each source's view of a team's latent ratings.
const (
	sourceNoise = 0.35
	dayDrift    = 0.05
)

// Team is the latent strength every source observes with noise.
type Team struct {
	Key     string
	Offense float64
	Defense float64
}

// League is a fixed set of teams.
type League struct {
	Teams []Team
	rng   *rand.Rand
}

// Teams returns n stable team keys: team-001, team-002, ...
func Teams(n int) []string {
	out := make([]string, n)
	width := len(fmt.Sprint(n))
	if width < 3 {
		width = 3
	}
	for i := range out {
		out[i] = fmt.Sprintf("team-%0*d", width, i+1)
	}
	return out
}

// RandomTeams returns n unique opaque team keys.
func RandomTeams(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.NewString()
	}
	return out
}

// NewLeague draws latent ratings for keys.
func NewLeague(keys []string, seed int64) *League {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic data, not security sensitive
	l := &League{Teams: make([]Team, len(keys)), rng: rng}
	for i, k := range keys {
		l.Teams[i] = Team{Key: k, Offense: rng.NormFloat64(), Defense: rng.NormFloat64()}
	}
	return l
}

// Advance moves every team's latent ratings by a small random step, as a day
// of games would.
func (l *League) Advance() {
	for i := range l.Teams {
		l.Teams[i].Offense += dayDrift * l.rng.NormFloat64()
		l.Teams[i].Defense += dayDrift * l.rng.NormFloat64()
	}
}

// Batches renders one raw batch per catalog source from the current ratings.
// Sources with only an overall field publish it as an integer rank.
func (l *League) Batches(cat *catalog.Catalog) map[string][]model.RawRow {
	out := make(map[string][]model.RawRow, cat.Len())
	for _, src := range cat.Sources() {
		out[src.Key] = l.batch(src)
	}
	return out
}

func (l *League) batch(src catalog.SourceSystem) []model.RawRow {
	rows := make([]model.RawRow, len(l.Teams))
	overall := make([]float64, len(l.Teams))
	for i, t := range l.Teams {
		off := t.Offense + sourceNoise*l.rng.NormFloat64()
		def := t.Defense + sourceNoise*l.rng.NormFloat64()
		overall[i] = off + def
		rows[i] = model.RawRow{Team: t.Key, Values: make(map[string]*float64, 3)}

		if ref, ok := src.Field(model.Offensive); ok {
			rows[i].Values[ref.Key] = ptr(scale(off, 110, 6, ref.LowerIsBetter))
		}
		if ref, ok := src.Field(model.Defensive); ok {
			rows[i].Values[ref.Key] = ptr(scale(def, 100, 6, ref.LowerIsBetter))
		}
	}

	if src.RankOnly() {
		order := make([]int, len(rows))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return overall[order[a]] > overall[order[b]] })
		for pos, idx := range order {
			rows[idx].Values[src.Overall.Key] = ptr(float64(pos + 1))
		}
		return rows
	}
	for i := range rows {
		rows[i].Values[src.Overall.Key] = ptr(scale(overall[i], 0, 10, src.Overall.LowerIsBetter))
	}
	return rows
}

// scale maps a latent value where higher is better onto a published scale.
func scale(v, center, spread float64, lowerIsBetter bool) float64 {
	if lowerIsBetter {
		v = -v
	}
	return math.Round((center+spread*v)*100) / 100
}

func ptr(v float64) *float64 { return &v }
