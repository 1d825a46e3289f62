// Package model contains domain models passed between layers.
package model

// DateLayout is the calendar-date format used for every ranking date.
const DateLayout = "2006-01-02"

// Dimension names one of the three rating dimensions a source may publish.
type Dimension string

// Rating dimensions.
const (
	Overall   Dimension = "overall"
	Offensive Dimension = "offensive"
	Defensive Dimension = "defensive"
)

// Dimensions lists every dimension in presentation order.
var Dimensions = []Dimension{Overall, Offensive, Defensive} //nolint:gochecknoglobals // fixed enumeration

// RawRow is one team's raw values for one source and date as handed over by
// the acquisition collaborator. A nil value means the source published null.
type RawRow struct {
	Team   string              `json:"team"`
	Values map[string]*float64 `json:"values"`
	// Ranks holds ranks published by the source, keyed like Values. Optional.
	Ranks map[string]int `json:"ranks,omitempty"`
}

// Metric is one dimension of a TeamMetricRow.
type Metric struct {
	Raw  float64
	Rank int
	Z    float64
}

// TeamMetricRow is one team, one date, one source. Offensive and Defensive
// are nil when the source does not define that dimension.
type TeamMetricRow struct {
	Date      string
	Team      string
	Source    string
	Overall   Metric
	Offensive *Metric
	Defensive *Metric
}

// Metric returns the row's value for d.
func (r *TeamMetricRow) Metric(d Dimension) (Metric, bool) {
	switch d {
	case Overall:
		return r.Overall, true
	case Offensive:
		if r.Offensive != nil {
			return *r.Offensive, true
		}
	case Defensive:
		if r.Defensive != nil {
			return *r.Defensive, true
		}
	}
	return Metric{}, false
}

// CompositeRankingRow is one team, one date, one source subset.
type CompositeRankingRow struct {
	Date          string
	Team          string
	Subset        string
	Overall       float64
	Offensive     float64
	Defensive     float64
	OverallRank   int
	OffensiveRank int
	DefensiveRank int
}

// Key returns the row's identity tuple.
func (r *CompositeRankingRow) Key() CompositeKey {
	return CompositeKey{Date: r.Date, Team: r.Team, Subset: r.Subset}
}

// Value returns the averaged z-score for d.
func (r *CompositeRankingRow) Value(d Dimension) float64 {
	switch d {
	case Offensive:
		return r.Offensive
	case Defensive:
		return r.Defensive
	default:
		return r.Overall
	}
}

// Rank returns the 1-based rank for d.
func (r *CompositeRankingRow) Rank(d Dimension) int {
	switch d {
	case Offensive:
		return r.OffensiveRank
	case Defensive:
		return r.DefensiveRank
	default:
		return r.OverallRank
	}
}

// CompositeKey identifies a composite row; writes keyed by it are upserts.
type CompositeKey struct {
	Date   string
	Team   string
	Subset string
}

// MetricKey identifies a per-source metric row.
type MetricKey struct {
	Date   string
	Team   string
	Source string
}

// TeamRankVector is a team's current per-field league rank snapshot.
type TeamRankVector struct {
	Team  string
	Ranks map[string]float64
}

// FieldWeight weights one rank-vector field inside a Category.
type FieldWeight struct {
	Field  string  `json:"field" koanf:"field"`
	Weight float64 `json:"weight" koanf:"weight"`
}

// Category is a named similarity weighting scheme.
type Category struct {
	Name    string        `json:"name"`
	Weights []FieldWeight `json:"weights"`
}
