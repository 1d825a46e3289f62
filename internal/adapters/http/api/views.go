package api

import (
	"math"

	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/rerank"
)

// number renders NaN and infinities as JSON null.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNumber(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

type compositeView struct {
	Rank          int      `json:"rank"`
	Team          string   `json:"team"`
	Overall       *float64 `json:"overall"`
	Offensive     *float64 `json:"offensive"`
	Defensive     *float64 `json:"defensive"`
	OverallRank   int      `json:"overall_rank"`
	OffensiveRank int      `json:"offensive_rank"`
	DefensiveRank int      `json:"defensive_rank"`
}

type compositeResponse struct {
	Date   string          `json:"date"`
	Subset string          `json:"subset"`
	Teams  []compositeView `json:"teams"`
}

func newCompositeResponse(rows []model.CompositeRankingRow) compositeResponse {
	resp := compositeResponse{Teams: make([]compositeView, len(rows))}
	for i := range rows {
		r := &rows[i]
		resp.Date, resp.Subset = r.Date, r.Subset
		resp.Teams[i] = compositeView{
			Rank:          r.OverallRank,
			Team:          r.Team,
			Overall:       number(r.Overall),
			Offensive:     number(r.Offensive),
			Defensive:     number(r.Defensive),
			OverallRank:   r.OverallRank,
			OffensiveRank: r.OffensiveRank,
			DefensiveRank: r.DefensiveRank,
		}
	}
	return resp
}

type rowView struct {
	Team   string              `json:"team"`
	Fields map[string]*float64 `json:"fields"`
}

func toRowViews(rows []rerank.Row) []rowView {
	out := make([]rowView, len(rows))
	for i, r := range rows {
		fields := make(map[string]*float64, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = number(v)
		}
		out[i] = rowView{Team: r.Team, Fields: fields}
	}
	return out
}

func fromRowViews(views []rowView) []rerank.Row {
	out := make([]rerank.Row, len(views))
	for i, v := range views {
		fields := make(map[string]float64, len(v.Fields))
		for k, f := range v.Fields {
			fields[k] = fromNumber(f)
		}
		out[i] = rerank.Row{Team: v.Team, Fields: fields}
	}
	return out
}
