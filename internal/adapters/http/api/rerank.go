package api

import (
	"context"
	"net/http"

	"github.com/okian/hoopsrank/internal/domain/rerank"
)

// RerankDependencies defines the interface for relative re-ranking.
type RerankDependencies interface {
	RerankTeams(ctx context.Context, date string, teams []string) ([]rerank.Row, error)
	Rerank(rows []rerank.Row) []rerank.Row
}

// RerankHandler re-derives ranks within a caller-chosen population.
type RerankHandler struct {
	deps RerankDependencies
}

// NewRerankHandler creates a new rerank handler.
func NewRerankHandler(deps RerankDependencies) *RerankHandler {
	return &RerankHandler{deps: deps}
}

type rerankRequest struct {
	Rows []rowView `json:"rows"`
}

type rerankResponse struct {
	Rows []rowView `json:"rows"`
}

// HandleTeams handles GET /rerank?teams=a,b,c&date=YYYY-MM-DD requests.
func (h *RerankHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.rerank_teams"
	teams := splitList(r.URL.Query().Get("teams"))
	if len(teams) == 0 {
		writeFailure(w, r, NewKind(op, ErrBadRequest))
		return
	}
	rows, err := h.deps.RerankTeams(r.Context(), r.URL.Query().Get("date"), teams)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rerankResponse{Rows: toRowViews(rows)})
}

// HandleRows handles POST /rerank with caller-supplied rows.
func (h *RerankHandler) HandleRows(w http.ResponseWriter, r *http.Request) {
	const op = "api.rerank_rows"
	var req rerankRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	for _, row := range req.Rows {
		if row.Team == "" {
			writeFailure(w, r, NewKind(op, ErrBadRequest))
			return
		}
	}
	out := h.deps.Rerank(fromRowViews(req.Rows))
	writeJSON(w, http.StatusOK, rerankResponse{Rows: toRowViews(out)})
}
