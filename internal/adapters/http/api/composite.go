package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/hoopsrank/internal/domain/model"
)

// CompositeDependencies defines the interface for composite ranking reads.
type CompositeDependencies interface {
	DefaultComposite(ctx context.Context, date string) ([]model.CompositeRankingRow, error)
	Composite(ctx context.Context, date string, sources []string) ([]model.CompositeRankingRow, error)
}

// CompositeHandler serves composite rankings.
type CompositeHandler struct {
	deps CompositeDependencies
}

// NewCompositeHandler creates a new composite handler.
func NewCompositeHandler(deps CompositeDependencies) *CompositeHandler {
	return &CompositeHandler{deps: deps}
}

// HandleDefault handles GET /composite?date=YYYY-MM-DD. Without a date the
// latest ingested date is used.
func (h *CompositeHandler) HandleDefault(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.DefaultComposite(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompositeResponse(rows))
}

// HandleSubset handles GET /composite/{date}?sources=kp,em requests.
func (h *CompositeHandler) HandleSubset(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Composite(r.Context(), r.PathValue("date"), splitList(r.URL.Query().Get("sources")))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompositeResponse(rows))
}

// splitList parses a comma separated query value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
