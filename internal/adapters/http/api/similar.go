package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/hoopsrank/internal/app"
)

// SimilarDependencies defines the interface for similarity queries.
type SimilarDependencies interface {
	Similar(ctx context.Context, q app.SimilarityQuery) (app.SimilarityResult, error)
}

// SimilarHandler scores teams against a target team.
type SimilarHandler struct {
	deps SimilarDependencies
}

// NewSimilarHandler creates a new similarity handler.
func NewSimilarHandler(deps SimilarDependencies) *SimilarHandler {
	return &SimilarHandler{deps: deps}
}

// HandleSimilar handles POST /similar requests.
func (h *SimilarHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	const op = "api.similar"
	var q app.SimilarityQuery
	if err := decode(r, &q); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(q.Team) == "" {
		writeFailure(w, r, NewKind(op, ErrBadRequest))
		return
	}
	res, err := h.deps.Similar(r.Context(), q)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
