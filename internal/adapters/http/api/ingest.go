package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/okian/hoopsrank/internal/app"
	"github.com/okian/hoopsrank/internal/domain/backfill"
	"github.com/okian/hoopsrank/internal/domain/model"
)

// IngestDependencies defines the interface for write operations.
type IngestDependencies interface {
	Ingest(ctx context.Context, date string, batches map[string][]model.RawRow) (app.IngestReport, error)
	Backfill(ctx context.Context, dates ...string) (backfill.Report, error)
}

// IngestHandler accepts source batches and triggers backfills.
type IngestHandler struct {
	deps IngestDependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

type ingestResponse struct {
	Report app.IngestReport `json:"report"`
	Error  string           `json:"error,omitempty"`
}

// HandleIngest handles POST /ingest/{date}. The body maps source keys to raw
// rows. A cycle where some sources failed after validation answers 207 with
// the per-source report.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	var batches map[string][]model.RawRow
	if err := decode(r, &batches); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	report, err := h.deps.Ingest(r.Context(), r.PathValue("date"), batches)
	if err != nil {
		if len(report.Sources) > 0 {
			writeJSON(w, http.StatusMultiStatus, ingestResponse{Report: report, Error: err.Error()})
			return
		}
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Report: report})
}

type backfillRequest struct {
	Dates []string `json:"dates"`
}

// HandleBackfill handles POST /backfill with an optional {"dates": [...]} body.
func (h *IngestHandler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	const op = "api.backfill"
	var req backfillRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	report, err := h.deps.Backfill(r.Context(), req.Dates...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
