// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/hoopsrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CompositeDependencies
	RerankDependencies
	SimilarDependencies
	IngestDependencies
	StatsProvider
}

// Server wires HTTP routes for the ranking API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	compositeHandler *CompositeHandler
	rerankHandler    *RerankHandler
	similarHandler   *SimilarHandler
	ingestHandler    *IngestHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		compositeHandler: NewCompositeHandler(deps),
		rerankHandler:    NewRerankHandler(deps),
		similarHandler:   NewSimilarHandler(deps),
		ingestHandler:    NewIngestHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /composite", MetricsMiddleware(s.compositeHandler.HandleDefault, "composite"))
	mux.HandleFunc("GET /composite/{date}", MetricsMiddleware(s.compositeHandler.HandleSubset, "composite_subset"))
	mux.HandleFunc("GET /rerank", MetricsMiddleware(s.rerankHandler.HandleTeams, "rerank"))
	mux.HandleFunc("POST /rerank", MetricsMiddleware(s.rerankHandler.HandleRows, "rerank_rows"))
	mux.HandleFunc("POST /similar", MetricsMiddleware(s.similarHandler.HandleSimilar, "similar"))
	mux.HandleFunc("POST /ingest/{date}", MetricsMiddleware(s.ingestHandler.HandleIngest, "ingest"))
	mux.HandleFunc("POST /backfill", MetricsMiddleware(s.ingestHandler.HandleBackfill, "backfill"))

	logger.Get().Named("api").Debug(ctx, "routes registered")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status and logs server-side failures.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
