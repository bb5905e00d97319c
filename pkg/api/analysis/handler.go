// Package analysis exposes the memo pipeline over HTTP.
package analysis

import (
	"net/http"

	"hybrid_valuation/pkg/api/valuation"
	"hybrid_valuation/pkg/core/pipeline"
)

// Handler binds the analysis operations.
type Handler struct {
	orch *pipeline.Orchestrator
}

// NewHandler creates the handler.
func NewHandler(orch *pipeline.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Register mounts the routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stocks/{ticker}/analysis", h.getAnalysis)
	mux.HandleFunc("POST /api/v1/stocks/{ticker}/analysis/refresh", h.refreshAnalysis)
}

func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	memo, err := h.orch.Analysis(r.Context(), r.PathValue("ticker"))
	if err != nil {
		valuation.WriteError(w, err)
		return
	}
	valuation.WriteJSON(w, http.StatusOK, memo)
}

func (h *Handler) refreshAnalysis(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if err := h.orch.Refresh(r.Context(), ticker, pipeline.ScopeAnalysis); err != nil {
		valuation.WriteError(w, err)
		return
	}
	memo, err := h.orch.Analysis(r.Context(), ticker)
	if err != nil {
		valuation.WriteError(w, err)
		return
	}
	valuation.WriteJSON(w, http.StatusOK, memo)
}
