// Package valuation exposes the quantitative pipeline over HTTP. Handlers
// are mechanical wrappers: parse the ticker, call the orchestrator, map the
// error category onto a status code.
package valuation

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"hybrid_valuation/pkg/core/pipeline"
)

// Handler binds the valuation operations.
type Handler struct {
	orch *pipeline.Orchestrator
}

// NewHandler creates the handler.
func NewHandler(orch *pipeline.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Register mounts the routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stocks/{ticker}/valuation", h.getValuation)
	mux.HandleFunc("POST /api/v1/stocks/{ticker}/valuation/refresh", h.refreshValuation)
	mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)
}

func (h *Handler) getValuation(w http.ResponseWriter, r *http.Request) {
	result, err := h.orch.Valuation(r.Context(), r.PathValue("ticker"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) refreshValuation(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if err := h.orch.Refresh(r.Context(), ticker, pipeline.ScopeExtraction); err != nil {
		WriteError(w, err)
		return
	}
	result, err := h.orch.Valuation(r.Context(), ticker)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.orch.CacheStats())
}

// WriteJSON writes a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps the error taxonomy onto HTTP status codes. The category
// and sanitized message are all a caller ever sees.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrUnknownTicker):
		status = http.StatusNotFound
	case errors.Is(err, pipeline.ErrInsufficientSourceData),
		errors.Is(err, pipeline.ErrInvalidInputs):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrExtractionFailed),
		errors.Is(err, pipeline.ErrAnalysisFailed),
		errors.Is(err, pipeline.ErrValuationFailed),
		errors.Is(err, pipeline.ErrNumericOverflow):
		status = http.StatusBadGateway
	}
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}
