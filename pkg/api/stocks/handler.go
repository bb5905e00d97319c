// Package stocks exposes ticker listing and real-time quotes.
package stocks

import (
	"net/http"

	"hybrid_valuation/pkg/api/valuation"
	"hybrid_valuation/pkg/core/marketdata"
	"hybrid_valuation/pkg/core/pipeline"
)

// Handler binds the stock-level operations.
type Handler struct {
	orch   *pipeline.Orchestrator
	quotes *marketdata.Client
}

// NewHandler creates the handler. quotes may be nil when no quote endpoint
// is configured.
func NewHandler(orch *pipeline.Orchestrator, quotes *marketdata.Client) *Handler {
	return &Handler{orch: orch, quotes: quotes}
}

// Register mounts the routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stocks", h.listTickers)
	mux.HandleFunc("GET /api/v1/stocks/{ticker}/price", h.getPrice)
}

func (h *Handler) listTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.orch.ListTickers()
	if err != nil {
		valuation.WriteError(w, err)
		return
	}
	valuation.WriteJSON(w, http.StatusOK, map[string]interface{}{"tickers": tickers})
}

func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		valuation.WriteJSON(w, http.StatusNotImplemented,
			map[string]string{"error": "no quote endpoint configured"})
		return
	}
	quote, err := h.quotes.GetQuote(r.Context(), r.PathValue("ticker"))
	if err != nil {
		valuation.WriteError(w, err)
		return
	}
	valuation.WriteJSON(w, http.StatusOK, quote)
}
