package handlers

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/go-chi/chi/v5"
)

// MarketHandler passes curated picks and live prices through from the
// backend for the logged-in user.
type MarketHandler struct {
	logger *common.Logger
}

// NewMarketHandler creates a market handler.
func NewMarketHandler(logger *common.Logger) *MarketHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &MarketHandler{logger: logger}
}

// TopPicks handles GET /api/top-picks.
func (h *MarketHandler) TopPicks(w http.ResponseWriter, r *http.Request) {
	picks, err := SessionFrom(r.Context()).Backend().TopPicks(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"picks": picks})
}

// Price handles GET /api/market/price/{symbol}. The backend's quote is
// returned unchanged.
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	quote, err := SessionFrom(r.Context()).Backend().Price(r.Context(), symbol)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(quote)
}
