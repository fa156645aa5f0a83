package handlers

import (
	"net/http"

	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/logger"
)

// LedgerHandler serves trade records and strategy cash
type LedgerHandler struct {
	trades tradelog.Store
	logger *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(trades tradelog.Store, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		trades: trades,
		logger: log,
	}
}

// GetTrades returns the most recent trades
// GET /api/trades?limit=50
func (h *LedgerHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)

	trades, err := h.trades.RecentTrades(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trades")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve trades")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetCash returns the latest cash balance of every strategy
// GET /api/cash
func (h *LedgerHandler) GetCash(w http.ResponseWriter, r *http.Request) {
	cash, err := h.trades.LatestCash(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get cash")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve cash")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cash": cash,
	})
}
