package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/strategyconfig"
	"github.com/wonny/stratbook/pkg/logger"
)

// PositionsHandler serves the position ledgers
// ⭐ SSOT: 포지션 조회 API는 이 구조체에서만
type PositionsHandler struct {
	book       *ledger.Book
	strategies *strategyconfig.Config
	logger     *logger.Logger
}

// NewPositionsHandler creates a new positions handler
func NewPositionsHandler(book *ledger.Book, strategies *strategyconfig.Config, log *logger.Logger) *PositionsHandler {
	return &PositionsHandler{
		book:       book,
		strategies: strategies,
		logger:     log,
	}
}

// StrategyPositions is one strategy's ledger
type StrategyPositions struct {
	Index     int              `json:"index"`
	Name      string           `json:"name"`
	Positions map[string]int64 `json:"positions"`
}

// GetPositions returns the combined ledger and every strategy ledger
// GET /api/positions
func (h *PositionsHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	snap := h.book.Snapshot()

	strategies := make([]StrategyPositions, len(snap.Strategies))
	for i, positions := range snap.Strategies {
		strategies[i] = StrategyPositions{Index: i, Name: h.name(i), Positions: positions}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"combined":   snap.Combined,
		"strategies": strategies,
	})
}

// GetStrategyPositions returns one strategy's ledger, by name or 1-based number
// GET /api/positions/{strategy}
func (h *PositionsHandler) GetStrategyPositions(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["strategy"]

	idx := h.strategies.Index(key)
	if idx < 0 {
		if n, err := strconv.Atoi(key); err == nil {
			idx = n - 1
		}
	}

	positions := h.book.Snapshot().Strategy(idx)
	if positions == nil {
		respondError(w, http.StatusNotFound, "Unknown strategy")
		return
	}

	respondJSON(w, http.StatusOK, StrategyPositions{Index: idx, Name: h.name(idx), Positions: positions})
}

// GetDrift returns tickers where the combined ledger disagrees with the strategy sum
// GET /api/positions/drift
func (h *PositionsHandler) GetDrift(w http.ResponseWriter, r *http.Request) {
	drift := h.book.Drift()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"drift": drift,
		"count": len(drift),
	})
}

func (h *PositionsHandler) name(idx int) string {
	if idx >= 0 && idx < len(h.strategies.Strategies) {
		return h.strategies.Strategies[idx].Name
	}
	return ""
}
