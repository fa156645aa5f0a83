// Package cycle runs one trading cycle end to end: read strategy targets,
// combine, plan, execute, attribute and report.
package cycle

import (
	"fmt"

	"github.com/wonny/stratbook/internal/gateway"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/marketdata"
	"github.com/wonny/stratbook/internal/sheets"
	"github.com/wonny/stratbook/internal/strategyconfig"
	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/config"
	"github.com/wonny/stratbook/pkg/logger"
)

// Deps is everything a cycle talks to. The caller builds it and owns the
// lifecycle of every handle in it (gateway session, database, files).
// ⭐ SSOT: 사이클 의존성은 이 구조체로만 전달
type Deps struct {
	Config     *config.Config
	Strategies *strategyconfig.Config
	Book       *ledger.Book
	Trades     tradelog.Store
	Gateway    gateway.Gateway
	Sheets     *sheets.Store // strategy inputs and reports
	Prices     marketdata.PriceSource
	Logger     *logger.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("config is required")
	case d.Strategies == nil || len(d.Strategies.Strategies) == 0:
		return fmt.Errorf("at least one strategy is required")
	case d.Book == nil:
		return fmt.Errorf("position book is required")
	case len(d.Book.Strategies) != len(d.Strategies.Strategies):
		return fmt.Errorf("book has %d strategy ledgers for %d strategies", len(d.Book.Strategies), len(d.Strategies.Strategies))
	case d.Trades == nil:
		return fmt.Errorf("trade ledger is required")
	case d.Gateway == nil:
		return fmt.Errorf("gateway is required")
	case d.Sheets == nil:
		return fmt.Errorf("sheet store is required")
	case d.Prices == nil:
		return fmt.Errorf("price source is required")
	case d.Logger == nil:
		return fmt.Errorf("logger is required")
	}
	return nil
}
