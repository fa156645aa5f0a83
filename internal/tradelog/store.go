// Package tradelog is the durable trade ledger: append-only executed trades
// and the per-strategy cash carry-forward.
package tradelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/pkg/config"
	"github.com/wonny/stratbook/pkg/database"
)

// ErrNoCash is returned when a strategy has no cash record yet
var ErrNoCash = errors.New("no cash record")

// Store persists trades and strategy cash. Strategies are addressed by their
// position in the strategy list.
// ⭐ SSOT: 거래 원장 / 전략별 현금 이월은 여기서만 저장
type Store interface {
	// Migrate creates the schema if needed
	Migrate(ctx context.Context) error

	// InsertTrade appends a trade and returns its id
	InsertTrade(ctx context.Context, rec contracts.TradeRecord) (int64, error)

	// RecentTrades returns up to limit trades, newest first
	RecentTrades(ctx context.Context, limit int) ([]contracts.TradeRecord, error)

	// TradesOn returns the trades dated date in insertion order
	TradesOn(ctx context.Context, date string) ([]contracts.TradeRecord, error)

	// StoreCash writes (strategy, date) -> cash, replacing an existing row
	StoreCash(ctx context.Context, strategy int, date string, cash decimal.Decimal) error

	// PreviousCash returns the most recently dated cash for a strategy, or ErrNoCash
	PreviousCash(ctx context.Context, strategy int) (decimal.Decimal, error)

	// CashHistory returns up to limit cash rows for a strategy, newest first
	CashHistory(ctx context.Context, strategy int, limit int) ([]contracts.CashRecord, error)

	// LatestCash returns the newest cash row of every strategy, by strategy index
	LatestCash(ctx context.Context) ([]contracts.CashRecord, error)
}

// New returns the store for db's driver
func New(db *database.DB) (Store, error) {
	switch db.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(db.Pool), nil
	case config.DriverSQLite:
		return NewSQLiteStore(db.SQL), nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", db.Driver)
	}
}

// canonicalDate normalizes trade dates so lookups by date match
func canonicalDate(date string) string {
	out, _ := dates.Normalize(date)
	return out
}

func parseDecimal(text string) (decimal.Decimal, error) {
	if text == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", text, err)
	}
	return d, nil
}
