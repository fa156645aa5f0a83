package tradelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	date                TEXT    NOT NULL,
	ticker              TEXT    NOT NULL,
	net_units           INTEGER NOT NULL,
	total_abs_units     INTEGER NOT NULL,
	trade_price         TEXT    NOT NULL,
	adj_close           TEXT    NOT NULL,
	trade_type          TEXT    NOT NULL,
	pre_trade_position  INTEGER NOT NULL,
	delta_shares        INTEGER NOT NULL,
	post_trade_position INTEGER NOT NULL,
	commission          TEXT    NOT NULL,
	interest            TEXT    NOT NULL,
	nav                 TEXT    NOT NULL,
	timestamp           TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_date ON trades (date);

CREATE TABLE IF NOT EXISTS strategy_cash (
	strategy_idx INTEGER NOT NULL,
	date         TEXT    NOT NULL,
	cash         TEXT    NOT NULL,
	PRIMARY KEY (strategy_idx, date)
);
`

const tradeColumns = `id, date, ticker, net_units, total_abs_units, trade_price, adj_close, trade_type,
	pre_trade_position, delta_shares, post_trade_position, commission, interest, nav, timestamp`

// SQLiteStore is the embedded trade ledger. Every call, reads included,
// runs under one mutex.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore wraps an open sqlite handle
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate creates the tables
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate trade ledger: %w", err)
	}
	return nil
}

// InsertTrade appends one trade
func (s *SQLiteStore) InsertTrade(ctx context.Context, rec contracts.TradeRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			date, ticker, net_units, total_abs_units, trade_price, adj_close, trade_type,
			pre_trade_position, delta_shares, post_trade_position, commission, interest, nav, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		canonicalDate(rec.Date), rec.Ticker, rec.NetUnits, rec.TotalAbsUnits,
		rec.TradePrice.String(), rec.AdjClose.String(), rec.TradeType,
		rec.PreTradePosition, rec.DeltaShares, rec.PostTradePosition,
		rec.Commission.String(), rec.Interest.String(), rec.NAV.String(),
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read trade id: %w", err)
	}
	return id, nil
}

// RecentTrades returns the newest trades first
func (s *SQLiteStore) RecentTrades(ctx context.Context, limit int) ([]contracts.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanSQLiteTrades(rows)
}

// TradesOn returns one day's trades
func (s *SQLiteStore) TradesOn(ctx context.Context, date string) ([]contracts.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE date = ? ORDER BY id ASC`, canonicalDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanSQLiteTrades(rows)
}

func scanSQLiteTrades(rows *sql.Rows) ([]contracts.TradeRecord, error) {
	defer rows.Close()

	trades := make([]contracts.TradeRecord, 0)
	for rows.Next() {
		var (
			rec                                   contracts.TradeRecord
			price, adjClose, commission, interest string
			nav, timestamp                        string
		)
		err := rows.Scan(
			&rec.ID, &rec.Date, &rec.Ticker, &rec.NetUnits, &rec.TotalAbsUnits,
			&price, &adjClose, &rec.TradeType,
			&rec.PreTradePosition, &rec.DeltaShares, &rec.PostTradePosition,
			&commission, &interest, &nav, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if err := fillAmounts(&rec, price, adjClose, commission, interest, nav); err != nil {
			return nil, err
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("invalid trade timestamp %q: %w", timestamp, err)
		}
		trades = append(trades, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}

func fillAmounts(rec *contracts.TradeRecord, price, adjClose, commission, interest, nav string) error {
	var err error
	if rec.TradePrice, err = parseDecimal(price); err != nil {
		return err
	}
	if rec.AdjClose, err = parseDecimal(adjClose); err != nil {
		return err
	}
	if rec.Commission, err = parseDecimal(commission); err != nil {
		return err
	}
	if rec.Interest, err = parseDecimal(interest); err != nil {
		return err
	}
	if rec.NAV, err = parseDecimal(nav); err != nil {
		return err
	}
	return nil
}

// StoreCash upserts (strategy, date) -> cash
func (s *SQLiteStore) StoreCash(ctx context.Context, strategy int, date string, cash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_cash (strategy_idx, date, cash) VALUES (?, ?, ?)
		ON CONFLICT (strategy_idx, date) DO UPDATE SET cash = excluded.cash`,
		strategy, canonicalDate(date), cash.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cash for strategy %d: %w", strategy, err)
	}
	return nil
}

// PreviousCash returns the newest dated cash row
func (s *SQLiteStore) PreviousCash(ctx context.Context, strategy int) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text string
	err := s.db.QueryRowContext(ctx, `
		SELECT cash FROM strategy_cash
		WHERE strategy_idx = ?
		ORDER BY date DESC
		LIMIT 1`, strategy).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrNoCash
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read cash for strategy %d: %w", strategy, err)
	}
	return parseDecimal(text)
}

// CashHistory returns a strategy's cash rows, newest first
func (s *SQLiteStore) CashHistory(ctx context.Context, strategy int, limit int) ([]contracts.CashRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy_idx, date, cash FROM strategy_cash
		WHERE strategy_idx = ?
		ORDER BY date DESC
		LIMIT ?`, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash history: %w", err)
	}
	return scanSQLiteCash(rows)
}

// LatestCash returns each strategy's newest cash row
func (s *SQLiteStore) LatestCash(ctx context.Context) ([]contracts.CashRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.strategy_idx, c.date, c.cash
		FROM strategy_cash c
		JOIN (
			SELECT strategy_idx, MAX(date) AS date FROM strategy_cash GROUP BY strategy_idx
		) latest ON latest.strategy_idx = c.strategy_idx AND latest.date = c.date
		ORDER BY c.strategy_idx ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest cash: %w", err)
	}
	return scanSQLiteCash(rows)
}

func scanSQLiteCash(rows *sql.Rows) ([]contracts.CashRecord, error) {
	defer rows.Close()

	records := make([]contracts.CashRecord, 0)
	for rows.Next() {
		var rec contracts.CashRecord
		var text string
		if err := rows.Scan(&rec.StrategyIdx, &rec.Date, &text); err != nil {
			return nil, fmt.Errorf("failed to scan cash: %w", err)
		}
		cash, err := parseDecimal(text)
		if err != nil {
			return nil, err
		}
		rec.Cash = cash
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cash: %w", err)
	}
	return records, nil
}
