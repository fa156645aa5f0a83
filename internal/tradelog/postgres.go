package tradelog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/internal/contracts"
)

const postgresSchema = `
CREATE SCHEMA IF NOT EXISTS ledger;

CREATE TABLE IF NOT EXISTS ledger.trades (
	id                  BIGSERIAL PRIMARY KEY,
	date                DATE        NOT NULL,
	ticker              VARCHAR(20) NOT NULL,
	net_units           BIGINT      NOT NULL,
	total_abs_units     BIGINT      NOT NULL,
	trade_price         NUMERIC(20, 6) NOT NULL,
	adj_close           NUMERIC(20, 6) NOT NULL,
	trade_type          VARCHAR(10) NOT NULL,
	pre_trade_position  BIGINT      NOT NULL,
	delta_shares        BIGINT      NOT NULL,
	post_trade_position BIGINT      NOT NULL,
	commission          NUMERIC(20, 6) NOT NULL,
	interest            NUMERIC(20, 6) NOT NULL,
	nav                 NUMERIC(20, 6) NOT NULL,
	timestamp           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trades_date ON ledger.trades (date);

CREATE TABLE IF NOT EXISTS ledger.strategy_cash (
	strategy_idx INTEGER NOT NULL,
	date         DATE    NOT NULL,
	cash         NUMERIC(20, 6) NOT NULL,
	PRIMARY KEY (strategy_idx, date)
);
`

const pgTradeColumns = `id, date::TEXT, ticker, net_units, total_abs_units, trade_price::TEXT, adj_close::TEXT,
	trade_type, pre_trade_position, delta_shares, post_trade_position,
	commission::TEXT, interest::TEXT, nav::TEXT, timestamp`

// PostgresStore is the trade ledger on PostgreSQL (schema "ledger")
type PostgresStore struct {
	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema and tables
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate trade ledger: %w", err)
	}
	return nil
}

// InsertTrade appends one trade
func (s *PostgresStore) InsertTrade(ctx context.Context, rec contracts.TradeRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := `
		INSERT INTO ledger.trades (
			date, ticker, net_units, total_abs_units, trade_price, adj_close, trade_type,
			pre_trade_position, delta_shares, post_trade_position, commission, interest, nav, timestamp
		) VALUES (
			$1::DATE, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7,
			$8, $9, $10, $11::NUMERIC, $12::NUMERIC, $13::NUMERIC, $14
		)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		canonicalDate(rec.Date), rec.Ticker, rec.NetUnits, rec.TotalAbsUnits,
		rec.TradePrice.String(), rec.AdjClose.String(), rec.TradeType,
		rec.PreTradePosition, rec.DeltaShares, rec.PostTradePosition,
		rec.Commission.String(), rec.Interest.String(), rec.NAV.String(),
		rec.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade: %w", err)
	}
	return id, nil
}

// RecentTrades returns the newest trades first
func (s *PostgresStore) RecentTrades(ctx context.Context, limit int) ([]contracts.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgTradeColumns+` FROM ledger.trades ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanPgTrades(rows)
}

// TradesOn returns one day's trades
func (s *PostgresStore) TradesOn(ctx context.Context, date string) ([]contracts.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgTradeColumns+` FROM ledger.trades WHERE date = $1::DATE ORDER BY id ASC`,
		canonicalDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanPgTrades(rows)
}

func scanPgTrades(rows pgx.Rows) ([]contracts.TradeRecord, error) {
	defer rows.Close()

	trades := make([]contracts.TradeRecord, 0)
	for rows.Next() {
		var (
			rec                                   contracts.TradeRecord
			price, adjClose, commission, interest string
			nav                                   string
		)
		err := rows.Scan(
			&rec.ID, &rec.Date, &rec.Ticker, &rec.NetUnits, &rec.TotalAbsUnits,
			&price, &adjClose, &rec.TradeType,
			&rec.PreTradePosition, &rec.DeltaShares, &rec.PostTradePosition,
			&commission, &interest, &nav, &rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if err := fillAmounts(&rec, price, adjClose, commission, interest, nav); err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}

// StoreCash upserts (strategy, date) -> cash
func (s *PostgresStore) StoreCash(ctx context.Context, strategy int, date string, cash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO ledger.strategy_cash (strategy_idx, date, cash)
		VALUES ($1, $2::DATE, $3::NUMERIC)
		ON CONFLICT (strategy_idx, date) DO UPDATE SET
			cash = EXCLUDED.cash
	`

	if _, err := s.pool.Exec(ctx, query, strategy, canonicalDate(date), cash.String()); err != nil {
		return fmt.Errorf("failed to store cash for strategy %d: %w", strategy, err)
	}
	return nil
}

// PreviousCash returns the newest dated cash row
func (s *PostgresStore) PreviousCash(ctx context.Context, strategy int) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT cash::TEXT FROM ledger.strategy_cash
		WHERE strategy_idx = $1
		ORDER BY date DESC
		LIMIT 1
	`

	var text string
	err := s.pool.QueryRow(ctx, query, strategy).Scan(&text)
	if err == pgx.ErrNoRows {
		return decimal.Zero, ErrNoCash
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read cash for strategy %d: %w", strategy, err)
	}
	return parseDecimal(text)
}

// CashHistory returns a strategy's cash rows, newest first
func (s *PostgresStore) CashHistory(ctx context.Context, strategy int, limit int) ([]contracts.CashRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT strategy_idx, date::TEXT, cash::TEXT FROM ledger.strategy_cash
		WHERE strategy_idx = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash history: %w", err)
	}
	return scanPgCash(rows)
}

// LatestCash returns each strategy's newest cash row
func (s *PostgresStore) LatestCash(ctx context.Context) ([]contracts.CashRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT DISTINCT ON (strategy_idx) strategy_idx, date::TEXT, cash::TEXT
		FROM ledger.strategy_cash
		ORDER BY strategy_idx ASC, date DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest cash: %w", err)
	}
	return scanPgCash(rows)
}

func scanPgCash(rows pgx.Rows) ([]contracts.CashRecord, error) {
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
