package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/stratbook/internal/cycle"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/internal/gateway"
	"github.com/wonny/stratbook/internal/ledger"
	"github.com/wonny/stratbook/internal/marketdata"
	"github.com/wonny/stratbook/internal/sheets"
	"github.com/wonny/stratbook/internal/strategyconfig"
	"github.com/wonny/stratbook/internal/tradelog"
	"github.com/wonny/stratbook/pkg/config"
	"github.com/wonny/stratbook/pkg/database"
	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/redis"
)

// app holds the handles every command shares
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	trades     tradelog.Store
	redis      *redis.Client
	strategies *strategyconfig.Config
	book       *ledger.Book
}

// openApp loads config, the strategy list, the ledgers and the trade database
func openApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strategiesFile != "" {
		cfg.StrategiesFile = strategiesFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 3. Strategy list
	strategies, _, err := strategyconfig.Load(cfg.StrategiesFile)
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	if err := strategyconfig.Validate(strategies); err != nil {
		return nil, fmt.Errorf("invalid strategies: %w", err)
	}
	for _, w := range strategyconfig.Check(strategies) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	a.strategies = strategies

	// 4. Position ledgers
	book, err := ledger.OpenBook(ledger.BookConfig{
		Dir:           cfg.Cycle.PositionsDir,
		Format:        cfg.Cycle.SnapshotFormat,
		StrategyFiles: strategies.PositionFiles(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open position ledgers: %w", err)
	}
	a.book = book

	// 5. Trade ledger database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db

	trades, err := tradelog.New(db)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := trades.Migrate(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("migrate trade ledger: %w", err)
	}
	a.trades = trades

	// 6. Redis (optional)
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.Disabled()
	}
	a.redis = rdb

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// sheetStore returns the spreadsheet store, paced by the shared Redis quota
// when Redis is on. With sheets disabled everything goes to memory.
func (a *app) sheetStore(ctx context.Context) (*sheets.Store, error) {
	if !a.cfg.Sheets.Enabled {
		a.log.Warn("Sheets disabled, using in-memory spreadsheets")
		return sheets.NewStore(sheets.NewMemoryClient(), a.log), nil
	}

	google, err := sheets.NewGoogleClient(ctx, a.cfg.Sheets.CredentialsFile)
	if err != nil {
		return nil, err
	}

	var waiter sheets.Waiter = sheets.LocalLimiter(a.cfg.Sheets.MaxCallsPerMinute)
	if a.redis.Enabled() {
		waiter = redis.NewRateLimiter(a.redis, a.redis.Prefix()).Waiter(redis.SheetsRateLimit(a.cfg.Sheets.MaxCallsPerMinute))
	}

	return sheets.NewStore(sheets.NewLimitedClient(google, waiter, a.log), a.log), nil
}

// prices returns closing prices from Yahoo, cached in Redis when available
func (a *app) prices() marketdata.PriceSource {
	source := marketdata.NewYahooSource(a.log)
	if !a.redis.Enabled() {
		return source
	}
	return marketdata.NewCachedSource(source, redis.NewCache(a.redis, a.redis.Prefix()), a.log)
}

// gateway returns the bridge session, or an in-process paper session that
// fills at the last close
func (a *app) gateway(paper bool, prices marketdata.PriceSource) (gateway.Gateway, error) {
	if !paper && !a.cfg.Gateway.Paper {
		return gateway.NewBridgeGateway(a.cfg.Gateway, a.log), nil
	}

	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}

	paperGW := gateway.NewPaperGateway()
	paperGW.SetAccountValue("NetLiquidation", decimal.NewFromFloat(a.cfg.Cycle.InitialCash*float64(len(a.strategies.Strategies))))
	paperGW.SetPriceFunc(func(symbol string) (decimal.Decimal, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		closes, err := prices.ClosingPrices(ctx, []string{symbol}, dates.Today(loc))
		if err != nil {
			return decimal.Zero, false
		}
		price, ok := closes[symbol]
		return price, ok
	})

	a.log.Warn("Paper trading: orders fill in-process at the last close")
	return paperGW, nil
}

// runner wires a cycle runner. The caller closes the returned gateway.
func (a *app) runner(ctx context.Context, paper bool) (*cycle.Runner, gateway.Gateway, error) {
	store, err := a.sheetStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("sheets: %w", err)
	}

	prices := a.prices()
	gw, err := a.gateway(paper, prices)
	if err != nil {
		return nil, nil, err
	}

	runner, err := cycle.NewRunner(cycle.Deps{
		Config:     a.cfg,
		Strategies: a.strategies,
		Book:       a.book,
		Trades:     a.trades,
		Gateway:    gw,
		Sheets:     store,
		Prices:     prices,
		Logger:     a.log,
	})
	if err != nil {
		_ = gw.Close()
		return nil, nil, err
	}
	return runner, gw, nil
}
