package marketdata

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/redis"
)

// CachedSource memoizes closes in redis by (ticker, date)
type CachedSource struct {
	next   PriceSource
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedSource wraps next with the cache
func NewCachedSource(next PriceSource, cache *redis.Cache, log *logger.Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, logger: log.Component("marketdata")}
}

// ClosingPrices implements PriceSource. Cache failures fall through to next.
func (s *CachedSource) ClosingPrices(ctx context.Context, tickers []string, date string) (map[string]decimal.Decimal, error) {
	symbols := uniqueTickers(tickers)
	out := make(map[string]decimal.Decimal, len(symbols))

	missing := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		var text string
		found, err := s.cache.Get(ctx, redis.ClosePriceKey(sym, date), &text)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", sym).Debug("Close cache read failed")
		}
		if found {
			if p, err := decimal.NewFromString(text); err == nil {
				out[sym] = p
				continue
			}
		}
		missing = append(missing, sym)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := s.next.ClosingPrices(ctx, missing, date)
	if err != nil {
		return nil, err
	}

	for sym, p := range fetched {
		out[sym] = p
		if err := s.cache.Set(ctx, redis.ClosePriceKey(sym, date), p.String(), redis.TTLDaily); err != nil {
			s.logger.WithError(err).WithField("ticker", sym).Debug("Close cache write failed")
		}
	}
	return out, nil
}
