package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/redis"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{"AAPL": decimal.NewFromInt(190)}

	prices, err := src.ClosingPrices(context.Background(), []string{"AAPL", "MSFT"}, "2026-10-16")
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.True(t, prices["AAPL"].Equal(decimal.NewFromInt(190)))
}

func TestYahooSourcePicksLastCloseInWindow(t *testing.T) {
	var requested []string
	download := func(symbols []string) (map[string][]Bar, map[string]error, error) {
		requested = symbols
		return map[string][]Bar{
				"AAPL": {
					{Date: day("2026-10-14"), Close: 180},
					{Date: day("2026-10-15"), Close: 185},
					{Date: day("2026-10-16"), Close: 0},
					{Date: day("2026-10-19"), Close: 999},
				},
				"OLD": {
					{Date: day("2026-09-01"), Close: 10},
				},
			}, map[string]error{
				"BAD": errors.New("not found"),
			}, nil
	}

	src := NewYahooSourceWith(download, logger.Nop())
	prices, err := src.ClosingPrices(context.Background(),
		[]string{"AAPL", "AAPL", "OLD", "BAD", "_placeholder_", ""}, "2026-10-16")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "BAD", "OLD"}, requested)
	assert.Len(t, prices, 1)
	assert.True(t, prices["AAPL"].Equal(decimal.NewFromInt(185)))
}

func TestYahooSourceBatchError(t *testing.T) {
	download := func([]string) (map[string][]Bar, map[string]error, error) {
		return nil, nil, errors.New("throttled")
	}

	src := NewYahooSourceWith(download, logger.Nop())
	_, err := src.ClosingPrices(context.Background(), []string{"AAPL"}, "2026-10-16")
	assert.Error(t, err)
}

func TestYahooSourceEmptyAndBadDate(t *testing.T) {
	calls := 0
	download := func([]string) (map[string][]Bar, map[string]error, error) {
		calls++
		return nil, nil, nil
	}
	src := NewYahooSourceWith(download, logger.Nop())

	prices, err := src.ClosingPrices(context.Background(), nil, "2026-10-16")
	require.NoError(t, err)
	assert.Empty(t, prices)

	_, err = src.ClosingPrices(context.Background(), []string{"AAPL"}, "16/10/2026")
	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestCachedSourceWithRedisDisabled(t *testing.T) {
	cache := redis.NewCache(redis.Disabled(), "test")
	next := StaticSource{"SPY": decimal.RequireFromString("501.25")}

	src := NewCachedSource(next, cache, logger.Nop())
	prices, err := src.ClosingPrices(context.Background(), []string{"SPY", "QQQ"}, "2026-10-16")
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.Equal(t, "501.25", prices["SPY"].String())
}
