package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wonny/stratbook/internal/dates"
	"github.com/wonny/stratbook/pkg/logger"
)

// lookback is how far before the trade date a close is still accepted
const lookback = 7 * 24 * time.Hour

// Bar is one daily bar
type Bar struct {
	Date  time.Time
	Close float64
}

// DownloadFunc fetches daily bars for symbols. Per-symbol failures go in
// the error map; the returned error is for the whole batch.
type DownloadFunc func(symbols []string) (map[string][]Bar, map[string]error, error)

// YahooSource reads closes from Yahoo Finance
type YahooSource struct {
	download DownloadFunc
	logger   *logger.Logger
}

// NewYahooSource creates a Yahoo source backed by go-yfinance
func NewYahooSource(log *logger.Logger) *YahooSource {
	return NewYahooSourceWith(yfinanceDownload, log)
}

// NewYahooSourceWith creates a Yahoo source with a custom downloader
func NewYahooSourceWith(download DownloadFunc, log *logger.Logger) *YahooSource {
	return &YahooSource{download: download, logger: log.Component("marketdata")}
}

func yfinanceDownload(symbols []string) (map[string][]Bar, map[string]error, error) {
	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = "1mo"
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download closing prices: %w", err)
	}

	bars := make(map[string][]Bar, len(result.Data))
	for sym, series := range result.Data {
		out := make([]Bar, 0, len(series))
		for _, b := range series {
			out = append(out, Bar{Date: b.Date, Close: b.Close})
		}
		bars[sym] = out
	}

	errs := make(map[string]error, len(result.Errors))
	for sym, e := range result.Errors {
		errs[sym] = e
	}
	return bars, errs, nil
}

// ClosingPrices returns the last non-zero close within a week up to date
func (s *YahooSource) ClosingPrices(ctx context.Context, tickers []string, date string) (map[string]decimal.Decimal, error) {
	symbols := uniqueTickers(tickers)
	out := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	day, err := time.Parse(dates.Layout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid price date %q: %w", date, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, errs, err := s.download(symbols)
	if err != nil {
		return nil, err
	}

	from := day.Add(-lookback)
	until := day.Add(24 * time.Hour)
	for _, sym := range symbols {
		if e, ok := errs[sym]; ok {
			s.logger.WithError(e).WithField("ticker", sym).Warn("Failed to get closing price")
			continue
		}
		if p, ok := lastClose(bars[sym], from, until); ok {
			out[sym] = p
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"found":     len(out),
		"date":      date,
	}).Debug("Fetched closing prices")

	return out, nil
}

// lastClose picks the latest bar in [from, until) with a non-zero close
func lastClose(bars []Bar, from, until time.Time) (decimal.Decimal, bool) {
	var best *Bar
	for i := range bars {
		b := &bars[i]
		if b.Close == 0 || b.Date.Before(from) || !b.Date.Before(until) {
			continue
		}
		if best == nil || b.Date.After(best.Date) {
			best = b
		}
	}
	if best == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(best.Close), true
}
