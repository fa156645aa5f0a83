package ledger

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/pkg/logger"
)

// Book holds the combined ledger and one ledger per strategy, in strategy-list order
// ⭐ SSOT: 통합 원장 = 실제 보유 수량의 기준
type Book struct {
	Combined   *Ledger
	Strategies []*Ledger
}

// BookConfig describes where each ledger lives
type BookConfig struct {
	Dir           string
	Format        string   // json, msgpack
	CombinedFile  string   // default combined_positions.<ext>
	StrategyFiles []string // "" entries fall back to strategyN_positions.<ext>
}

// OpenBook loads every ledger named by cfg
func OpenBook(cfg BookConfig, log *logger.Logger) (*Book, error) {
	ext := CodecFor("", cfg.Format).Ext()

	combinedPath := resolve(cfg.Dir, cfg.CombinedFile, "combined_positions"+ext)
	combined, err := Open("combined", combinedPath, CodecFor(combinedPath, cfg.Format), log)
	if err != nil {
		return nil, err
	}

	book := &Book{Combined: combined}
	for i, file := range cfg.StrategyFiles {
		path := resolve(cfg.Dir, file, fmt.Sprintf("strategy%d_positions%s", i+1, ext))
		l, err := Open(fmt.Sprintf("strategy%d", i+1), path, CodecFor(path, cfg.Format), log)
		if err != nil {
			return nil, err
		}
		book.Strategies = append(book.Strategies, l)
	}

	return book, nil
}

// NewMemoryBook builds an unpersisted book, for tests and dry runs
func NewMemoryBook(combined map[string]int64, strategies ...map[string]int64) *Book {
	book := &Book{Combined: NewMemory("combined", combined)}
	for i, positions := range strategies {
		book.Strategies = append(book.Strategies, NewMemory(fmt.Sprintf("strategy%d", i+1), positions))
	}
	return book
}

func resolve(dir, file, fallback string) string {
	if file == "" {
		file = fallback
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

// Strategy returns strategy idx's ledger, or nil when out of range
func (b *Book) Strategy(idx int) *Ledger {
	if idx < 0 || idx >= len(b.Strategies) {
		return nil
	}
	return b.Strategies[idx]
}

// HoldersOf returns the strategy indices holding a non-zero position in ticker
func (b *Book) HoldersOf(ticker string) []int {
	var holders []int
	for i, l := range b.Strategies {
		if l.Get(ticker) != 0 {
			holders = append(holders, i)
		}
	}
	return holders
}

// SaveAll persists every ledger, joining any errors
func (b *Book) SaveAll() error {
	errs := []error{b.Combined.Save()}
	for _, l := range b.Strategies {
		errs = append(errs, l.Save())
	}
	return errors.Join(errs...)
}

// Drift compares the combined ledger against the sum of strategy ledgers
func (b *Book) Drift() []contracts.Drift {
	return b.Snapshot().Drift()
}

// Snapshot copies every ledger
func (b *Book) Snapshot() Snapshot {
	snap := Snapshot{Combined: b.Combined.Positions()}
	for _, l := range b.Strategies {
		snap.Strategies = append(snap.Strategies, l.Positions())
	}
	return snap
}

// Snapshot is an immutable copy of a Book, safe to hand to a later round
type Snapshot struct {
	Combined   map[string]int64   `json:"combined"`
	Strategies []map[string]int64 `json:"strategies"`
}

// Strategy returns a strategy's positions (nil when out of range)
func (s Snapshot) Strategy(idx int) map[string]int64 {
	if idx < 0 || idx >= len(s.Strategies) {
		return nil
	}
	return s.Strategies[idx]
}

// Drift lists tickers whose combined count differs from the strategy sum, sorted by ticker
func (s Snapshot) Drift() []contracts.Drift {
	sums := map[string]int64{}
	tickers := map[string]bool{}
	for ticker := range s.Combined {
		tickers[ticker] = true
	}
	for _, positions := range s.Strategies {
		for ticker, shares := range positions {
			sums[ticker] += shares
			tickers[ticker] = true
		}
	}

	var drift []contracts.Drift
	for ticker := range tickers {
		combined := s.Combined[ticker]
		if combined == sums[ticker] {
			continue
		}
		drift = append(drift, contracts.Drift{
			Ticker:     ticker,
			Combined:   combined,
			Strategies: sums[ticker],
			Difference: combined - sums[ticker],
		})
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].Ticker < drift[j].Ticker })
	return drift
}
