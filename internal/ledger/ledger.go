// Package ledger tracks signed share counts per ticker, one ledger for the
// combined account and one per strategy.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wonny/stratbook/pkg/logger"
)

// Ledger maps ticker to signed share count. A ticker is present only while
// its count is non-zero.
type Ledger struct {
	mu        sync.RWMutex
	name      string
	path      string // empty = in-memory only
	codec     Codec
	positions map[string]int64
	logger    *logger.Logger
}

// Open loads the ledger persisted at path, or starts empty if the file does not exist
func Open(name, path string, codec Codec, log *logger.Logger) (*Ledger, error) {
	l := &Ledger{
		name:      name,
		path:      path,
		codec:     codec,
		positions: map[string]int64{},
		logger:    log.Component("ledger"),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s ledger: %w", name, err)
	}
	if len(data) == 0 {
		return l, nil
	}

	positions, err := codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s ledger: %w", name, err)
	}
	for ticker, shares := range positions {
		if shares != 0 {
			l.positions[ticker] = shares
		}
	}

	return l, nil
}

// NewMemory returns an unpersisted ledger seeded with positions
func NewMemory(name string, positions map[string]int64) *Ledger {
	l := &Ledger{
		name:      name,
		codec:     JSONCodec{},
		positions: map[string]int64{},
		logger:    logger.Nop(),
	}
	for ticker, shares := range positions {
		if shares != 0 {
			l.positions[ticker] = shares
		}
	}
	return l
}

// Name returns the ledger's display name
func (l *Ledger) Name() string {
	return l.name
}

// Path returns the snapshot file path (empty for in-memory ledgers)
func (l *Ledger) Path() string {
	return l.path
}

// Get returns the current signed position (0 when not held)
func (l *Ledger) Get(ticker string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positions[ticker]
}

// Apply adds delta to ticker, prunes a zero result and persists the snapshot.
// A persistence failure is returned; the in-memory change is kept.
func (l *Ledger) Apply(ticker string, delta int64) error {
	if delta == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.positions[ticker] + delta
	if next == 0 {
		delete(l.positions, ticker)
	} else {
		l.positions[ticker] = next
	}

	if err := l.saveLocked(); err != nil {
		l.logger.WithFields(map[string]interface{}{
			"ledger": l.name,
			"ticker": ticker,
			"delta":  delta,
		}).WithError(err).Error("Failed to persist position ledger")
		return err
	}
	return nil
}

// Positions returns a copy of every non-zero position
func (l *Ledger) Positions() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int64, len(l.positions))
	for ticker, shares := range l.positions {
		out[ticker] = shares
	}
	return out
}

// Held returns the held tickers in sorted order
func (l *Ledger) Held() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tickers := make([]string, 0, len(l.positions))
	for ticker := range l.positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Save writes the whole snapshot
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// saveLocked writes to a temp file and renames it over the snapshot
func (l *Ledger) saveLocked() error {
	if l.path == "" {
		return nil
	}

	data, err := l.codec.Marshal(l.positions)
	if err != nil {
		return fmt.Errorf("failed to encode %s ledger: %w", l.name, err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s ledger: %w", l.name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s ledger: %w", l.name, err)
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("failed to replace %s ledger: %w", l.name, err)
	}
	return nil
}
