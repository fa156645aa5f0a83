package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wonny/stratbook/pkg/config"
	_ "modernc.org/sqlite"
)

// NewSQLite opens the embedded sqlite ledger at path (":memory:" for tests)
func NewSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// single writer; also keeps ":memory:" on one connection
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if path != ":memory:" {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	return &DB{Driver: config.DriverSQLite, SQL: conn}, nil
}
