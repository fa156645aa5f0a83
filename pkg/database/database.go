package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/stratbook/pkg/config"
)

// DB holds the trade ledger connection for the configured driver.
// Exactly one of Pool (postgres) or SQL (sqlite) is set.
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Driver string
	Pool   *pgxpool.Pool
	SQL    *sql.DB
}

// New opens the ledger database selected by cfg.Database.Driver
func New(cfg *config.Config) (*DB, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return NewPostgres(cfg.Database)
	case config.DriverSQLite, "":
		return NewSQLite(cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", cfg.Database.Driver)
	}
}

// Close closes the underlying connection(s)
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.SQL != nil {
		_ = db.SQL.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	if db.SQL != nil {
		return db.SQL.PingContext(ctx)
	}
	return fmt.Errorf("database not initialized")
}

// HealthCheck returns detailed health information about the database
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Driver:    db.Driver,
		Timestamp: time.Now(),
	}

	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)
	status.Stats = db.Stats()
	status.Healthy = true

	return status, nil
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Driver       string        `json:"driver"`
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
}

// Stats returns the current pool statistics
func (db *DB) Stats() PoolStats {
	if db.Pool != nil {
		stats := db.Pool.Stat()
		return PoolStats{
			AcquiredConns: stats.AcquiredConns(),
			IdleConns:     stats.IdleConns(),
			MaxConns:      stats.MaxConns(),
			TotalConns:    stats.TotalConns(),
		}
	}
	if db.SQL != nil {
		stats := db.SQL.Stats()
		return PoolStats{
			AcquiredConns: int32(stats.InUse),
			IdleConns:     int32(stats.Idle),
			MaxConns:      int32(stats.MaxOpenConnections),
			TotalConns:    int32(stats.OpenConnections),
		}
	}
	return PoolStats{}
}
