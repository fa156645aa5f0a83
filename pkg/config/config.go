package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Trade ledger database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Execution gateway bridge
	Gateway GatewayConfig

	// Spreadsheet store
	Sheets SheetsConfig

	// Trading cycle
	Cycle CycleConfig

	// Ordered strategy list (YAML)
	StrategiesFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds trade ledger storage configuration
type DatabaseConfig struct {
	Driver     string // sqlite, postgres
	URL        string // postgres only
	SQLitePath string

	// Connection Pool (postgres)
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
}

// GatewayConfig holds execution gateway bridge configuration
type GatewayConfig struct {
	BaseURL        string // REST commands (orders, account summary)
	WSURL          string // event stream
	APIKey         string
	ConnectTimeout time.Duration
	OrderType      string // MOC
	TimeInForce    string // DAY
	Paper          bool
}

// SheetsConfig holds spreadsheet store configuration
type SheetsConfig struct {
	Enabled           bool
	CredentialsFile   string
	MaxCallsPerMinute int
	DetailURL         string // trade ledger export, combined metrics, portfolio balance
	OutputURL         string // order confirmations
}

// CycleConfig holds trading cycle parameters
type CycleConfig struct {
	SettleWait         time.Duration
	AccountWait        time.Duration
	DelayedUpdateAfter time.Duration
	InitialCash        float64
	MarketTimezone     string
	Schedule           string // cron with seconds
	PositionsDir       string
	SnapshotFormat     string // json, msgpack
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("LEDGER_DRIVER", DriverSQLite)),
			URL:             getEnv("DATABASE_URL", ""),
			SQLitePath:      getEnv("SQLITE_PATH", "trading_data.db"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Prefix:   getEnv("REDIS_PREFIX", "stratbook"),
		},

		Gateway: GatewayConfig{
			BaseURL:        getEnv("GATEWAY_URL", "http://127.0.0.1:5055"),
			WSURL:          getEnv("GATEWAY_WS_URL", "ws://127.0.0.1:5055/events"),
			APIKey:         getEnv("GATEWAY_API_KEY", ""),
			ConnectTimeout: getEnvAsDuration("GATEWAY_CONNECT_TIMEOUT", "30s"),
			OrderType:      getEnv("GATEWAY_ORDER_TYPE", "MOC"),
			TimeInForce:    getEnv("GATEWAY_TIF", "DAY"),
			Paper:          getEnvAsBool("GATEWAY_PAPER", false),
		},

		Sheets: SheetsConfig{
			Enabled:           getEnvAsBool("SHEETS_ENABLED", true),
			CredentialsFile:   getEnv("SHEETS_CREDENTIALS_FILE", "credentials.json"),
			MaxCallsPerMinute: getEnvAsInt("SHEETS_MAX_CALLS_PER_MINUTE", 50),
			DetailURL:         getEnv("SHEETS_DETAIL_URL", ""),
			OutputURL:         getEnv("SHEETS_OUTPUT_URL", ""),
		},

		Cycle: CycleConfig{
			SettleWait:         getEnvAsDuration("SETTLE_WAIT", "10m"),
			AccountWait:        getEnvAsDuration("ACCOUNT_WAIT", "3s"),
			DelayedUpdateAfter: getEnvAsDuration("DELAYED_UPDATE_AFTER", "12m"),
			InitialCash:        getEnvAsFloat("INITIAL_CASH", 100000),
			MarketTimezone:     getEnv("MARKET_TIMEZONE", "America/New_York"),
			Schedule:           getEnv("CYCLE_SCHEDULE", "0 45 15 * * 1-5"), // 장 마감 15분 전 (MOC)
			PositionsDir:       getEnv("POSITIONS_DIR", "."),
			SnapshotFormat:     strings.ToLower(getEnv("SNAPSHOT_FORMAT", "json")),
		},

		StrategiesFile: getEnv("STRATEGIES_FILE", "strategies.yaml"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Location returns the market timezone used to decide "today"
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Cycle.MarketTimezone)
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite ledger")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
	default:
		return fmt.Errorf("LEDGER_DRIVER must be one of: %s, %s", DriverSQLite, DriverPostgres)
	}

	if c.Cycle.SettleWait <= 0 {
		return fmt.Errorf("SETTLE_WAIT must be positive")
	}

	if c.Cycle.SnapshotFormat != "json" && c.Cycle.SnapshotFormat != "msgpack" {
		return fmt.Errorf("SNAPSHOT_FORMAT must be one of: json, msgpack")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE is invalid: %w", err)
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
