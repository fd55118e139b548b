package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the dispatch service
type Config struct {
	AppEnv string
	Port   string

	// DBDriver is "postgres" or "sqlite"
	DBDriver   string
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string
	SQLitePath string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// CacheBackend is "memory" or "redis"
	CacheBackend         string
	AvailabilityCacheTTL time.Duration

	OptimizerBaseURL string
	OptimizerAPIKey  string
	OptimizerRPS     float64
	OptimizerBurst   int
	OptimizerTimeout time.Duration

	OrderSpacing       int
	MinOrderGap        int
	ExecutionTolerance time.Duration
	DelayThreshold     time.Duration
	MaterializeHorizon int

	RebalanceInterval       time.Duration
	DelayDetectionInterval  time.Duration
	MaterializationInterval time.Duration
	OutboxCleanupInterval   time.Duration
	OutboxRelayInterval     time.Duration
	OutboxRetention         time.Duration
	StreamMaxLen            int64

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// Load reads a .env file when present and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		Port:       getEnv("PORT", "8080"),
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: os.Getenv("PG_PASSWORD"),
		PGDatabase: getEnv("PG_DB", "dispatch"),
		SQLitePath: getEnv("SQLITE_PATH", "data/dispatch.db"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		CacheBackend:     getEnv("CACHE_BACKEND", "memory"),
		OptimizerBaseURL: os.Getenv("OPTIMIZER_BASE_URL"),
		OptimizerAPIKey:  os.Getenv("OPTIMIZER_API_KEY"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	parse := func(key string, def int) int {
		if err != nil {
			return def
		}
		var v int
		v, err = getInt(key, def)
		return v
	}
	parseDur := func(key string, def time.Duration) time.Duration {
		if err != nil {
			return def
		}
		var v time.Duration
		v, err = getDuration(key, def)
		return v
	}
	parseFloat := func(key string, def float64) float64 {
		if err != nil {
			return def
		}
		var v float64
		v, err = getFloat(key, def)
		return v
	}

	cfg.RedisDB = parse("REDIS_DB", 0)
	cfg.AvailabilityCacheTTL = parseDur("AVAILABILITY_CACHE_TTL", 5*time.Minute)
	cfg.OptimizerRPS = parseFloat("OPTIMIZER_RPS", 2)
	cfg.OptimizerBurst = parse("OPTIMIZER_BURST", 4)
	cfg.OptimizerTimeout = parseDur("OPTIMIZER_TIMEOUT", 30*time.Second)
	cfg.OrderSpacing = parse("STOP_ORDER_SPACING", 10)
	cfg.MinOrderGap = parse("STOP_ORDER_MIN_GAP", 1)
	cfg.ExecutionTolerance = parseDur("EXECUTION_TOLERANCE", 5*time.Minute)
	cfg.DelayThreshold = parseDur("DELAY_THRESHOLD", 10*time.Minute)
	cfg.MaterializeHorizon = parse("MATERIALIZE_HORIZON_DAYS", 28)
	cfg.RebalanceInterval = parseDur("REBALANCE_INTERVAL", 24*time.Hour)
	cfg.DelayDetectionInterval = parseDur("DELAY_DETECTION_INTERVAL", 2*time.Minute)
	cfg.MaterializationInterval = parseDur("MATERIALIZATION_INTERVAL", 24*time.Hour)
	cfg.OutboxCleanupInterval = parseDur("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour)
	cfg.OutboxRelayInterval = parseDur("OUTBOX_RELAY_INTERVAL", 2*time.Second)
	cfg.OutboxRetention = parseDur("OUTBOX_RETENTION", 7*24*time.Hour)
	cfg.StreamMaxLen = int64(parse("ROUTE_EVENTS_MAXLEN", 100000))
	cfg.RateLimitRPS = parseFloat("RATE_LIMIT_RPS", 20)
	cfg.RateLimitBurst = parse("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend)
	}
	if c.OrderSpacing < 1 {
		return fmt.Errorf("STOP_ORDER_SPACING must be at least 1")
	}
	if c.MinOrderGap < 1 || c.MinOrderGap > c.OrderSpacing {
		return fmt.Errorf("STOP_ORDER_MIN_GAP must be between 1 and STOP_ORDER_SPACING")
	}
	if c.MaterializeHorizon < 1 {
		return fmt.Errorf("MATERIALIZE_HORIZON_DAYS must be positive")
	}
	return nil
}

// PostgresDSN builds the connection string from the PG_* settings
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// RedisAddr returns host:port
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
