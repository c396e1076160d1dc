package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Observability ObservabilityConfig

	SnowflakeNode int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	// CatalogFile points at an explicit catalog.yml. Empty means search the
	// default locations and fall back to the built-in catalog.
	CatalogFile string

	Redis     RedisConfig
	Snapshot  SnapshotConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
}

// ObservabilityConfig is the raw logging and OpenTelemetry settings;
// observability.LoadConfig normalizes them.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis endpoint was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type SnapshotConfig struct {
	Workers  int
	PageSize int
	LockTTL  time.Duration
	LockWait time.Duration
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SchedulerConfig drives the periodic resnapshot of every team.
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	JobTimeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "entitlements"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Observability: ObservabilityConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),
		DBType:        getenv("DATABASE_TYPE", "postgres"),
		DBHost:        getenv("DATABASE_HOST", "localhost"),
		DBPort:        getenv("DATABASE_PORT", "5432"),
		DBName:        getenv("DATABASE_NAME", "entitlements"),
		DBUser:        getenv("DATABASE_USER", "postgres"),
		DBPassword:    getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:     getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn: int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn: int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		// seconds
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		CatalogFile:       strings.TrimSpace(getenv("CATALOG_FILE", "")),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Snapshot: SnapshotConfig{
			Workers:  int(getenvInt64("SNAPSHOT_WORKERS", 4)),
			PageSize: int(getenvInt64("SNAPSHOT_PAGE_SIZE", 200)),
			LockTTL:  getenvDuration("SNAPSHOT_LOCK_TTL", 30*time.Second),
			LockWait: getenvDuration("SNAPSHOT_LOCK_WAIT", 10*time.Second),
		},
		Cache: CacheConfig{
			Enabled: getenvBool("CACHE_ENABLED", true),
			TTL:     getenvDuration("CACHE_TTL", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:    getenvBool("SCHEDULER_ENABLED", false),
			Interval:   getenvDuration("SCHEDULER_INTERVAL", 24*time.Hour),
			JobTimeout: getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Minute),
		},
	}

	return cfg
}

var Module = fx.Module("config", fx.Provide(Load))

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("5s") or bare seconds ("5").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
