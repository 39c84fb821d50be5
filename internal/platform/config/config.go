package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	KafkaBrokers []string

	// Write and read stores are resolved once at startup.
	WritePostgresDSN string
	ReadPostgresDSN  string
	DBMaxOpenConns   int
	DBMaxIdleConns   int

	ChangeChannel      string
	DomainEventChannel string
	EmailJobTopic      string

	SurrealURL       string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUser      string
	SurrealPassword  string

	BootstrapEnabled bool
	BootstrapDelay   time.Duration

	OrderingRetryAttempts int
	OrderingRetryDelay    time.Duration
	LiveDebounce          time.Duration

	CacheVersionKey string
	CacheVersionTTL time.Duration

	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
}

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServiceName:  envString("SERVICE_NAME", "shopgate-replicator"),
		HTTPPort:     envString("HTTP_PORT", "8080"),
		KafkaBrokers: envList("KAFKA_BROKERS", []string{"localhost:9092"}),

		WritePostgresDSN: os.Getenv("WRITE_POSTGRES_DSN"),
		ReadPostgresDSN:  os.Getenv("READ_POSTGRES_DSN"),

		ChangeChannel:      envString("CHANGE_CHANNEL", "db.changes"),
		DomainEventChannel: envString("DOMAIN_EVENT_CHANNEL", "domain.events"),
		EmailJobTopic:      envString("EMAIL_JOB_TOPIC", "email.jobs"),

		SurrealURL:       os.Getenv("SURREALDB_URL"),
		SurrealNamespace: envString("SURREALDB_NAMESPACE", "shopgate"),
		SurrealDatabase:  envString("SURREALDB_DATABASE", "search"),
		SurrealUser:      os.Getenv("SURREALDB_USER"),
		SurrealPassword:  os.Getenv("SURREALDB_PASSWORD"),

		BootstrapEnabled: envBool("BOOTSTRAP_ENABLED", true),

		CacheVersionKey: envString("CACHE_VERSION_KEY", "catalog:cache_version"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     envString("LOG_LEVEL", "info"),
		LogFormat:    envString("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.DBMaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return Config{}, err
	}
	if cfg.OrderingRetryAttempts, err = envInt("ORDERING_RETRY_ATTEMPTS", 20); err != nil {
		return Config{}, err
	}
	if cfg.BootstrapDelay, err = envDuration("BOOTSTRAP_DELAY", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OrderingRetryDelay, err = envDuration("ORDERING_RETRY_DELAY", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LiveDebounce, err = envDuration("LIVE_DEBOUNCE", 250*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.CacheVersionTTL, err = envDuration("CACHE_VERSION_TTL", 365*24*time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.OrderingRetryAttempts < 1 {
		return Config{}, fmt.Errorf("ORDERING_RETRY_ATTEMPTS must be at least 1, got %d", cfg.OrderingRetryAttempts)
	}
	return cfg, nil
}

// Validate checks what the long-running replicator needs before it connects.
func (c Config) Validate() error {
	var missing []string
	if c.WritePostgresDSN == "" {
		missing = append(missing, "WRITE_POSTGRES_DSN")
	}
	if c.ReadPostgresDSN == "" {
		missing = append(missing, "READ_POSTGRES_DSN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envList(name string, fallback []string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", name, raw)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", name, raw)
	}
	return value, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
