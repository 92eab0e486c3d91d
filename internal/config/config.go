// Package config loads Kestrel configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Load reads the given .env files (".env" when none are named; a missing
// file is skipped), applies environment overrides on top of the default
// profile and validates the result. Variables already set in the process
// environment win over .env entries.
func Load(envFiles ...string) (*domain.Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := domain.DefaultConfig()
	if getEnv("KESTREL_PROFILE", "single") == "cluster" {
		cfg = domain.ClusterConfig()
	}

	e := &envReader{}
	apply(cfg, e)
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *domain.Config, e *envReader) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	// Server
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = e.int("PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = e.int("READ_TIMEOUT_SECONDS", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = e.int("WRITE_TIMEOUT_SECONDS", cfg.Server.WriteTimeout)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	// Fraud detection
	cfg.Fraud.FraudThreshold = e.float("FRAUD_THRESHOLD", cfg.Fraud.FraudThreshold)
	cfg.Fraud.HighRiskThreshold = e.float("HIGH_RISK_THRESHOLD", cfg.Fraud.HighRiskThreshold)
	cfg.Fraud.BusinessHoursStart = e.int("BUSINESS_HOURS_START", cfg.Fraud.BusinessHoursStart)
	cfg.Fraud.BusinessHoursEnd = e.int("BUSINESS_HOURS_END", cfg.Fraud.BusinessHoursEnd)
	cfg.Fraud.MaxTransactionAmount = e.float("MAX_TRANSACTION_AMOUNT", cfg.Fraud.MaxTransactionAmount)
	cfg.Fraud.Currency = getEnv("CURRENCY", cfg.Fraud.Currency)
	cfg.Fraud.VelocityWindow = e.minutes("VELOCITY_WINDOW_MINUTES", cfg.Fraud.VelocityWindow)
	cfg.Fraud.HistoryWindow = e.days("HISTORY_WINDOW_DAYS", cfg.Fraud.HistoryWindow)
	cfg.Fraud.Timezone = getEnv("TIMEZONE", cfg.Fraud.Timezone)

	// Model
	cfg.Model.Kind = getEnv("KESTREL_MODEL", cfg.Model.Kind)
	cfg.Model.Dir = getEnv("MODEL_DIR", cfg.Model.Dir)
	cfg.Model.Seed = uint64(e.int("MODEL_SEED", int(cfg.Model.Seed)))
	cfg.Model.StubRaw = e.float("MODEL_STUB_RAW", cfg.Model.StubRaw)

	// Repository
	cfg.Repository.Driver = getEnv("DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = getEnv("SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = getEnv("POSTGRES_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = e.int("POSTGRES_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = getEnv("POSTGRES_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = getEnv("POSTGRES_PASSWORD", cfg.Repository.PostgresPassword)
	cfg.Repository.PostgresDB = getEnv("POSTGRES_DB", cfg.Repository.PostgresDB)
	cfg.Repository.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", cfg.Repository.PostgresSSLMode)

	// Cache
	cfg.Cache.Type = getEnv("CACHE_TYPE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = getEnv("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = e.int("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.EnableTwoPhase = e.bool("CACHE_TWO_PHASE", cfg.Cache.EnableTwoPhase)

	// Event bus
	cfg.EventBus.Type = getEnv("EVENTBUS_TYPE", cfg.EventBus.Type)
	cfg.EventBus.NATSUrl = getEnv("NATS_URL", cfg.EventBus.NATSUrl)
	cfg.EventBus.NATSToken = getEnv("NATS_TOKEN", cfg.EventBus.NATSToken)

	cfg.StatsRefresh = e.seconds("STATS_REFRESH_SECONDS", cfg.StatsRefresh)

	// Observability
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Development = e.bool("LOG_DEV", cfg.Logging.Development)
	cfg.Tracing.Enabled = e.bool("TRACING_ENABLED", cfg.Tracing.Enabled)
}

// Validate rejects configurations the service cannot run with.
func Validate(cfg *domain.Config) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		invalid("port %d out of range", cfg.Server.Port)
	}

	f := cfg.Fraud
	if f.FraudThreshold < 0 || f.FraudThreshold > 1 {
		invalid("fraud threshold %v outside [0,1]", f.FraudThreshold)
	}
	if f.HighRiskThreshold < 0 || f.HighRiskThreshold > 1 {
		invalid("high risk threshold %v outside [0,1]", f.HighRiskThreshold)
	}
	if f.HighRiskThreshold < f.FraudThreshold {
		invalid("high risk threshold %v below fraud threshold %v", f.HighRiskThreshold, f.FraudThreshold)
	}
	if f.BusinessHoursStart < 0 || f.BusinessHoursEnd > 24 || f.BusinessHoursStart >= f.BusinessHoursEnd {
		invalid("business hours %d-%d", f.BusinessHoursStart, f.BusinessHoursEnd)
	}
	if f.MaxTransactionAmount <= 0 {
		invalid("max transaction amount must be positive")
	}
	if f.VelocityWindow <= 0 {
		invalid("velocity window must be positive")
	}
	if _, err := time.LoadLocation(f.Timezone); err != nil {
		invalid("timezone %q: %v", f.Timezone, err)
	}

	switch cfg.Model.Kind {
	case "forest", "stub":
	default:
		invalid("model kind %q", cfg.Model.Kind)
	}
	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		invalid("database driver %q", cfg.Repository.Driver)
	}
	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		invalid("cache type %q", cfg.Cache.Type)
	}
	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		invalid("event bus type %q", cfg.EventBus.Type)
	}

	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and collects malformed values.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: %v", domain.ErrInvalidInput, key, value, err))
}

func (e *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) seconds(key string, def time.Duration) time.Duration {
	return e.duration(key, def, time.Second)
}

func (e *envReader) minutes(key string, def time.Duration) time.Duration {
	return e.duration(key, def, time.Minute)
}

func (e *envReader) days(key string, def time.Duration) time.Duration {
	return e.duration(key, def, 24*time.Hour)
}

func (e *envReader) duration(key string, def, unit time.Duration) time.Duration {
	n := e.int(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * unit
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
