package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Environment is a free-form deployment label (development, staging, production).
	Environment string `json:"environment"`

	Server ServerConfig `json:"server"`
	Fraud  FraudConfig  `json:"fraud"`
	Model  ModelConfig  `json:"model"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// StatsRefresh is the dashboard stats polling interval.
	StatsRefresh time.Duration `json:"statsRefresh"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	ReadTimeout  int      `json:"readTimeout"`  // seconds
	WriteTimeout int      `json:"writeTimeout"` // seconds
	CORSOrigins  []string `json:"corsOrigins"`
}

// FraudConfig holds the scoring thresholds and feature parameters.
type FraudConfig struct {
	// FraudThreshold is the lower bound of the HIGH risk level.
	FraudThreshold float64 `json:"fraudThreshold"`
	// HighRiskThreshold is the lower bound of the CRITICAL risk level.
	HighRiskThreshold float64 `json:"highRiskThreshold"`

	BusinessHoursStart int `json:"businessHoursStart"`
	BusinessHoursEnd   int `json:"businessHoursEnd"`

	MaxTransactionAmount float64 `json:"maxTransactionAmount"`
	Currency             string  `json:"currency"`

	VelocityWindow time.Duration `json:"velocityWindow"`
	HistoryWindow  time.Duration `json:"historyWindow"`

	// Timezone is the IANA zone used for hour and weekday features.
	Timezone string `json:"timezone"`
}

// ModelConfig selects and locates the anomaly model.
type ModelConfig struct {
	// Kind is "forest" or "stub".
	Kind string `json:"kind"`
	// Dir holds model.json and scaler.json.
	Dir  string `json:"dir"`
	Seed uint64 `json:"seed"`

	// Stub settings
	StubRaw float64 `json:"stubRaw"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `json:"level"`  // debug, info, warn, error
	Format      string `json:"format"` // json, console
	Development bool   `json:"development"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the single-node configuration: SQLite, in-memory cache
// and channel bus.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  30,
			WriteTimeout: 30,
			CORSOrigins:  []string{"*"},
		},
		Fraud: FraudConfig{
			FraudThreshold:       0.7,
			HighRiskThreshold:    0.8,
			BusinessHoursStart:   9,
			BusinessHoursEnd:     17,
			MaxTransactionAmount: 1000000,
			Currency:             "PKR",
			VelocityWindow:       60 * time.Minute,
			HistoryWindow:        30 * 24 * time.Hour,
			Timezone:             "UTC",
		},
		Model: ModelConfig{
			Kind: "forest",
			Dir:  "./models",
			Seed: 42,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		StatsRefresh: 30 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ClusterConfig returns a configuration for a multi-instance deployment:
// PostgreSQL, Redis two-phase cache and NATS.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Repository = RepositoryConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresDB:      "kestrel",
		PostgresSSLMode: "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
