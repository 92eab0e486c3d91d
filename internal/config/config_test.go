package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *domain.Config)
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *domain.Config) {
				if cfg.Server.Port != 8000 {
					t.Errorf("expected port 8000, got %d", cfg.Server.Port)
				}
				if cfg.Fraud.FraudThreshold != 0.7 {
					t.Errorf("expected fraud threshold 0.7, got %v", cfg.Fraud.FraudThreshold)
				}
				if cfg.Fraud.HighRiskThreshold != 0.8 {
					t.Errorf("expected high risk threshold 0.8, got %v", cfg.Fraud.HighRiskThreshold)
				}
				if cfg.Fraud.VelocityWindow != time.Hour {
					t.Errorf("expected velocity window 1h, got %v", cfg.Fraud.VelocityWindow)
				}
				if cfg.Fraud.Currency != "PKR" {
					t.Errorf("expected currency PKR, got %s", cfg.Fraud.Currency)
				}
				if cfg.Repository.Driver != "sqlite" {
					t.Errorf("expected sqlite driver, got %s", cfg.Repository.Driver)
				}
				if cfg.StatsRefresh != 30*time.Second {
					t.Errorf("expected stats refresh 30s, got %v", cfg.StatsRefresh)
				}
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				"PORT":                    "9090",
				"FRAUD_THRESHOLD":         "0.6",
				"HIGH_RISK_THRESHOLD":     "0.9",
				"BUSINESS_HOURS_START":    "8",
				"BUSINESS_HOURS_END":      "18",
				"VELOCITY_WINDOW_MINUTES": "15",
				"STATS_REFRESH_SECONDS":   "5",
				"KESTREL_MODEL":           "stub",
				"CACHE_TYPE":              "redis",
				"REDIS_ADDR":              "cache:6379",
				"CACHE_TWO_PHASE":         "true",
				"CORS_ORIGINS":            "https://ops.example.pk, https://risk.example.pk",
				"LOG_DEV":                 "true",
			},
			validate: func(t *testing.T, cfg *domain.Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("expected port 9090, got %d", cfg.Server.Port)
				}
				if cfg.Fraud.FraudThreshold != 0.6 {
					t.Errorf("expected fraud threshold 0.6, got %v", cfg.Fraud.FraudThreshold)
				}
				if cfg.Fraud.BusinessHoursStart != 8 || cfg.Fraud.BusinessHoursEnd != 18 {
					t.Errorf("expected business hours 8-18, got %d-%d", cfg.Fraud.BusinessHoursStart, cfg.Fraud.BusinessHoursEnd)
				}
				if cfg.Fraud.VelocityWindow != 15*time.Minute {
					t.Errorf("expected velocity window 15m, got %v", cfg.Fraud.VelocityWindow)
				}
				if cfg.StatsRefresh != 5*time.Second {
					t.Errorf("expected stats refresh 5s, got %v", cfg.StatsRefresh)
				}
				if cfg.Model.Kind != "stub" {
					t.Errorf("expected stub model, got %s", cfg.Model.Kind)
				}
				if cfg.Cache.Type != "redis" || cfg.Cache.RedisAddr != "cache:6379" || !cfg.Cache.EnableTwoPhase {
					t.Errorf("unexpected cache config: %+v", cfg.Cache)
				}
				if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://risk.example.pk" {
					t.Errorf("unexpected CORS origins: %v", cfg.Server.CORSOrigins)
				}
				if !cfg.Logging.Development {
					t.Error("expected development logging")
				}
			},
		},
		{
			name:    "cluster profile",
			envVars: map[string]string{"KESTREL_PROFILE": "cluster"},
			validate: func(t *testing.T, cfg *domain.Config) {
				if cfg.Repository.Driver != "postgres" {
					t.Errorf("expected postgres driver, got %s", cfg.Repository.Driver)
				}
				if cfg.EventBus.Type != "nats" {
					t.Errorf("expected nats bus, got %s", cfg.EventBus.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("FRAUD_THRESHOLD", "high")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "CURRENCY=USD\nMAX_TRANSACTION_AMOUNT=50000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	// godotenv sets the process environment directly
	t.Cleanup(func() {
		os.Unsetenv("CURRENCY")
		os.Unsetenv("MAX_TRANSACTION_AMOUNT")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fraud.Currency != "USD" {
		t.Errorf("expected currency USD, got %s", cfg.Fraud.Currency)
	}
	if cfg.Fraud.MaxTransactionAmount != 50000 {
		t.Errorf("expected max 50000, got %v", cfg.Fraud.MaxTransactionAmount)
	}
}

func TestValidate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		if err := Validate(domain.DefaultConfig()); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
		if err := Validate(domain.ClusterConfig()); err != nil {
			t.Errorf("expected cluster config to be valid, got %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"PortZero", func(c *domain.Config) { c.Server.Port = 0 }},
		{"PortTooHigh", func(c *domain.Config) { c.Server.Port = 70000 }},
		{"ThresholdAboveOne", func(c *domain.Config) { c.Fraud.FraudThreshold = 1.5 }},
		{"NegativeThreshold", func(c *domain.Config) { c.Fraud.HighRiskThreshold = -0.1 }},
		{"HighBelowFraud", func(c *domain.Config) { c.Fraud.HighRiskThreshold = 0.5 }},
		{"BusinessHoursInverted", func(c *domain.Config) { c.Fraud.BusinessHoursStart = 17; c.Fraud.BusinessHoursEnd = 9 }},
		{"ZeroMaxAmount", func(c *domain.Config) { c.Fraud.MaxTransactionAmount = 0 }},
		{"UnknownTimezone", func(c *domain.Config) { c.Fraud.Timezone = "Mars/Olympus" }},
		{"UnknownModel", func(c *domain.Config) { c.Model.Kind = "xgboost" }},
		{"UnknownDriver", func(c *domain.Config) { c.Repository.Driver = "mysql" }},
		{"UnknownCache", func(c *domain.Config) { c.Cache.Type = "memcached" }},
		{"UnknownBus", func(c *domain.Config) { c.EventBus.Type = "kafka" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b ,c")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("unexpected split: %v", got)
	}
}
