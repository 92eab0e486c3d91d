// Kestrel - real-time fraud scoring for banking transactions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/kestrel/internal/alerts"
	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/logging"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/service"
	"github.com/opensource-finance/kestrel/internal/tracing"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("kestrel failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	logger.SetDefault()

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
		"environment", cfg.Environment,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model", cfg.Model.Kind,
		"fraud_threshold", cfg.Fraud.FraudThreshold,
		"high_risk_threshold", cfg.Fraud.HighRiskThreshold,
	)

	// Create context cancelled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type, "two_phase", cfg.Cache.EnableTwoPhase)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewPrometheusCollector("kestrel")
	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Scoring pipeline
	extractor, err := features.NewExtractor(cfg.Fraud)
	if err != nil {
		return fmt.Errorf("init feature extractor: %w", err)
	}
	model, err := anomaly.New(cfg.Model, logger.Logger)
	if err != nil {
		return fmt.Errorf("init anomaly model: %w", err)
	}
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return fmt.Errorf("init rule engine: %w", err)
	}
	slog.Info("scoring pipeline initialized",
		"model", model.Info().Kind,
		"model_samples", model.Info().Samples,
		"rules_count", engine.RulesCount(),
	)
	pipeline := scoring.NewPipeline(extractor, model, engine, cfg.Fraud, logger.Logger)

	// Services
	customers := service.NewCustomerService(repo, cacheImpl, service.DefaultProfileTTL, collector, logger.Logger)
	contexts := service.NewContextBuilder(customers, repo, cfg.Fraud.HistoryWindow)
	txs := service.NewTransactionService(repo, pipeline, contexts, alerts.NewGenerator(nil), busImpl, collector, cfg.Fraud, logger.Logger)
	alertSvc := service.NewAlertService(repo, busImpl, collector, logger.Logger)
	models := service.NewModelService(repo, model, extractor, cfg.Fraud, logger.Logger)

	// Background workers
	refresher := worker.NewStatsRefresher(txs, alertSvc, busImpl, collector, cfg.StatsRefresh, logger.Logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	notifier := worker.NewAlertNotifier(busImpl, domain.RiskCritical, logger.Logger)
	if err := notifier.Start(ctx); err != nil {
		slog.Error("failed to start alert notifier", "error", err)
	} else {
		defer notifier.Stop()
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Dependencies{
		Transactions: txs,
		Alerts:       alertSvc,
		Customers:    customers,
		Models:       models,
		Engine:       engine,
		Dashboard:    refresher,
		Repo:         repo,
		Cache:        cacheImpl,
		Bus:          busImpl,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Currency:     cfg.Fraud.Currency,
		Version:      Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
	return nil
}
