// Package api exposes Kestrel over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/service"
)

// DashboardSource provides the latest dashboard snapshot.
type DashboardSource interface {
	Snapshot() *domain.DashboardSnapshot
}

// Dependencies are the collaborators the handlers call. Repo, Cache, Bus
// and Dashboard may be nil; Metrics defaults to the global Prometheus
// registry.
type Dependencies struct {
	Transactions *service.TransactionService
	Alerts       *service.AlertService
	Customers    *service.CustomerService
	Models       *service.ModelService
	Engine       *rules.Engine
	Dashboard    DashboardSource

	Repo  domain.Repository
	Cache domain.Cache
	Bus   domain.EventBus

	Metrics  http.Handler
	Currency string
	Version  string
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies) *Server {
	handler := NewHandler(deps)
	router := chi.NewRouter()

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.CORSOrigins))
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))
	router.Use(AnalystMiddleware)

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metricsHandler)

	// Transactions
	router.Post("/transactions", handler.CreateTransaction)
	router.Get("/transactions", handler.ListTransactions)
	router.Get("/transactions/stats", handler.TransactionStats)
	router.Get("/transactions/{id}", handler.GetTransaction)
	router.Post("/evaluate", handler.Evaluate)

	// Alerts
	router.Get("/alerts", handler.ListAlerts)
	router.Get("/alerts/stats", handler.AlertStats)
	router.Get("/alerts/{id}", handler.GetAlert)
	router.Post("/alerts/{id}/resolve", handler.ResolveAlert)

	// Customers
	router.Post("/customers", handler.UpsertCustomer)
	router.Get("/customers/{account}", handler.GetCustomer)

	// Rules and model
	router.Get("/rules", handler.ListRules)
	router.Get("/model", handler.ModelInfo)
	router.Post("/model/retrain", handler.RetrainModel)

	router.Get("/dashboard", handler.Dashboard)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
