package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/kestrel/internal/alerts"
	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/service"
	"github.com/opensource-finance/kestrel/internal/worker"
)

type testServer struct {
	*Server
	model     *anomaly.StubScorer
	refresher *worker.StatsRefresher
}

// createTestServer wires the real services over a temporary SQLite file.
// The stub model starts quiet (anomaly probability 0).
func createTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() {
		os.Remove(tmpPath)
		os.Remove(tmpPath + "-wal")
		os.Remove(tmpPath + "-shm")
	})

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	profileCache := cache.NewLRUCache(100)

	cfg := domain.DefaultConfig()
	extractor, err := features.NewExtractor(cfg.Fraud)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		t.Fatalf("NewDefaultEngine failed: %v", err)
	}

	model := anomaly.NewStubScorer(1)
	collector := metrics.NewPrometheusCollector("kestrel_test")
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	pipeline := scoring.NewPipeline(extractor, model, engine, cfg.Fraud, nil)
	customers := service.NewCustomerService(repo, profileCache, time.Minute, collector, nil)
	contexts := service.NewContextBuilder(customers, repo, cfg.Fraud.HistoryWindow)
	txs := service.NewTransactionService(repo, pipeline, contexts, alerts.NewGenerator(nil), eventBus, collector, cfg.Fraud, nil)
	alertSvc := service.NewAlertService(repo, eventBus, collector, nil)
	models := service.NewModelService(repo, model, extractor, cfg.Fraud, nil)
	refresher := worker.NewStatsRefresher(txs, alertSvc, eventBus, collector, time.Minute, nil)

	server := NewServer(cfg.Server, Dependencies{
		Transactions: txs,
		Alerts:       alertSvc,
		Customers:    customers,
		Models:       models,
		Engine:       engine,
		Dashboard:    refresher,
		Repo:         repo,
		Cache:        profileCache,
		Bus:          eventBus,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Currency:     cfg.Fraud.Currency,
		Version:      "test-v1",
	})

	return &testServer{Server: server, model: model, refresher: refresher}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func transferRequest(account string, amount float64) domain.TransactionRequest {
	return domain.TransactionRequest{
		AccountNumber: account,
		Type:          domain.TxTransfer,
		Amount:        amount,
		Location:      "Lahore",
		IPAddress:     "10.1.2.3",
	}
}

// createFlagged scores a transaction with the anomaly model forced high and
// returns the stored alert.
func (s *testServer) createFlagged(t *testing.T, account string) *domain.FraudAlert {
	t.Helper()
	s.model.SetRaw(-1)
	defer s.model.SetRaw(1)

	rr := s.do(t, http.MethodPost, "/transactions", transferRequest(account, 250000))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[domain.ScoreResponse](t, rr)
	if resp.Alert == nil {
		t.Fatal("expected alert for flagged transaction")
	}
	return resp.Alert
}

func TestTransactionEndpoints(t *testing.T) {
	server := createTestServer(t)

	var created domain.ScoreResponse

	t.Run("CreateQuietTransaction", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/transactions", transferRequest("1234567890", 1500))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		created = decode[domain.ScoreResponse](t, rr)
		if !strings.HasPrefix(created.Transaction.ID, "TXN") {
			t.Errorf("expected generated TXN id, got %s", created.Transaction.ID)
		}
		if created.Transaction.IsFlagged {
			t.Error("quiet transaction should not be flagged")
		}
		if created.Alert != nil {
			t.Error("quiet transaction should not raise an alert")
		}
		if created.Transaction.Currency != "PKR" {
			t.Errorf("expected default currency PKR, got %s", created.Transaction.Currency)
		}
		if created.TraceID == "" {
			t.Error("expected trace id in response")
		}
	})

	t.Run("CreateFlaggedTransaction", func(t *testing.T) {
		alert := server.createFlagged(t, "1234567890")
		if alert.FraudScore < domain.FlagThreshold {
			t.Errorf("expected alert score >= %v, got %v", domain.FlagThreshold, alert.FraudScore)
		}
		if alert.Severity.Rank() < domain.RiskMedium.Rank() {
			t.Errorf("expected at least medium severity, got %s", alert.Severity)
		}
	})

	t.Run("GetTransaction", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/transactions/"+created.Transaction.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		tx := decode[domain.Transaction](t, rr)
		if tx.AccountNumber != "1234567890" {
			t.Errorf("expected account 1234567890, got %s", tx.AccountNumber)
		}
	})

	t.Run("GetTransactionNotFound", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/transactions/TXNMISSING0000", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("ListByAccount", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/transactions?account=1234567890", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		list := decode[ListResponse[*domain.Transaction]](t, rr)
		if list.Count != 2 {
			t.Errorf("expected 2 transactions, got %d", list.Count)
		}
	})

	t.Run("ListFlagged", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/transactions?flagged=true&limit=10", nil)
		list := decode[ListResponse[*domain.Transaction]](t, rr)
		if list.Count != 1 || !list.Items[0].IsFlagged {
			t.Errorf("expected 1 flagged transaction, got %+v", list)
		}
	})

	t.Run("ListBadLimit", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/transactions?limit=many", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/transactions/stats", nil)
		stats := decode[domain.TransactionStats](t, rr)
		if stats.Total != 2 || stats.Flagged != 1 {
			t.Errorf("expected 2 total and 1 flagged, got %+v", stats)
		}
		if stats.FraudRate != 50 {
			t.Errorf("expected fraud rate 50, got %v", stats.FraudRate)
		}
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		cases := []struct {
			name string
			body any
		}{
			{"InvalidJSON", "{not json"},
			{"EmptyBody", ""},
			{"ShortAccount", transferRequest("123", 100)},
			{"ZeroAmount", transferRequest("1234567890", 0)},
			{"AboveMaximum", transferRequest("1234567890", 5000000)},
			{"UnknownType", domain.TransactionRequest{AccountNumber: "1234567890", Type: "crypto", Amount: 10}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rr := server.do(t, http.MethodPost, "/transactions", tc.body)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
				}
				resp := decode[map[string]string](t, rr)
				if resp["error"] == "" {
					t.Error("expected error message")
				}
			})
		}
	})

	t.Run("DuplicateTransactionID", func(t *testing.T) {
		req := transferRequest("1234567890", 100)
		req.TransactionID = "TXNDUPLICATE01"

		if rr := server.do(t, http.MethodPost, "/transactions", req); rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rr.Code)
		}
		if rr := server.do(t, http.MethodPost, "/transactions", req); rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500 for duplicate id, got %d", rr.Code)
		}
	})
}

func TestEvaluateEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := server.do(t, http.MethodPost, "/evaluate", transferRequest("5555666677", 1000))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decode[map[string]any](t, rr)
	if _, ok := resp["features"]; !ok {
		t.Error("expected features in evaluation")
	}
	if _, ok := resp["rules"]; !ok {
		t.Error("expected rule results in evaluation")
	}
	if resp["wouldAlert"] != false {
		t.Errorf("expected wouldAlert false, got %v", resp["wouldAlert"])
	}

	list := decode[ListResponse[*domain.Transaction]](t, server.do(t, http.MethodGet, "/transactions?account=5555666677", nil))
	if list.Count != 0 {
		t.Errorf("evaluate must not store transactions, found %d", list.Count)
	}
}

func TestAlertEndpoints(t *testing.T) {
	server := createTestServer(t)
	alert := server.createFlagged(t, "9876543210")

	t.Run("ListActive", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/alerts", nil)
		list := decode[ListResponse[*domain.FraudAlert]](t, rr)
		if list.Count != 1 || list.Items[0].ID != alert.ID {
			t.Errorf("expected alert %s, got %+v", alert.ID, list)
		}
	})

	t.Run("ListBySeverity", func(t *testing.T) {
		path := "/alerts?severity=" + strings.ToUpper(string(alert.Severity))
		list := decode[ListResponse[*domain.FraudAlert]](t, server.do(t, http.MethodGet, path, nil))
		if list.Count != 1 {
			t.Errorf("expected 1 alert for %s, got %d", alert.Severity, list.Count)
		}

		if rr := server.do(t, http.MethodGet, "/alerts?severity=extreme", nil); rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for unknown severity, got %d", rr.Code)
		}
	})

	t.Run("GetAlert", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/alerts/"+alert.ID, nil)
		got := decode[domain.FraudAlert](t, rr)
		if got.TransactionID != alert.TransactionID {
			t.Errorf("expected transaction %s, got %s", alert.TransactionID, got.TransactionID)
		}
	})

	t.Run("ResolveRequiresAnalyst", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/alerts/"+alert.ID+"/resolve", map[string]string{"notes": "checked"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Resolve", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/alerts/"+alert.ID+"/resolve",
			map[string]string{"notes": "customer confirmed"},
			AnalystIDHeader, "analyst-07",
		)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		got := decode[domain.FraudAlert](t, rr)
		if !got.IsResolved || got.ResolvedBy != "analyst-07" {
			t.Errorf("unexpected resolution: %+v", got)
		}
		if got.ResolutionNotes != "customer confirmed" {
			t.Errorf("expected notes, got %q", got.ResolutionNotes)
		}
	})

	t.Run("ResolveTwiceConflicts", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/alerts/"+alert.ID+"/resolve",
			map[string]string{"resolvedBy": "analyst-08"},
		)
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})

	t.Run("ResolveUnknown", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/alerts/missing/resolve", nil, AnalystIDHeader, "analyst-07")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats := decode[domain.AlertStats](t, server.do(t, http.MethodGet, "/alerts/stats", nil))
		if stats.Total != 1 || stats.Active != 0 {
			t.Errorf("expected 1 total and 0 active, got %+v", stats)
		}
		if stats.ResolutionRate != 100 {
			t.Errorf("expected resolution rate 100, got %v", stats.ResolutionRate)
		}
	})
}

func TestCustomerEndpoints(t *testing.T) {
	server := createTestServer(t)

	body := domain.CustomerRequest{
		AccountNumber:  "PK0012345678",
		Name:           "Ayesha Khan",
		CNIC:           "35202-1234567-1",
		Phone:          "+923001234567",
		Province:       "Punjab",
		AccountBalance: 250000,
	}

	t.Run("Upsert", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/customers", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		view := decode[CustomerView](t, rr)
		if view.AccountNumber != "****5678" {
			t.Errorf("expected masked account, got %s", view.AccountNumber)
		}
		if view.CNIC != "35202-****7-1" {
			t.Errorf("expected masked CNIC, got %s", view.CNIC)
		}
		if !strings.HasPrefix(view.Balance, "Rs. 250,000") {
			t.Errorf("expected formatted balance, got %s", view.Balance)
		}
	})

	t.Run("Get", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/customers/PK0012345678", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		view := decode[CustomerView](t, rr)
		if view.Name != "Ayesha Khan" {
			t.Errorf("expected name, got %s", view.Name)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		bad := body
		bad.CNIC = "123"
		if rr := server.do(t, http.MethodPost, "/customers", bad); rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if rr := server.do(t, http.MethodGet, "/customers/0000000000", nil); rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestModelEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Info", func(t *testing.T) {
		info := decode[domain.ModelInfo](t, server.do(t, http.MethodGet, "/model", nil))
		if info.FraudThreshold != 0.7 || info.HighRiskThreshold != 0.8 {
			t.Errorf("expected thresholds 0.7/0.8, got %v/%v", info.FraudThreshold, info.HighRiskThreshold)
		}
		if info.Kind != anomaly.KindStub {
			t.Errorf("expected stub model, got %s", info.Kind)
		}
	})

	t.Run("RetrainNeedsHistory", func(t *testing.T) {
		rr := server.do(t, http.MethodPost, "/model/retrain", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Retrain", func(t *testing.T) {
		for i := 0; i < service.MinRetrainSamples; i++ {
			account := fmt.Sprintf("11112222%02d", i)
			if rr := server.do(t, http.MethodPost, "/transactions", transferRequest(account, float64(1000+i))); rr.Code != http.StatusCreated {
				t.Fatalf("seed transaction failed: %d", rr.Code)
			}
		}

		rr := server.do(t, http.MethodPost, "/model/retrain", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		info := decode[domain.ModelInfo](t, rr)
		if info.Samples != service.MinRetrainSamples {
			t.Errorf("expected %d samples, got %d", service.MinRetrainSamples, info.Samples)
		}
	})

	t.Run("Rules", func(t *testing.T) {
		list := decode[ListResponse[*domain.RuleConfig]](t, server.do(t, http.MethodGet, "/rules", nil))
		if list.Count != len(rules.BuiltinRules()) {
			t.Errorf("expected %d rules, got %d", len(rules.BuiltinRules()), list.Count)
		}
	})
}

func TestDashboardEndpoint(t *testing.T) {
	server := createTestServer(t)

	if rr := server.do(t, http.MethodGet, "/dashboard", nil); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 before first refresh, got %d", rr.Code)
	}

	server.createFlagged(t, "4444555566")
	if _, err := server.refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	rr := server.do(t, http.MethodGet, "/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	snap := decode[domain.DashboardSnapshot](t, rr)
	if snap.Transactions.Flagged != 1 || snap.Alerts.Active != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	metricsBody := server.do(t, http.MethodGet, "/metrics", nil).Body.String()
	for _, name := range []string{"kestrel_test_active_alerts 1", "kestrel_test_transactions_scored_total"} {
		if !strings.Contains(metricsBody, name) {
			t.Errorf("expected %q in metrics output", name)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/health", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		resp := decode[HealthResponse](t, rr)
		if resp.Status != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp.Status)
		}
		if resp.Version != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp.Version)
		}
		for _, c := range []string{"repository", "cache", "eventbus", "model"} {
			if resp.Components[c] == "" {
				t.Errorf("expected %s component status", c)
			}
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		if rr := server.do(t, http.MethodGet, "/ready", nil); rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := server.do(t, http.MethodGet, "/health", nil)
		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("AnalystMiddlewareExtractsID", func(t *testing.T) {
		var captured string

		handler := AnalystMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetAnalystID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AnalystIDHeader, " analyst-42 ")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if captured != "analyst-42" {
			t.Errorf("expected analyst 'analyst-42', got '%s'", captured)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedRequestID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}
		if rr.Header().Get("X-Request-ID") != capturedRequestID {
			t.Error("expected X-Request-ID response header to match context")
		}
	})

	t.Run("TracingMiddlewareKeepsClientRequestID", func(t *testing.T) {
		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get(RequestIDHeader) != "req-123" {
			t.Errorf("expected request id req-123, got %s", rr.Header().Get(RequestIDHeader))
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("CORSRestrictsOrigins", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://ops.example.pk"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodOptions, "/alerts", nil)
		req.Header.Set("Origin", "https://ops.example.pk")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204 for preflight, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "https://ops.example.pk" {
			t.Errorf("expected allowed origin, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
		}

		req = httptest.NewRequest(http.MethodGet, "/alerts", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Errorf("expected no allowed origin, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
