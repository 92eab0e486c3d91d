package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/alerts"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	transactions *service.TransactionService
	alerts       *service.AlertService
	customers    *service.CustomerService
	models       *service.ModelService
	engine       *rules.Engine
	dashboard    DashboardSource

	repo  domain.Repository
	cache domain.Cache
	bus   domain.EventBus

	currency string
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		transactions: deps.Transactions,
		alerts:       deps.Alerts,
		customers:    deps.Customers,
		models:       deps.Models,
		engine:       deps.Engine,
		dashboard:    deps.Dashboard,
		repo:         deps.Repo,
		cache:        deps.Cache,
		bus:          deps.Bus,
		currency:     deps.Currency,
		version:      deps.Version,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps a listing with its size.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// CreateTransaction handles POST /transactions: score, store and alert.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.transactions.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp.TraceID = GetTraceID(r.Context())

	writeJSON(w, http.StatusCreated, resp)
}

// Evaluate handles POST /evaluate: score without storing.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req domain.TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	eval, err := h.transactions.Evaluate(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EvaluateResponse{
		Evaluation: eval,
		TraceID:    GetTraceID(r.Context()),
		ProcessMs:  time.Since(start).Milliseconds(),
	})
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	*service.Evaluation
	TraceID   string `json:"traceId,omitempty"`
	ProcessMs int64  `json:"processMs"`
}

// ListTransactions handles GET /transactions?account=&flagged=true&limit=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var txs []*domain.Transaction
	account := q.Get("account")
	switch {
	case account != "":
		txs, err = h.transactions.ListByAccount(r.Context(), account, limit)
	case q.Get("flagged") == "true":
		txs, err = h.transactions.ListFlagged(r.Context(), limit)
	default:
		txs, err = h.transactions.List(r.Context(), domain.TransactionFilter{Limit: limit})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listOf(txs))
}

// TransactionStats handles GET /transactions/stats.
func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.transactions.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ListAlerts handles GET /alerts?severity=&limit=. Only unresolved alerts
// are listed.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var list []*domain.FraudAlert
	if severity := q.Get("severity"); severity != "" {
		list, err = h.alerts.ListBySeverity(r.Context(), domain.RiskLevel(strings.ToLower(severity)), limit)
	} else {
		list, err = h.alerts.ListActive(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listOf(list))
}

// AlertStats handles GET /alerts/stats.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.alerts.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetAlert retrieves an alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ResolveAlert handles POST /alerts/{id}/resolve. The resolver is the
// X-Analyst-ID header, or resolvedBy in the body when the header is absent.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req domain.ResolveRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	resolvedBy := GetAnalystID(r.Context())
	if resolvedBy == "" {
		resolvedBy = req.ResolvedBy
	}
	if strings.TrimSpace(resolvedBy) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: AnalystIDHeader + " header or resolvedBy is required",
		})
		return
	}

	alert, err := h.alerts.Resolve(r.Context(), chi.URLParam(r, "id"), resolvedBy, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// CustomerView is the masked customer representation returned by the API.
type CustomerView struct {
	AccountNumber  string    `json:"accountNumber"`
	Name           string    `json:"name"`
	CNIC           string    `json:"cnic"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	City           string    `json:"city,omitempty"`
	Province       string    `json:"province,omitempty"`
	AccountBalance float64   `json:"accountBalance"`
	Balance        string    `json:"balanceDisplay"`
	AccountCreated time.Time `json:"accountCreated"`
	IsActive       bool      `json:"isActive"`
	RiskScore      float64   `json:"riskScore"`
}

func newCustomerView(c *domain.Customer, currency string) CustomerView {
	return CustomerView{
		AccountNumber:  alerts.MaskAccount(c.AccountNumber),
		Name:           c.Name,
		CNIC:           alerts.MaskCNIC(c.CNIC),
		Phone:          c.Phone,
		Email:          c.Email,
		City:           c.City,
		Province:       c.Province,
		AccountBalance: c.AccountBalance,
		Balance:        alerts.FormatCurrency(c.AccountBalance, currency),
		AccountCreated: c.AccountCreated,
		IsActive:       c.IsActive,
		RiskScore:      c.RiskScore,
	}
}

// UpsertCustomer handles POST /customers.
func (h *Handler) UpsertCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.customers.Upsert(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCustomerView(c, h.currency))
}

// GetCustomer handles GET /customers/{account}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Get(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCustomerView(c, h.currency))
}

// ListRules returns the rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, listOf(loaded))
}

// ModelInfo handles GET /model.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.models.Info())
}

// RetrainModel handles POST /model/retrain. An empty body retrains on all
// stored transactions without labels.
func (h *Handler) RetrainModel(w http.ResponseWriter, r *http.Request) {
	var req service.RetrainRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	info, err := h.models.Retrain(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Dashboard handles GET /dashboard with the last refreshed snapshot.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var snap *domain.DashboardSnapshot
	if h.dashboard != nil {
		snap = h.dashboard.Snapshot()
	}
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dashboard stats not yet available"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// Health returns server health status. Degraded components do not change
// the status code.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HealthResponse{
		Status:     "healthy",
		Version:    h.version,
		Components: map[string]string{},
	}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			resp.Components[name] = "unhealthy"
			resp.Status = "degraded"
			return
		}
		resp.Components[name] = "healthy"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("eventbus", func() error { return h.bus.Ping(ctx) })
	}
	if h.models != nil {
		resp.Components["model"] = h.models.Info().Status
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// decodeBody parses a JSON body into v and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid JSON request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return false
	}
	return true
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidInput)
	}
	return n, nil
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
