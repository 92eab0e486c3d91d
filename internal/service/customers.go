package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// DefaultProfileTTL is how long customer profiles stay cached.
const DefaultProfileTTL = 5 * time.Minute

// CustomerService manages customer records. Profiles are read through the
// cache; the store stays the source of truth.
type CustomerService struct {
	repo    domain.Repository
	cache   domain.Cache
	ttl     time.Duration
	metrics metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewCustomerService creates a customer service. cache may be nil.
func NewCustomerService(repo domain.Repository, cache domain.Cache, ttl time.Duration, m metrics.Collector, logger *slog.Logger) *CustomerService {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &CustomerService{
		repo:    repo,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  loggerOrDefault(logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert validates and stores a customer. An existing record keeps its
// original account creation time.
func (s *CustomerService) Upsert(ctx context.Context, req *domain.CustomerRequest) (*domain.Customer, error) {
	if req == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	if err := s.repo.SaveCustomer(ctx, req.ToCustomer(s.now())); err != nil {
		return nil, err
	}

	// Read back so the caller and the cache see the stored creation time.
	c, err := s.repo.GetCustomer(ctx, req.AccountNumber)
	if err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, c)
	return c, nil
}

// Get returns a customer by account number, from the cache when possible.
func (s *CustomerService) Get(ctx context.Context, accountNumber string) (*domain.Customer, error) {
	if s.cache != nil {
		c, err := s.cache.GetCustomer(ctx, accountNumber)
		if err != nil {
			s.logger.Warn("customer cache read failed", "accountNumber", accountNumber, "error", err)
		}
		if c != nil {
			s.metrics.RecordCacheLookup(true)
			return c, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	c, err := s.repo.GetCustomer(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, c)
	return c, nil
}

func (s *CustomerService) cacheProfile(ctx context.Context, c *domain.Customer) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCustomer(ctx, c, s.ttl); err != nil {
		s.logger.Warn("customer cache write failed", "accountNumber", c.AccountNumber, "error", err)
	}
}

// ContextBuilder derives the scoring context of an account from its
// customer record and its recent history.
type ContextBuilder struct {
	customers *CustomerService
	repo      domain.Store
	history   time.Duration
}

// NewContextBuilder creates a context builder reading history over the
// trailing window.
func NewContextBuilder(customers *CustomerService, repo domain.Store, history time.Duration) *ContextBuilder {
	if history <= 0 {
		history = 30 * 24 * time.Hour
	}
	return &ContextBuilder{customers: customers, repo: repo, history: history}
}

// Build returns the customer context of accountNumber as of at. It returns
// nil, nil when the account has no customer record.
func (b *ContextBuilder) Build(ctx context.Context, accountNumber string, at time.Time) (*domain.CustomerContext, error) {
	c, err := b.customers.Get(ctx, accountNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	recent, err := b.repo.ListTransactions(ctx, domain.TransactionFilter{
		AccountNumber: accountNumber,
		Since:         at.Add(-b.history),
	})
	if err != nil {
		return nil, err
	}

	var avg float64
	if len(recent) > 0 {
		var sum float64
		for _, tx := range recent {
			sum += tx.Amount
		}
		avg = sum / float64(len(recent))
	}

	return &domain.CustomerContext{
		AccountBalance:       c.AccountBalance,
		AvgTransactionAmount: avg,
		RecentTransactions:   recent,
		CustomerRiskScore:    c.RiskScore,
		AccountAgeDays:       max(0, int(at.Sub(c.AccountCreated).Hours()/24)),
	}, nil
}
