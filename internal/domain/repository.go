// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Store is the set of persistence operations available both on the
// repository and inside an atomic unit.
type Store interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error)
	CountTransactions(ctx context.Context, f TransactionFilter) (int, error)
	SumTransactionAmount(ctx context.Context, f TransactionFilter) (float64, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *FraudAlert) error
	GetAlert(ctx context.Context, alertID string) (*FraudAlert, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]*FraudAlert, error)
	CountAlerts(ctx context.Context, f AlertFilter) (int, error)
	ResolveAlert(ctx context.Context, alertID, resolvedBy, notes string, at time.Time) error

	// Customer operations
	SaveCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, accountNumber string) (*Customer, error)
}

// Repository defines the interface for data persistence.
type Repository interface {
	Store

	// InTx runs fn inside a database transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// TransactionFilter narrows transaction listings and aggregates.
// Zero values mean "no constraint".
type TransactionFilter struct {
	AccountNumber string
	FlaggedOnly   bool
	MinScore      float64
	Since         time.Time
	Before        time.Time
	Limit         int
}

// AlertFilter narrows alert listings and counts.
type AlertFilter struct {
	Severity   RiskLevel
	ActiveOnly bool
	Since      time.Time
	Limit      int
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
