// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	*sqlStore
	db *sql.DB
}

// openTimeout bounds the initial connection check.
const openTimeout = 10 * time.Second

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(ctx, cfg)
	case "postgres":
		db, err = openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		sqlStore: &sqlStore{q: db, driver: cfg.Driver},
		db:       db,
	}

	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// InTx runs fn against a store bound to one database transaction. It
// commits when fn returns nil and rolls back on error or panic.
func (r *SQLRepository) InTx(ctx context.Context, fn func(domain.Store) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlStore{q: tx, driver: r.driver}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// sqlStore runs the queries of domain.Store against a querier.
type sqlStore struct {
	q      querier
	driver string
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// where accumulates SQL conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	s := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		s += " AND " + c
	}
	return s
}

func transactionWhere(f domain.TransactionFilter) *where {
	w := &where{}
	if f.AccountNumber != "" {
		w.add("account_number = ?", f.AccountNumber)
	}
	if f.FlaggedOnly {
		w.add("is_flagged = 1")
	}
	if f.MinScore > 0 {
		w.add("fraud_score >= ?", f.MinScore)
	}
	if !f.Since.IsZero() {
		w.add("timestamp >= ?", f.Since.UTC())
	}
	if !f.Before.IsZero() {
		w.add("timestamp < ?", f.Before.UTC())
	}
	return w
}

func alertWhere(f domain.AlertFilter) *where {
	w := &where{}
	if f.Severity != "" {
		w.add("severity = ?", string(f.Severity))
	}
	if f.ActiveOnly {
		w.add("is_resolved = 0")
	}
	if !f.Since.IsZero() {
		w.add("timestamp >= ?", f.Since.UTC())
	}
	return w
}

func limitClause(limit int, w *where) string {
	if limit <= 0 {
		return ""
	}
	w.args = append(w.args, limit)
	return " LIMIT ?"
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
