package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const transactionColumns = `id, account_number, type, amount, currency, timestamp,
	location, device_info, ip_address, merchant_name, description,
	is_successful, fraud_score, risk_level, is_flagged`

const alertColumns = `id, transaction_id, account_number, alert_type, severity, message,
	fraud_score, risk_factors, timestamp, is_resolved, resolved_by, resolution_notes, resolved_at`

const customerColumns = `account_number, name, cnic, phone, email, city, province,
	account_balance, account_created, is_active, risk_score`

type scanner interface {
	Scan(dest ...any) error
}

// SaveTransaction stores a new transaction.
func (s *sqlStore) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" || tx.AccountNumber == "" {
		return fmt.Errorf("%w: transaction id and account number are required", domain.ErrInvalidInput)
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, s.rebind(query),
		tx.ID, tx.AccountNumber, string(tx.Type), tx.Amount, tx.Currency, tx.Timestamp.UTC(),
		tx.Location, tx.DeviceInfo, tx.IPAddress, tx.MerchantName, tx.Description,
		boolInt(tx.IsSuccessful), tx.FraudScore, string(tx.RiskLevel), boolInt(tx.IsFlagged),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID.
func (s *sqlStore) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	tx, err := scanTransaction(s.q.QueryRowContext(ctx, s.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns matching transactions, newest first.
func (s *sqlStore) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]*domain.Transaction, error) {
	w := transactionWhere(f)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + w.String() +
		` ORDER BY timestamp DESC, id DESC` + limitClause(f.Limit, w)

	rows, err := s.q.QueryContext(ctx, s.rebind(query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// CountTransactions counts matching transactions. Limit is ignored.
func (s *sqlStore) CountTransactions(ctx context.Context, f domain.TransactionFilter) (int, error) {
	w := transactionWhere(f)
	var n int
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM transactions`+w.String()), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// SumTransactionAmount sums the amount of matching transactions. Limit is ignored.
func (s *sqlStore) SumTransactionAmount(ctx context.Context, f domain.TransactionFilter) (float64, error) {
	w := transactionWhere(f)
	var sum sql.NullFloat64
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT SUM(amount) FROM transactions`+w.String()), w.args...).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum.Float64, nil
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var typ, level string
	var successful, flagged int

	if err := row.Scan(
		&tx.ID, &tx.AccountNumber, &typ, &tx.Amount, &tx.Currency, &tx.Timestamp,
		&tx.Location, &tx.DeviceInfo, &tx.IPAddress, &tx.MerchantName, &tx.Description,
		&successful, &tx.FraudScore, &level, &flagged,
	); err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(typ)
	tx.RiskLevel = domain.RiskLevel(level)
	tx.IsSuccessful = successful == 1
	tx.IsFlagged = flagged == 1
	tx.Timestamp = tx.Timestamp.UTC()
	return &tx, nil
}

// SaveAlert stores a new alert.
func (s *sqlStore) SaveAlert(ctx context.Context, a *domain.FraudAlert) error {
	if a == nil || a.ID == "" || a.TransactionID == "" {
		return fmt.Errorf("%w: alert id and transaction id are required", domain.ErrInvalidInput)
	}

	var resolvedAt any
	if a.ResolvedAt != nil {
		resolvedAt = a.ResolvedAt.UTC()
	}

	query := `INSERT INTO fraud_alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, s.rebind(query),
		a.ID, a.TransactionID, a.AccountNumber, string(a.AlertType), string(a.Severity), a.Message,
		a.FraudScore, domain.EncodeRiskFactors(a.RiskFactors), a.Timestamp.UTC(),
		boolInt(a.IsResolved), a.ResolvedBy, a.ResolutionNotes, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *sqlStore) GetAlert(ctx context.Context, alertID string) (*domain.FraudAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM fraud_alerts WHERE id = ?`

	a, err := scanAlert(s.q.QueryRowContext(ctx, s.rebind(query), alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAlerts returns matching alerts, newest first.
func (s *sqlStore) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]*domain.FraudAlert, error) {
	w := alertWhere(f)
	query := `SELECT ` + alertColumns + ` FROM fraud_alerts` + w.String() +
		` ORDER BY timestamp DESC, id DESC` + limitClause(f.Limit, w)

	rows, err := s.q.QueryContext(ctx, s.rebind(query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*domain.FraudAlert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountAlerts counts matching alerts. Limit is ignored.
func (s *sqlStore) CountAlerts(ctx context.Context, f domain.AlertFilter) (int, error) {
	w := alertWhere(f)
	var n int
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM fraud_alerts`+w.String()), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// ResolveAlert marks an unresolved alert as resolved. It returns
// ErrNotFound for unknown alerts and ErrAlreadyResolved when the alert was
// resolved before.
func (s *sqlStore) ResolveAlert(ctx context.Context, alertID, resolvedBy, notes string, at time.Time) error {
	query := `UPDATE fraud_alerts
		SET is_resolved = 1, resolved_by = ?, resolution_notes = ?, resolved_at = ?
		WHERE id = ? AND is_resolved = 0`

	result, err := s.q.ExecContext(ctx, s.rebind(query), resolvedBy, notes, at.UTC(), alertID)
	if err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", alertID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetAlert(ctx, alertID); err != nil {
		return err
	}
	return fmt.Errorf("alert %s: %w", alertID, domain.ErrAlreadyResolved)
}

func scanAlert(row scanner) (*domain.FraudAlert, error) {
	var a domain.FraudAlert
	var typ, severity, factors string
	var resolved int
	var resolvedAt sql.NullTime

	if err := row.Scan(
		&a.ID, &a.TransactionID, &a.AccountNumber, &typ, &severity, &a.Message,
		&a.FraudScore, &factors, &a.Timestamp, &resolved, &a.ResolvedBy, &a.ResolutionNotes, &resolvedAt,
	); err != nil {
		return nil, err
	}

	a.AlertType = domain.AlertType(typ)
	a.Severity = domain.RiskLevel(severity)
	a.RiskFactors = domain.DecodeRiskFactors(factors)
	a.IsResolved = resolved == 1
	a.Timestamp = a.Timestamp.UTC()
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		a.ResolvedAt = &t
	}
	return &a, nil
}

// SaveCustomer inserts or updates a customer keyed by account number.
// The original account creation time is kept on update.
func (s *sqlStore) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.AccountNumber == "" {
		return fmt.Errorf("%w: account number is required", domain.ErrInvalidInput)
	}

	query := `INSERT INTO customers (` + customerColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_number) DO UPDATE SET
			name = excluded.name,
			cnic = excluded.cnic,
			phone = excluded.phone,
			email = excluded.email,
			city = excluded.city,
			province = excluded.province,
			account_balance = excluded.account_balance,
			is_active = excluded.is_active,
			risk_score = excluded.risk_score,
			updated_at = excluded.updated_at`

	_, err := s.q.ExecContext(ctx, s.rebind(query),
		c.AccountNumber, c.Name, c.CNIC, c.Phone, c.Email, c.City, c.Province,
		c.AccountBalance, c.AccountCreated.UTC(), boolInt(c.IsActive), c.RiskScore,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save customer %s: %w", c.AccountNumber, err)
	}
	return nil
}

// GetCustomer retrieves a customer by account number.
func (s *sqlStore) GetCustomer(ctx context.Context, accountNumber string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE account_number = ?`

	var c domain.Customer
	var active int
	err := s.q.QueryRowContext(ctx, s.rebind(query), accountNumber).Scan(
		&c.AccountNumber, &c.Name, &c.CNIC, &c.Phone, &c.Email, &c.City, &c.Province,
		&c.AccountBalance, &c.AccountCreated, &active, &c.RiskScore,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", accountNumber, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	c.IsActive = active == 1
	c.AccountCreated = c.AccountCreated.UTC()
	return &c, nil
}
