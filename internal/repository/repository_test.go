package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
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

	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTransaction(id, account string, amount float64, at time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:            id,
		AccountNumber: account,
		Type:          domain.TxTransfer,
		Amount:        amount,
		Currency:      "PKR",
		Timestamp:     at,
		Location:      "Karachi",
		IsSuccessful:  true,
		FraudScore:    0.12,
		RiskLevel:     domain.RiskLow,
	}
}

func testAlert(id, txID string, severity domain.RiskLevel, at time.Time) *domain.FraudAlert {
	return &domain.FraudAlert{
		ID:            id,
		TransactionID: txID,
		AccountNumber: "1234567890",
		AlertType:     domain.AlertHighRiskTransaction,
		Severity:      severity,
		Message:       "High risk transaction detected",
		FraudScore:    0.82,
		RiskFactors:   []string{"Unusually high transaction amount", "Late night transaction"},
		Timestamp:     at,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := testTransaction("TXN000000000001", "1234567890", 1500.50, now)
		tx.IsFlagged = true
		tx.RiskLevel = domain.RiskHigh

		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		got, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if got.Amount != tx.Amount {
			t.Errorf("expected Amount %.2f, got %.2f", tx.Amount, got.Amount)
		}
		if got.Type != domain.TxTransfer {
			t.Errorf("expected type transfer, got %s", got.Type)
		}
		if !got.IsFlagged || !got.IsSuccessful {
			t.Errorf("expected flagged and successful, got %+v", got)
		}
		if got.RiskLevel != domain.RiskHigh {
			t.Errorf("expected risk level high, got %s", got.RiskLevel)
		}
		if !got.Timestamp.Equal(now) {
			t.Errorf("expected timestamp %v, got %v", now, got.Timestamp)
		}
	})

	t.Run("DuplicateTransaction", func(t *testing.T) {
		tx := testTransaction("TXN000000000001", "1234567890", 10, now)
		if err := repo.SaveTransaction(ctx, tx); err == nil {
			t.Error("expected error for duplicate transaction id")
		}
	})

	t.Run("RequiresIDs", func(t *testing.T) {
		err := repo.SaveTransaction(ctx, &domain.Transaction{ID: "TXN000000000099"})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		err = repo.SaveAlert(ctx, &domain.FraudAlert{ID: "a"})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ListAndAggregateTransactions", func(t *testing.T) {
		for i, amt := range []float64{100, 200, 300} {
			tx := testTransaction("TXN00000000010"+string(rune('0'+i)), "9999999999", amt, now.Add(time.Duration(-i)*time.Minute))
			if err := repo.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		list, err := repo.ListTransactions(ctx, domain.TransactionFilter{AccountNumber: "9999999999"})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 transactions, got %d", len(list))
		}
		if list[0].Amount != 100 || list[2].Amount != 300 {
			t.Errorf("expected newest first, got %v, %v", list[0].Amount, list[2].Amount)
		}

		limited, err := repo.ListTransactions(ctx, domain.TransactionFilter{AccountNumber: "9999999999", Limit: 2})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 transactions, got %d", len(limited))
		}

		window, err := repo.ListTransactions(ctx, domain.TransactionFilter{
			AccountNumber: "9999999999",
			Since:         now.Add(-90 * time.Second),
		})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(window) != 2 {
			t.Errorf("expected 2 transactions in window, got %d", len(window))
		}

		flagged, err := repo.CountTransactions(ctx, domain.TransactionFilter{FlaggedOnly: true})
		if err != nil {
			t.Fatalf("CountTransactions failed: %v", err)
		}
		if flagged != 1 {
			t.Errorf("expected 1 flagged transaction, got %d", flagged)
		}

		sum, err := repo.SumTransactionAmount(ctx, domain.TransactionFilter{AccountNumber: "9999999999"})
		if err != nil {
			t.Fatalf("SumTransactionAmount failed: %v", err)
		}
		if sum != 600 {
			t.Errorf("expected volume 600, got %v", sum)
		}

		empty, err := repo.SumTransactionAmount(ctx, domain.TransactionFilter{AccountNumber: "0000000000"})
		if err != nil {
			t.Fatalf("SumTransactionAmount failed: %v", err)
		}
		if empty != 0 {
			t.Errorf("expected 0 for no rows, got %v", empty)
		}
	})

	t.Run("SaveAndGetAlert", func(t *testing.T) {
		a := testAlert("alert-001", "TXN000000000001", domain.RiskHigh, now)
		if err := repo.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		got, err := repo.GetAlert(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if len(got.RiskFactors) != 2 || got.RiskFactors[1] != "Late night transaction" {
			t.Errorf("expected factors in order, got %v", got.RiskFactors)
		}
		if got.IsResolved || got.ResolvedAt != nil {
			t.Error("new alert should be unresolved")
		}
	})

	t.Run("AlertRequiresTransaction", func(t *testing.T) {
		a := testAlert("alert-orphan", "TXN-MISSING", domain.RiskHigh, now)
		if err := repo.SaveAlert(ctx, a); err == nil {
			t.Error("expected foreign key violation for unknown transaction")
		}
	})

	t.Run("ListAlerts", func(t *testing.T) {
		a := testAlert("alert-002", "TXN000000000100", domain.RiskCritical, now.Add(time.Second))
		if err := repo.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		all, err := repo.ListAlerts(ctx, domain.AlertFilter{})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(all) != 2 || all[0].ID != "alert-002" {
			t.Errorf("expected 2 alerts newest first, got %d", len(all))
		}

		critical, err := repo.ListAlerts(ctx, domain.AlertFilter{Severity: domain.RiskCritical})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(critical) != 1 {
			t.Errorf("expected 1 critical alert, got %d", len(critical))
		}
	})

	t.Run("ResolveAlert", func(t *testing.T) {
		at := now.Add(time.Hour)
		if err := repo.ResolveAlert(ctx, "alert-001", "analyst-7", "customer confirmed", at); err != nil {
			t.Fatalf("ResolveAlert failed: %v", err)
		}

		got, err := repo.GetAlert(ctx, "alert-001")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if !got.IsResolved || got.ResolvedBy != "analyst-7" || got.ResolutionNotes != "customer confirmed" {
			t.Errorf("unexpected resolution: %+v", got)
		}
		if got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
			t.Errorf("expected resolved at %v, got %v", at, got.ResolvedAt)
		}

		err = repo.ResolveAlert(ctx, "alert-001", "analyst-8", "", at)
		if !errors.Is(err, domain.ErrAlreadyResolved) {
			t.Errorf("expected ErrAlreadyResolved, got %v", err)
		}

		err = repo.ResolveAlert(ctx, "nonexistent", "analyst-8", "", at)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		active, err := repo.CountAlerts(ctx, domain.AlertFilter{ActiveOnly: true})
		if err != nil {
			t.Fatalf("CountAlerts failed: %v", err)
		}
		if active != 1 {
			t.Errorf("expected 1 active alert, got %d", active)
		}
	})

	t.Run("Customers", func(t *testing.T) {
		created := now.Add(-400 * 24 * time.Hour)
		c := &domain.Customer{
			AccountNumber:  "1234567890",
			Name:           "Bilal Ahmed",
			CNIC:           "42101-1234567-3",
			Phone:          "03001234567",
			Province:       "Sindh",
			AccountBalance: 50000,
			AccountCreated: created,
			IsActive:       true,
			RiskScore:      0.2,
		}
		if err := repo.SaveCustomer(ctx, c); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}

		update := *c
		update.AccountBalance = 75000
		update.AccountCreated = now
		if err := repo.SaveCustomer(ctx, &update); err != nil {
			t.Fatalf("SaveCustomer update failed: %v", err)
		}

		got, err := repo.GetCustomer(ctx, c.AccountNumber)
		if err != nil {
			t.Fatalf("GetCustomer failed: %v", err)
		}
		if got.AccountBalance != 75000 {
			t.Errorf("expected balance 75000, got %v", got.AccountBalance)
		}
		if !got.AccountCreated.Equal(created) {
			t.Errorf("expected account creation time to be kept, got %v", got.AccountCreated)
		}
		if !got.IsActive {
			t.Error("expected active customer")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetTransaction(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetAlert(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetCustomer(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestInTx(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("CommitsTogether", func(t *testing.T) {
		err := repo.InTx(ctx, func(s domain.Store) error {
			if err := s.SaveTransaction(ctx, testTransaction("TXN0000000000C1", "1234567890", 10, now)); err != nil {
				return err
			}
			return s.SaveAlert(ctx, testAlert("alert-c1", "TXN0000000000C1", domain.RiskHigh, now))
		})
		if err != nil {
			t.Fatalf("InTx failed: %v", err)
		}
		if _, err := repo.GetAlert(ctx, "alert-c1"); err != nil {
			t.Errorf("expected committed alert, got %v", err)
		}
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		err := repo.InTx(ctx, func(s domain.Store) error {
			if err := s.SaveTransaction(ctx, testTransaction("TXN0000000000R1", "1234567890", 10, now)); err != nil {
				return err
			}
			// Unknown transaction id violates the foreign key.
			return s.SaveAlert(ctx, testAlert("alert-r1", "TXN-MISSING", domain.RiskHigh, now))
		})
		if err == nil {
			t.Fatal("expected InTx to fail")
		}
		if _, err := repo.GetTransaction(ctx, "TXN0000000000R1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected rolled back transaction, got %v", err)
		}
	})

	t.Run("RollsBackOnPanic", func(t *testing.T) {
		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_ = repo.InTx(ctx, func(s domain.Store) error {
				if err := s.SaveTransaction(ctx, testTransaction("TXN0000000000P1", "1234567890", 10, now)); err != nil {
					return err
				}
				panic("boom")
			})
		}()
		if _, err := repo.GetTransaction(ctx, "TXN0000000000P1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected rolled back transaction, got %v", err)
		}
	})
}

func TestMemoryDatabase(t *testing.T) {
	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.SaveTransaction(ctx, testTransaction("TXN0000000000M1", "1234567890", 10, time.Now())); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}
	n, err := repo.CountTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("CountTransactions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 transaction, got %d", n)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	s := &sqlStore{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := s.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	sqlite := &sqlStore{driver: "sqlite"}
	if got := sqlite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite queries should be unchanged, got %q", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{
		PostgresHost:    "db",
		PostgresPort:    5432,
		PostgresDB:      "kestrel",
		PostgresSSLMode: "disable",
	})
	want := "host=db port=5432 dbname=kestrel sslmode=disable application_name=kestrel connect_timeout=10"
	if dsn != want {
		t.Errorf("expected %q, got %q", want, dsn)
	}
}
