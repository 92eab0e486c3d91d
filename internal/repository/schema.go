package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL. Booleans are stored as
// INTEGER 0/1 and risk factors as JSON text.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    account_number TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    cnic TEXT NOT NULL,
    phone TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    province TEXT NOT NULL DEFAULT '',
    account_balance REAL NOT NULL DEFAULT 0,
    account_created TIMESTAMP NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    risk_score REAL NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_cnic ON customers(cnic);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    account_number TEXT NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    device_info TEXT NOT NULL DEFAULT '',
    ip_address TEXT NOT NULL DEFAULT '',
    merchant_name TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    is_successful INTEGER NOT NULL DEFAULT 1,
    fraud_score REAL NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL,
    is_flagged INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_number, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_flagged ON transactions(is_flagged, timestamp);
`

const schemaFraudAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL REFERENCES transactions(id),
    account_number TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    fraud_score REAL NOT NULL,
    risk_factors TEXT NOT NULL DEFAULT '[]',
    timestamp TIMESTAMP NOT NULL,
    is_resolved INTEGER NOT NULL DEFAULT 0,
    resolved_by TEXT NOT NULL DEFAULT '',
    resolution_notes TEXT NOT NULL DEFAULT '',
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_active ON fraud_alerts(is_resolved, timestamp);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_severity ON fraud_alerts(severity, timestamp);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_transaction ON fraud_alerts(transaction_id);
`

// AllSchemas returns all schema definitions in order. Transactions must
// exist before fraud_alerts references them.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaTransactions,
		schemaFraudAlerts,
	}
}
