package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionType is the channel a transaction was made through.
type TransactionType string

const (
	TxDeposit       TransactionType = "deposit"
	TxWithdrawal    TransactionType = "withdrawal"
	TxTransfer      TransactionType = "transfer"
	TxBillPayment   TransactionType = "bill_payment"
	TxMobileBanking TransactionType = "mobile_banking"
	TxATM           TransactionType = "atm"
	TxOnline        TransactionType = "online"
	TxCheque        TransactionType = "cheque"
)

// TransactionTypes lists every type in encoding order.
var TransactionTypes = []TransactionType{
	TxDeposit,
	TxWithdrawal,
	TxTransfer,
	TxBillPayment,
	TxMobileBanking,
	TxATM,
	TxOnline,
	TxCheque,
}

// Code returns the integer encoding used by the anomaly model.
// Unknown types encode to 0.
func (t TransactionType) Code() int {
	for i, known := range TransactionTypes {
		if t == known {
			return i
		}
	}
	return 0
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RiskLevel classifies a fraud score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels from low (0) to critical (3). Unknown levels rank -1.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	return r.Rank() >= 0
}

// Transaction is a scored banking transaction.
// FraudScore, RiskLevel and IsFlagged are set once at creation.
type Transaction struct {
	ID            string          `json:"transactionId"`
	AccountNumber string          `json:"accountNumber"`
	Type          TransactionType `json:"transactionType"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	Timestamp time.Time `json:"timestamp"`

	// Optional metadata
	Location     string `json:"location,omitempty"`
	DeviceInfo   string `json:"deviceInfo,omitempty"`
	IPAddress    string `json:"ipAddress,omitempty"`
	MerchantName string `json:"merchantName,omitempty"`
	Description  string `json:"description,omitempty"`
	IsSuccessful bool   `json:"isSuccessful"`

	// Scoring outcome
	FraudScore float64   `json:"fraudScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	IsFlagged  bool      `json:"isFlagged"`
}

// TransactionRequest is the API request payload for a new transaction.
type TransactionRequest struct {
	TransactionID string          `json:"transactionId,omitempty" validate:"omitempty,min=10,max=50"`
	AccountNumber string          `json:"accountNumber" validate:"required,min=10,max=20"`
	Type          TransactionType `json:"transactionType" validate:"required,txtype"`
	Amount        float64         `json:"amount" validate:"gt=0"`
	Currency      string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Location      string          `json:"location,omitempty" validate:"max=100"`
	DeviceInfo    string          `json:"deviceInfo,omitempty" validate:"max=200"`
	IPAddress     string          `json:"ipAddress,omitempty" validate:"omitempty,ip"`
	MerchantName  string          `json:"merchantName,omitempty" validate:"max=100"`
	Description   string          `json:"description,omitempty" validate:"max=500"`
}

// ToTransaction converts a request to a Transaction stamped at now.
func (r *TransactionRequest) ToTransaction(now time.Time, defaultCurrency string) *Transaction {
	id := r.TransactionID
	if id == "" {
		id = NewTransactionID()
	}
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return &Transaction{
		ID:            id,
		AccountNumber: r.AccountNumber,
		Type:          r.Type,
		Amount:        r.Amount,
		Currency:      currency,
		Timestamp:     now.UTC(),
		Location:      r.Location,
		DeviceInfo:    r.DeviceInfo,
		IPAddress:     r.IPAddress,
		MerchantName:  r.MerchantName,
		Description:   r.Description,
		IsSuccessful:  true,
	}
}

// NewTransactionID returns "TXN" followed by 12 upper-case hex characters.
func NewTransactionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN" + strings.ToUpper(hex[:12])
}
