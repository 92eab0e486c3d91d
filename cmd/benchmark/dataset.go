package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LabelledTransaction is a scoring request with its ground-truth label.
type LabelledTransaction struct {
	Request domain.TransactionRequest
	IsFraud bool
}

// paySimTypes maps PaySim transaction types onto Kestrel channels.
var paySimTypes = map[string]domain.TransactionType{
	"CASH_IN":  domain.TxDeposit,
	"CASH_OUT": domain.TxWithdrawal,
	"TRANSFER": domain.TxTransfer,
	"PAYMENT":  domain.TxBillPayment,
	"DEBIT":    domain.TxATM,
}

// ReadLabelled parses a CSV with either PaySim columns (type, amount,
// nameOrig, isFraud) or Kestrel columns (account_number, transaction_type,
// amount, is_fraud, optional location). Malformed rows are skipped.
func ReadLabelled(r io.Reader, limit int, fraudOnly bool, sampleRate float64) ([]LabelledTransaction, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	col := func(record []string, names ...string) string {
		for _, name := range names {
			if i, ok := colIndex[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
		}
		return ""
	}

	if col(header, "amount") == "" {
		return nil, fmt.Errorf("missing amount column")
	}

	var transactions []LabelledTransaction
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		label := col(record, "isfraud", "is_fraud")
		isFraud := label == "1" || strings.EqualFold(label, "true")

		if fraudOnly && !isFraud {
			continue
		}

		// Sample non-fraud transactions
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		amount, err := strconv.ParseFloat(col(record, "amount"), 64)
		if err != nil || amount <= 0 {
			continue
		}

		txType := domain.TransactionType(strings.ToLower(col(record, "transaction_type")))
		if mapped, ok := paySimTypes[strings.ToUpper(col(record, "type"))]; ok {
			txType = mapped
		}
		if !txType.Valid() {
			continue
		}

		account := col(record, "account_number", "nameorig")
		if len(account) < 10 {
			account = fmt.Sprintf("%010s", account)
		}

		transactions = append(transactions, LabelledTransaction{
			Request: domain.TransactionRequest{
				AccountNumber: account,
				Type:          txType,
				Amount:        amount,
				Location:      col(record, "location"),
			},
			IsFraud: isFraud,
		})

		if limit > 0 && len(transactions) >= limit {
			break
		}
	}

	return transactions, nil
}
