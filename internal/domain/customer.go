package domain

import (
	"time"
)

// Customer is an account holder.
// CNIC and account number are stored raw; views mask them.
type Customer struct {
	AccountNumber  string    `json:"accountNumber"`
	Name           string    `json:"name"`
	CNIC           string    `json:"cnic"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	City           string    `json:"city,omitempty"`
	Province       string    `json:"province,omitempty"`
	AccountBalance float64   `json:"accountBalance"`
	AccountCreated time.Time `json:"accountCreated"`
	IsActive       bool      `json:"isActive"`
	RiskScore      float64   `json:"riskScore"`
}

// CustomerRequest is the API request payload for creating or updating a customer.
type CustomerRequest struct {
	AccountNumber  string   `json:"accountNumber" validate:"required,min=10,max=20"`
	Name           string   `json:"name" validate:"required,min=2,max=100"`
	CNIC           string   `json:"cnic" validate:"required,cnic"`
	Phone          string   `json:"phone" validate:"required,pkphone"`
	Email          string   `json:"email,omitempty" validate:"omitempty,email"`
	City           string   `json:"city,omitempty" validate:"max=50"`
	Province       string   `json:"province,omitempty" validate:"omitempty,province"`
	AccountBalance float64  `json:"accountBalance" validate:"gte=0"`
	RiskScore      *float64 `json:"riskScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	IsActive       *bool    `json:"isActive,omitempty"`
}

// ToCustomer converts a request to a Customer created at now.
func (r *CustomerRequest) ToCustomer(now time.Time) *Customer {
	c := &Customer{
		AccountNumber:  r.AccountNumber,
		Name:           r.Name,
		CNIC:           r.CNIC,
		Phone:          r.Phone,
		Email:          r.Email,
		City:           r.City,
		Province:       r.Province,
		AccountBalance: r.AccountBalance,
		AccountCreated: now.UTC(),
		IsActive:       true,
	}
	if r.RiskScore != nil {
		c.RiskScore = *r.RiskScore
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	return c
}

// CustomerContext is the account history used for scoring. It is derived on
// demand and never stored.
type CustomerContext struct {
	AccountBalance       float64        `json:"accountBalance"`
	AvgTransactionAmount float64        `json:"avgTransactionAmount"`
	RecentTransactions   []*Transaction `json:"recentTransactions"`
	CustomerRiskScore    float64        `json:"customerRiskScore"`
	AccountAgeDays       int            `json:"accountAgeDays"`
}
