// Package domain defines the core records, interfaces and configuration for the rebate service.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rebate is a configured incentive agreement.
type Rebate struct {
	Identifier string          `json:"identifier"`
	Incentive  IncentiveType   `json:"incentive"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`

	// Condition is an optional CEL expression that must evaluate to true
	// for the rebate to apply. Empty means unconditional.
	Condition string `json:"condition,omitempty"`
}

// WithAmount returns a copy of r with Amount replaced. r is left untouched.
func (r Rebate) WithAmount(amount decimal.Decimal) Rebate {
	return Rebate{
		Identifier: r.Identifier,
		Incentive:  r.Incentive,
		Amount:     amount,
		Percentage: r.Percentage,
		Condition:  r.Condition,
	}
}

// Product is a sellable item and the incentives it accepts.
type Product struct {
	Identifier          string          `json:"identifier"`
	Price               decimal.Decimal `json:"price"`
	SupportedIncentives IncentiveSet    `json:"supportedIncentives"`
}

// CalculateRebateRequest asks for the rebate owed on a volume of a product.
type CalculateRebateRequest struct {
	ProductIdentifier string          `json:"productIdentifier"`
	RebateIdentifier  string          `json:"rebateIdentifier"`
	Volume            decimal.Decimal `json:"volume"`
}

// Calculation is the latest stored amount for a rebate.
type Calculation struct {
	RebateIdentifier string          `json:"rebateIdentifier"`
	Amount           decimal.Decimal `json:"amount"`
	CalculatedAt     time.Time       `json:"calculatedAt"`
}

// CalculationEvent is published after a calculation has been stored.
type CalculationEvent struct {
	RebateIdentifier  string          `json:"rebateIdentifier"`
	ProductIdentifier string          `json:"productIdentifier"`
	Incentive         IncentiveType   `json:"incentive"`
	Volume            decimal.Decimal `json:"volume"`
	Amount            decimal.Decimal `json:"amount"`
	CalculatedAt      time.Time       `json:"calculatedAt"`
}

// CalculationRequestMessage is the payload of an asynchronous calculation request.
type CalculationRequestMessage struct {
	RequestID string                 `json:"requestId"`
	Request   CalculateRebateRequest `json:"request"`
}

// CalculationResultMessage is the payload answering a CalculationRequestMessage.
type CalculationResultMessage struct {
	RequestID string  `json:"requestId"`
	Applied   bool    `json:"applied"`
	Rebate    *Rebate `json:"rebate,omitempty"`
	Error     string  `json:"error,omitempty"`
}
