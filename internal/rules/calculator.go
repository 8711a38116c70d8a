// Package rules holds the rebate formulas and the CEL condition engine.
package rules

import (
	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/shopspring/decimal"
)

// ComputeAmount returns the rebate owed for req, or an absent Option when
// no rebate applies.
//
// The product must support the rebate's incentive kind before any formula
// runs. Each kind then has its own eligibility condition; an eligible
// formula that evaluates to zero is still reported as present.
func ComputeAmount(req domain.CalculateRebateRequest, rebate domain.Rebate, product domain.Product) domain.Option[decimal.Decimal] {
	if !product.SupportedIncentives.Supports(rebate.Incentive) {
		return domain.None[decimal.Decimal]()
	}

	switch rebate.Incentive {
	case domain.FixedCashAmount:
		if rebate.Amount.IsZero() {
			return domain.None[decimal.Decimal]()
		}
		return domain.Some(rebate.Amount)

	case domain.FixedRateRebate:
		if rebate.Percentage.IsZero() && product.Price.IsZero() && req.Volume.IsZero() {
			return domain.None[decimal.Decimal]()
		}
		return domain.Some(product.Price.Mul(rebate.Percentage).Mul(req.Volume))

	case domain.AmountPerUom:
		if rebate.Amount.IsZero() && req.Volume.IsZero() {
			return domain.None[decimal.Decimal]()
		}
		return domain.Some(rebate.Amount.Mul(req.Volume))

	default:
		return domain.None[decimal.Decimal]()
	}
}
