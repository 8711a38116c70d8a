package rules

import (
	"testing"

	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeAmount(t *testing.T) {
	all := domain.NewIncentiveSet(domain.AllIncentives...)

	tests := []struct {
		name    string
		req     domain.CalculateRebateRequest
		rebate  domain.Rebate
		product domain.Product
		want    string // empty means absent
	}{
		{
			name:    "fixed cash returns rebate amount",
			req:     domain.CalculateRebateRequest{Volume: d("99")},
			rebate:  domain.Rebate{Incentive: domain.FixedCashAmount, Amount: d("10")},
			product: domain.Product{SupportedIncentives: all},
			want:    "10",
		},
		{
			name:    "fixed cash with zero amount is absent",
			req:     domain.CalculateRebateRequest{Volume: d("5")},
			rebate:  domain.Rebate{Incentive: domain.FixedCashAmount, Amount: d("0")},
			product: domain.Product{SupportedIncentives: all},
		},
		{
			name:    "fixed rate multiplies price percentage volume",
			req:     domain.CalculateRebateRequest{Volume: d("3")},
			rebate:  domain.Rebate{Incentive: domain.FixedRateRebate, Percentage: d("2")},
			product: domain.Product{Price: d("5"), SupportedIncentives: all},
			want:    "30",
		},
		{
			name:    "fixed rate all zero is absent",
			req:     domain.CalculateRebateRequest{Volume: d("0")},
			rebate:  domain.Rebate{Incentive: domain.FixedRateRebate, Percentage: d("0")},
			product: domain.Product{Price: d("0"), SupportedIncentives: all},
		},
		{
			name:    "fixed rate eligible on percentage yields zero",
			req:     domain.CalculateRebateRequest{Volume: d("0")},
			rebate:  domain.Rebate{Incentive: domain.FixedRateRebate, Percentage: d("2")},
			product: domain.Product{Price: d("0"), SupportedIncentives: all},
			want:    "0",
		},
		{
			name:    "fixed rate keeps decimal precision",
			req:     domain.CalculateRebateRequest{Volume: d("3")},
			rebate:  domain.Rebate{Incentive: domain.FixedRateRebate, Percentage: d("0.1")},
			product: domain.Product{Price: d("0.2"), SupportedIncentives: all},
			want:    "0.06",
		},
		{
			name:    "amount per uom multiplies amount and volume",
			req:     domain.CalculateRebateRequest{Volume: d("5")},
			rebate:  domain.Rebate{Incentive: domain.AmountPerUom, Amount: d("4")},
			product: domain.Product{SupportedIncentives: all},
			want:    "20",
		},
		{
			name:    "amount per uom both zero is absent",
			req:     domain.CalculateRebateRequest{Volume: d("0")},
			rebate:  domain.Rebate{Incentive: domain.AmountPerUom, Amount: d("0")},
			product: domain.Product{SupportedIncentives: all},
		},
		{
			name:    "amount per uom eligible on volume yields zero",
			req:     domain.CalculateRebateRequest{Volume: d("7")},
			rebate:  domain.Rebate{Incentive: domain.AmountPerUom, Amount: d("0")},
			product: domain.Product{SupportedIncentives: all},
			want:    "0",
		},
		{
			name:    "unsupported incentive is absent",
			req:     domain.CalculateRebateRequest{Volume: d("5")},
			rebate:  domain.Rebate{Incentive: domain.FixedCashAmount, Amount: d("10")},
			product: domain.Product{SupportedIncentives: domain.NewIncentiveSet(domain.AmountPerUom, domain.FixedRateRebate)},
		},
		{
			name:    "empty incentive set supports nothing",
			req:     domain.CalculateRebateRequest{Volume: d("5")},
			rebate:  domain.Rebate{Incentive: domain.AmountPerUom, Amount: d("4")},
			product: domain.Product{},
		},
		{
			name:    "unknown incentive is absent",
			req:     domain.CalculateRebateRequest{Volume: d("5")},
			rebate:  domain.Rebate{Incentive: 0, Amount: d("4")},
			product: domain.Product{SupportedIncentives: all},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAmount(tt.req, tt.rebate, tt.product)

			if tt.want == "" {
				if got.IsSome() {
					t.Fatalf("expected absent, got %s", got.OrElse(decimal.Zero))
				}
				return
			}

			if got.IsNone() {
				t.Fatalf("expected %s, got absent", tt.want)
			}
			if amount := got.OrElse(decimal.Zero); !amount.Equal(d(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, amount)
			}
		})
	}
}

func TestComputeAmountUnsupportedIgnoresValues(t *testing.T) {
	product := domain.Product{
		Price:               d("100"),
		SupportedIncentives: domain.NewIncentiveSet(domain.FixedCashAmount),
	}

	for _, kind := range []domain.IncentiveType{domain.FixedRateRebate, domain.AmountPerUom} {
		for _, v := range []string{"0", "1", "1000"} {
			rebate := domain.Rebate{Incentive: kind, Amount: d(v), Percentage: d(v)}
			req := domain.CalculateRebateRequest{Volume: d(v)}
			if got := ComputeAmount(req, rebate, product); got.IsSome() {
				t.Errorf("%s with value %s: expected absent", kind, v)
			}
		}
	}
}
