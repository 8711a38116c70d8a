package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIncentiveSetSupports(t *testing.T) {
	set := NewIncentiveSet(FixedRateRebate, FixedCashAmount)

	if !set.Supports(FixedRateRebate) || !set.Supports(FixedCashAmount) {
		t.Error("expected set to support its members")
	}
	if set.Supports(AmountPerUom) {
		t.Error("AmountPerUom should not be supported")
	}
	if set.Supports(0) {
		t.Error("zero kind must never be supported")
	}
	if IncentiveSet(0).Supports(FixedRateRebate) {
		t.Error("empty set should support nothing")
	}

	if got := set.String(); got != "FixedRateRebate|FixedCashAmount" {
		t.Errorf("unexpected String(): %s", got)
	}
	if got := IncentiveSet(0).String(); got != "None" {
		t.Errorf("expected None, got %s", got)
	}
}

func TestParseIncentiveType(t *testing.T) {
	tests := []struct {
		in      string
		want    IncentiveType
		wantErr bool
	}{
		{"FixedCashAmount", FixedCashAmount, false},
		{"fixedraterebate", FixedRateRebate, false},
		{" AMOUNTPERUOM ", AmountPerUom, false},
		{"Percentage", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIncentiveType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestProductJSON(t *testing.T) {
	raw := `{"identifier":"P1","price":"12.50","supportedIncentives":["AmountPerUom","FixedCashAmount"]}`

	var p Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !p.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected price %s", p.Price)
	}
	if !p.SupportedIncentives.Supports(AmountPerUom) || p.SupportedIncentives.Supports(FixedRateRebate) {
		t.Errorf("unexpected incentives %s", p.SupportedIncentives)
	}

	if err := json.Unmarshal([]byte(`{"supportedIncentives":["Bogus"]}`), &p); err == nil {
		t.Error("expected error for unknown incentive name")
	}
}

func TestRebateWithAmount(t *testing.T) {
	original := Rebate{
		Identifier: "R1",
		Incentive:  AmountPerUom,
		Amount:     decimal.NewFromInt(4),
		Percentage: decimal.NewFromInt(1),
		Condition:  "volume > 1.0",
	}

	updated := original.WithAmount(decimal.NewFromInt(20))

	if !original.Amount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("original amount changed to %s", original.Amount)
	}
	if !updated.Amount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected updated amount 20, got %s", updated.Amount)
	}
	if updated.Identifier != original.Identifier || updated.Incentive != original.Incentive ||
		!updated.Percentage.Equal(original.Percentage) || updated.Condition != original.Condition {
		t.Errorf("WithAmount must copy every other field: %+v", updated)
	}
}
