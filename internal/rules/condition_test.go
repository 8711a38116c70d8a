package rules

import (
	"testing"

	"github.com/opensource-finance/rebate/internal/domain"
)

func conditionInput(condition string) ConditionInput {
	return ConditionInput{
		Request: domain.CalculateRebateRequest{
			ProductIdentifier: "SKU-100",
			RebateIdentifier:  "R-1",
			Volume:            d("12"),
		},
		Rebate: domain.Rebate{
			Identifier: "R-1",
			Incentive:  domain.AmountPerUom,
			Amount:     d("2.5"),
			Condition:  condition,
		},
		Product: domain.Product{
			Identifier: "SKU-100",
			Price:      d("9.99"),
		},
	}
}

func TestConditionEngineEvaluate(t *testing.T) {
	engine, err := NewConditionEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tests := []struct {
		name      string
		condition string
		want      bool
	}{
		{"empty condition applies", "", true},
		{"whitespace condition applies", "   ", true},
		{"volume threshold met", "volume >= 10.0", true},
		{"volume threshold missed", "volume >= 100.0", false},
		{"product prefix", `product_id.startsWith("SKU-")`, true},
		{"incentive name", `incentive == "AmountPerUom"`, true},
		{"combined", `price < 10.0 && amount > 2.0 && rebate_id == "R-1"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(conditionInput(tt.condition))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestConditionEngineCachesPrograms(t *testing.T) {
	engine, _ := NewConditionEngine()

	for i := 0; i < 3; i++ {
		if _, err := engine.Evaluate(conditionInput("volume > 1.0")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := engine.Evaluate(conditionInput("volume > 2.0")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if engine.CachedCount() != 2 {
		t.Errorf("expected 2 cached programs, got %d", engine.CachedCount())
	}
}

func TestConditionEngineValidate(t *testing.T) {
	engine, _ := NewConditionEngine()

	t.Run("valid", func(t *testing.T) {
		if err := engine.Validate("volume > 5.0"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if err := engine.Validate(""); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		if err := engine.Validate("this is not valid CEL !!!"); err == nil {
			t.Error("expected error for invalid expression")
		}
	})

	t.Run("non bool", func(t *testing.T) {
		if err := engine.Validate("volume * 2.0"); err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("unknown variable", func(t *testing.T) {
		if err := engine.Validate("debtor_id == \"x\""); err == nil {
			t.Error("expected error for undeclared variable")
		}
	})

	if engine.CachedCount() != 0 {
		t.Errorf("validate should not cache, got %d", engine.CachedCount())
	}
}

func TestConditionEngineEvaluateInvalid(t *testing.T) {
	engine, _ := NewConditionEngine()

	if _, err := engine.Evaluate(conditionInput("volume +")); err == nil {
		t.Error("expected compile error to surface from Evaluate")
	}
}
