//go:build integration
// +build integration

// Package integration provides end-to-end tests against a running rebated.
//
// The tests seed their own rebates and products through the admin API and
// then drive POST /calculations:
//
//	Rebate + Product + Volume -> formula -> stored amount
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// Formulas exercised:
//
// | Incentive       | Amount                      | Not applicable when            |
// |-----------------|-----------------------------|--------------------------------|
// | FixedCashAmount | rebate.amount               | amount is zero                 |
// | FixedRateRebate | price * percentage * volume | all three are zero             |
// | AmountPerUom    | rebate.amount * volume      | amount and volume are zero     |
//
// A product that does not list the rebate's incentive never yields a rebate.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
	Suffix  string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("REBATE_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL: baseURL,
		Suffix:  fmt.Sprintf("%d", time.Now().UnixNano()),
	}
}

type rebateBody struct {
	Identifier string `json:"identifier"`
	Incentive  string `json:"incentive"`
	Amount     string `json:"amount,omitempty"`
	Percentage string `json:"percentage,omitempty"`
	Condition  string `json:"condition,omitempty"`
}

type productBody struct {
	Identifier          string   `json:"identifier"`
	Price               string   `json:"price"`
	SupportedIncentives []string `json:"supportedIncentives"`
}

type calculateBody struct {
	RebateIdentifier  string `json:"rebateIdentifier"`
	ProductIdentifier string `json:"productIdentifier"`
	Volume            string `json:"volume"`
}

// RebateResponse is what POST /calculations returns on success
type RebateResponse struct {
	Identifier string          `json:"identifier"`
	Incentive  string          `json:"incentive"`
	Amount     decimal.Decimal `json:"amount"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func post(t *testing.T, config TestConfig, path string, body any) (int, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, respBody
}

func seed(t *testing.T, config TestConfig, rebate rebateBody, product productBody) {
	t.Helper()

	if status, body := post(t, config, "/rebates", rebate); status != http.StatusCreated {
		t.Fatalf("Failed to seed rebate: %d %s", status, string(body))
	}
	if status, body := post(t, config, "/products", product); status != http.StatusCreated {
		t.Fatalf("Failed to seed product: %d %s", status, string(body))
	}
}

func calculate(t *testing.T, config TestConfig, req calculateBody) (int, RebateResponse) {
	t.Helper()

	status, body := post(t, config, "/calculations", req)
	var result RebateResponse
	if status == http.StatusOK {
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
		}
	}
	return status, result
}

// ============================================================================
// SCENARIO 1: Each formula
// ============================================================================

func TestFixedRateRebate(t *testing.T) {
	config := getTestConfig()
	rebateID := "rate-" + config.Suffix
	productID := "rate-product-" + config.Suffix

	seed(t, config,
		rebateBody{Identifier: rebateID, Incentive: "FixedRateRebate", Percentage: "0.05"},
		productBody{Identifier: productID, Price: "200", SupportedIncentives: []string{"FixedRateRebate"}},
	)

	status, result := calculate(t, config, calculateBody{rebateID, productID, "3"})
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	// 200 * 0.05 * 3
	if !result.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected amount 30, got %s", result.Amount)
	}
}

func TestAmountPerUom(t *testing.T) {
	config := getTestConfig()
	rebateID := "uom-" + config.Suffix
	productID := "uom-product-" + config.Suffix

	seed(t, config,
		rebateBody{Identifier: rebateID, Incentive: "AmountPerUom", Amount: "1.25"},
		productBody{Identifier: productID, Price: "10", SupportedIncentives: []string{"AmountPerUom"}},
	)

	// Repeated calls must not compound: the rebate definition is never overwritten.
	for i := 0; i < 2; i++ {
		status, result := calculate(t, config, calculateBody{rebateID, productID, "8"})
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if !result.Amount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("Call %d: expected amount 10, got %s", i+1, result.Amount)
		}
	}
}

func TestFixedCashAmount(t *testing.T) {
	config := getTestConfig()
	rebateID := "cash-" + config.Suffix
	productID := "cash-product-" + config.Suffix

	seed(t, config,
		rebateBody{Identifier: rebateID, Incentive: "FixedCashAmount", Amount: "50"},
		productBody{Identifier: productID, Price: "10", SupportedIncentives: []string{"FixedCashAmount"}},
	)

	status, result := calculate(t, config, calculateBody{rebateID, productID, "1000"})
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if !result.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected amount 50, got %s", result.Amount)
	}
}

// ============================================================================
// SCENARIO 2: Not applicable
// ============================================================================

func TestUnsupportedIncentive_NotApplicable(t *testing.T) {
	config := getTestConfig()
	rebateID := "unsupported-" + config.Suffix
	productID := "unsupported-product-" + config.Suffix

	seed(t, config,
		rebateBody{Identifier: rebateID, Incentive: "FixedCashAmount", Amount: "50"},
		productBody{Identifier: productID, Price: "10", SupportedIncentives: []string{"AmountPerUom"}},
	)

	status, _ := calculate(t, config, calculateBody{rebateID, productID, "1"})
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", status)
	}
}

func TestUnknownProduct_NotApplicable(t *testing.T) {
	config := getTestConfig()

	status, _ := calculate(t, config, calculateBody{"missing-" + config.Suffix, "missing-" + config.Suffix, "1"})
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", status)
	}
}

func TestConditionNotMet_NotApplicable(t *testing.T) {
	config := getTestConfig()
	rebateID := "cond-" + config.Suffix
	productID := "cond-product-" + config.Suffix

	seed(t, config,
		rebateBody{Identifier: rebateID, Incentive: "AmountPerUom", Amount: "2", Condition: "volume >= 100.0"},
		productBody{Identifier: productID, Price: "10", SupportedIncentives: []string{"AmountPerUom"}},
	)

	if status, _ := calculate(t, config, calculateBody{rebateID, productID, "99"}); status != http.StatusBadRequest {
		t.Errorf("Expected status 400 below threshold, got %d", status)
	}
	status, result := calculate(t, config, calculateBody{rebateID, productID, "100"})
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 at threshold, got %d", status)
	}
	if !result.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected amount 200, got %s", result.Amount)
	}
}

// ============================================================================
// SCENARIO 3: Validation
// ============================================================================

func TestMissingVolume_Error(t *testing.T) {
	config := getTestConfig()

	status, body := post(t, config, "/calculations", map[string]string{
		"rebateIdentifier":  "r",
		"productIdentifier": "p",
	})
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", status, string(body))
	}
}
