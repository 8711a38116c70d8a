package api

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("incentive", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseIncentiveType(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Details))
}

// validateRequest runs struct validation and flattens the field errors.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = fmt.Sprintf("failed on '%s'", fe.Tag())
	}
	return &ValidationError{Details: details}
}

// CalculateRequest is the request body for POST /calculations.
type CalculateRequest struct {
	RebateIdentifier  string           `json:"rebateIdentifier" validate:"required,max=128"`
	ProductIdentifier string           `json:"productIdentifier" validate:"required,max=128"`
	Volume            *decimal.Decimal `json:"volume" validate:"required"`
}

// ToDomain converts the request into a CalculateRebateRequest.
func (r *CalculateRequest) ToDomain() domain.CalculateRebateRequest {
	return domain.CalculateRebateRequest{
		RebateIdentifier:  r.RebateIdentifier,
		ProductIdentifier: r.ProductIdentifier,
		Volume:            *r.Volume,
	}
}

// AsyncCalculateResponse is the response for POST /calculations/async.
type AsyncCalculateResponse struct {
	RequestID string `json:"requestId"`
	Topic     string `json:"topic"`
}

// RebateRequest is the request body for POST /rebates.
type RebateRequest struct {
	Identifier string           `json:"identifier" validate:"required,max=128"`
	Incentive  string           `json:"incentive" validate:"required,incentive"`
	Amount     *decimal.Decimal `json:"amount"`
	Percentage *decimal.Decimal `json:"percentage"`
	Condition  string           `json:"condition" validate:"omitempty,max=2048"`
}

// ToDomain converts the request into a Rebate. Missing decimals default to zero.
func (r *RebateRequest) ToDomain() *domain.Rebate {
	incentive, _ := domain.ParseIncentiveType(r.Incentive)
	return &domain.Rebate{
		Identifier: r.Identifier,
		Incentive:  incentive,
		Amount:     orZero(r.Amount),
		Percentage: orZero(r.Percentage),
		Condition:  r.Condition,
	}
}

// ProductRequest is the request body for POST /products.
type ProductRequest struct {
	Identifier          string           `json:"identifier" validate:"required,max=128"`
	Price               *decimal.Decimal `json:"price" validate:"required"`
	SupportedIncentives []string         `json:"supportedIncentives" validate:"dive,incentive"`
}

// ToDomain converts the request into a Product.
func (r *ProductRequest) ToDomain() *domain.Product {
	kinds := make([]domain.IncentiveType, 0, len(r.SupportedIncentives))
	for _, name := range r.SupportedIncentives {
		if k, err := domain.ParseIncentiveType(name); err == nil {
			kinds = append(kinds, k)
		}
	}
	return &domain.Product{
		Identifier:          r.Identifier,
		Price:               *r.Price,
		SupportedIncentives: domain.NewIncentiveSet(kinds...),
	}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
