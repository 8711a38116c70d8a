// Package processor composes rebate and product lookups with the rebate
// formulas and records the result of each applicable calculation.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/opensource-finance/rebate/internal/rules"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrMissingCollaborator is returned when a processor is built without its stores.
var ErrMissingCollaborator = errors.New("processor: rebate and product stores are required")

var tracer = otel.Tracer("rebate-processor")

// Processor turns a CalculateRebateRequest into a stored rebate calculation.
type Processor struct {
	rebates  domain.RebateStore
	products domain.ProductStore

	// Conditions filters calculated rebates by their CEL condition.
	Conditions *rules.ConditionEngine

	// Events receives a rebate.calculated event for every stored calculation.
	// Nil disables publishing.
	Events domain.EventBus

	now func() time.Time
}

// NewProcessor creates a processor over the given stores.
func NewProcessor(rebates domain.RebateStore, products domain.ProductStore) (*Processor, error) {
	if rebates == nil || products == nil {
		return nil, ErrMissingCollaborator
	}

	conditions, err := rules.NewConditionEngine()
	if err != nil {
		return nil, err
	}

	return &Processor{
		rebates:    rebates,
		products:   products,
		Conditions: conditions,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// candidate is a rebate and product that were both found.
type candidate struct {
	rebate  domain.Rebate
	product domain.Product
}

// priced is a candidate with the amount its formula produced.
type priced struct {
	candidate
	amount decimal.Decimal
}

type outcome struct {
	rebate domain.Option[domain.Rebate]
	err    error
}

// ProcessRebateRequest looks up the rebate and product, computes the amount
// and stores it. The result is absent when either record is missing, the
// product does not support the incentive, the formula is not eligible or the
// rebate's condition is false. Store failures are returned as errors.
func (p *Processor) ProcessRebateRequest(ctx context.Context, req domain.CalculateRebateRequest) (domain.Option[domain.Rebate], error) {
	ctx, span := tracer.Start(ctx, "ProcessRebateRequest",
		trace.WithAttributes(
			attribute.String("rebate.id", req.RebateIdentifier),
			attribute.String("product.id", req.ProductIdentifier),
			attribute.String("volume", req.Volume.String()),
		),
	)
	defer span.End()

	rebate, err := p.rebates.GetRebate(ctx, req.RebateIdentifier)
	if err != nil {
		return p.fail(span, fmt.Errorf("lookup rebate %s: %w", req.RebateIdentifier, err))
	}

	var stepErr error
	found := domain.Chain(rebate,
		func(domain.Rebate) domain.Option[domain.Product] {
			product, err := p.products.GetProduct(ctx, req.ProductIdentifier)
			if err != nil {
				stepErr = fmt.Errorf("lookup product %s: %w", req.ProductIdentifier, err)
				return domain.None[domain.Product]()
			}
			return product
		},
		func(r domain.Rebate, pr domain.Product) candidate {
			return candidate{rebate: r, product: pr}
		},
	)
	if stepErr != nil {
		return p.fail(span, stepErr)
	}

	calculated := domain.FlatMap(found, func(c candidate) domain.Option[priced] {
		amount := rules.ComputeAmount(req, c.rebate, c.product)
		return domain.FlatMap(amount, func(a decimal.Decimal) domain.Option[priced] {
			ok, err := p.conditionHolds(req, c)
			if err != nil {
				stepErr = err
				return domain.None[priced]()
			}
			if !ok {
				return domain.None[priced]()
			}
			return domain.Some(priced{candidate: c, amount: a})
		})
	})
	if stepErr != nil {
		return p.fail(span, stepErr)
	}

	result := domain.Match(calculated,
		func() outcome {
			slog.Debug("rebate not applicable",
				"rebate_id", req.RebateIdentifier,
				"product_id", req.ProductIdentifier,
			)
			span.SetAttributes(attribute.Bool("rebate.applied", false))
			return outcome{rebate: domain.None[domain.Rebate]()}
		},
		func(c priced) outcome {
			stored, err := p.rebates.StoreCalculationResult(ctx, c.rebate, c.amount)
			if err != nil {
				return outcome{err: fmt.Errorf("store calculation for rebate %s: %w", c.rebate.Identifier, err)}
			}

			slog.Info("rebate calculated",
				"rebate_id", stored.Identifier,
				"product_id", c.product.Identifier,
				"incentive", stored.Incentive.String(),
				"amount", stored.Amount.String(),
			)
			span.SetAttributes(
				attribute.Bool("rebate.applied", true),
				attribute.String("rebate.amount", stored.Amount.String()),
			)

			p.publish(ctx, req, stored)
			return outcome{rebate: domain.Some(stored)}
		},
	)
	if result.err != nil {
		return p.fail(span, result.err)
	}
	return result.rebate, nil
}

func (p *Processor) conditionHolds(req domain.CalculateRebateRequest, c candidate) (bool, error) {
	if c.rebate.Condition == "" {
		return true, nil
	}
	if p.Conditions == nil {
		return false, fmt.Errorf("rebate %s has a condition but no condition engine is configured", c.rebate.Identifier)
	}
	return p.Conditions.Evaluate(rules.ConditionInput{
		Request: req,
		Rebate:  c.rebate,
		Product: c.product,
	})
}

// publish emits a rebate.calculated event. Failures are logged only; the
// calculation has already been stored.
func (p *Processor) publish(ctx context.Context, req domain.CalculateRebateRequest, stored domain.Rebate) {
	if p.Events == nil {
		return
	}

	payload, err := json.Marshal(domain.CalculationEvent{
		RebateIdentifier:  stored.Identifier,
		ProductIdentifier: req.ProductIdentifier,
		Incentive:         stored.Incentive,
		Volume:            req.Volume,
		Amount:            stored.Amount,
		CalculatedAt:      p.now(),
	})
	if err != nil {
		slog.Error("failed to encode calculation event", "rebate_id", stored.Identifier, "error", err)
		return
	}

	if err := p.Events.Publish(ctx, domain.TopicRebateCalculated, payload); err != nil {
		slog.Error("failed to publish calculation event", "rebate_id", stored.Identifier, "error", err)
	}
}

func (p *Processor) fail(span trace.Span, err error) (domain.Option[domain.Rebate], error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return domain.None[domain.Rebate](), err
}
