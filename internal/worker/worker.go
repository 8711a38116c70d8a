// Package worker runs rebate calculations requested over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/rebate/internal/domain"
)

// Calculator is the operation the worker runs for each request.
type Calculator interface {
	ProcessRebateRequest(ctx context.Context, req domain.CalculateRebateRequest) (domain.Option[domain.Rebate], error)
}

// Worker consumes calculation requests and publishes their results.
type Worker struct {
	bus        domain.EventBus
	calculator Calculator

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Uint64
	applied   atomic.Uint64
	failed    atomic.Uint64
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, calculator Calculator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		calculator: calculator,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to calculation requests.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicCalculationRequested, w.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.TopicCalculationRequested, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("worker started", "topic", domain.TopicCalculationRequested)
	return nil
}

// handleMessage runs one calculation and publishes a CalculationResultMessage.
// Processing faults are reported in the result rather than returned.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req domain.CalculationRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse calculation request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if req.RequestID == "" {
		req.RequestID = msg.ID
	}

	slog.Debug("processing calculation request",
		"request_id", req.RequestID,
		"rebate_id", req.Request.RebateIdentifier,
		"product_id", req.Request.ProductIdentifier,
	)

	result := domain.CalculationResultMessage{RequestID: req.RequestID}

	outcome, err := w.calculator.ProcessRebateRequest(ctx, req.Request)
	w.processed.Add(1)
	if err != nil {
		w.failed.Add(1)
		result.Error = err.Error()
		slog.Error("calculation failed",
			"request_id", req.RequestID,
			"error", err,
		)
	} else if outcome.IsSome() {
		w.applied.Add(1)
		rebate := outcome.OrElse(domain.Rebate{})
		result.Applied = true
		result.Rebate = &rebate
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result for %s: %w", req.RequestID, err)
	}
	if err := w.bus.Publish(ctx, domain.TopicCalculationResult, payload); err != nil {
		slog.Error("failed to publish calculation result",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}

	slog.Info("calculation request processed",
		"request_id", req.RequestID,
		"applied", result.Applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop cancels the worker and unsubscribes.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         uint64   `json:"processed"`
	Applied           uint64   `json:"applied"`
	Failed            uint64   `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	w.mu.Unlock()

	return Stats{
		SubscriptionCount: len(topics),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Applied:           w.applied.Load(),
		Failed:            w.failed.Load(),
	}
}
