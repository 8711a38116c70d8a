package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/rebate/internal/bus"
	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/shopspring/decimal"
)

// stubCalculator applies a fixed amount to rebate "R1" and fails for "boom".
type stubCalculator struct{}

func (stubCalculator) ProcessRebateRequest(_ context.Context, req domain.CalculateRebateRequest) (domain.Option[domain.Rebate], error) {
	switch req.RebateIdentifier {
	case "R1":
		return domain.Some(domain.Rebate{
			Identifier: "R1",
			Incentive:  domain.AmountPerUom,
			Amount:     req.Volume.Mul(decimal.NewFromInt(2)),
		}), nil
	case "boom":
		return domain.None[domain.Rebate](), errors.New("storage unavailable")
	default:
		return domain.None[domain.Rebate](), nil
	}
}

func startWorker(t *testing.T) (*Worker, *bus.ChannelBus, chan domain.CalculationResultMessage) {
	t.Helper()

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	w := NewWorker(eventBus, stubCalculator{})
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	results := make(chan domain.CalculationResultMessage, 10)
	_, err := eventBus.Subscribe(context.Background(), domain.TopicCalculationResult, func(_ context.Context, msg *domain.Message) error {
		var res domain.CalculationResultMessage
		if err := json.Unmarshal(msg.Payload, &res); err != nil {
			return err
		}
		results <- res
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	return w, eventBus, results
}

func request(t *testing.T, b *bus.ChannelBus, id, rebateID string) {
	t.Helper()
	payload, _ := json.Marshal(domain.CalculationRequestMessage{
		RequestID: id,
		Request: domain.CalculateRebateRequest{
			RebateIdentifier:  rebateID,
			ProductIdentifier: "P1",
			Volume:            decimal.NewFromInt(5),
		},
	})
	if err := b.Publish(context.Background(), domain.TopicCalculationRequested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func await(t *testing.T, results chan domain.CalculationResultMessage) domain.CalculationResultMessage {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
		return domain.CalculationResultMessage{}
	}
}

func TestWorkerStartAndStop(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	w := NewWorker(eventBus, stubCalculator{})
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 || stats.Topics[0] != domain.TopicCalculationRequested {
		t.Errorf("unexpected stats after start: %+v", stats)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if w.GetStats().SubscriptionCount != 0 {
		t.Error("expected 0 subscriptions after stop")
	}
}

func TestWorkerProcessesRequests(t *testing.T) {
	w, eventBus, results := startWorker(t)

	t.Run("Applied", func(t *testing.T) {
		request(t, eventBus, "req-1", "R1")
		res := await(t, results)

		if res.RequestID != "req-1" || !res.Applied {
			t.Fatalf("unexpected result: %+v", res)
		}
		if res.Rebate == nil || !res.Rebate.Amount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("expected amount 10, got %+v", res.Rebate)
		}
	})

	t.Run("NotApplicable", func(t *testing.T) {
		request(t, eventBus, "req-2", "unknown")
		res := await(t, results)

		if res.Applied || res.Rebate != nil || res.Error != "" {
			t.Errorf("expected not-applicable result, got %+v", res)
		}
	})

	t.Run("Fault", func(t *testing.T) {
		request(t, eventBus, "req-3", "boom")
		res := await(t, results)

		if res.Applied || res.Error == "" {
			t.Errorf("expected error result, got %+v", res)
		}
	})

	stats := w.GetStats()
	if stats.Processed != 3 || stats.Applied != 1 || stats.Failed != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	w, eventBus, results := startWorker(t)

	_ = eventBus.Publish(context.Background(), domain.TopicCalculationRequested, []byte("not json"))

	select {
	case res := <-results:
		t.Fatalf("expected no result for malformed payload, got %+v", res)
	case <-time.After(50 * time.Millisecond):
	}

	if w.GetStats().Failed != 1 {
		t.Errorf("expected failed counter 1, got %d", w.GetStats().Failed)
	}
}
