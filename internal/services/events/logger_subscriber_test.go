package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
)

// TestNewLoggerSubscriber verifies that the logger subscriber accepts every payload shape
func TestNewLoggerSubscriber(t *testing.T) {
	logger := arbor.NewLogger()
	subscriber := NewLoggerSubscriber(logger)
	ctx := context.Background()

	events := []interfaces.Event{
		{Type: interfaces.EventRunCompleted, Payload: interfaces.RunEventPayload{RunID: "run_1", Redactions: 2}},
		{Type: interfaces.EventPipelineFailed, Payload: interfaces.FailureEventPayload{Stage: "extract", Err: errors.New("boom")}},
		{Type: interfaces.EventReportRendered, Payload: nil},
	}

	for _, event := range events {
		if err := subscriber(ctx, event); err != nil {
			t.Errorf("Expected no error for %s, got: %v", event.Type, err)
		}
	}
}

// TestLoggerSubscriberDoesNotInterfere verifies the logger subscriber runs alongside other handlers
func TestLoggerSubscriberDoesNotInterfere(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := NewService(logger)
	defer eventService.Close()

	if err := SubscribeLoggerToAllEvents(eventService, logger); err != nil {
		t.Fatalf("Failed to subscribe logger: %v", err)
	}

	var calls int32
	customHandler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	if err := eventService.Subscribe(interfaces.EventRunCompleted, customHandler); err != nil {
		t.Fatalf("Failed to subscribe custom handler: %v", err)
	}

	event := interfaces.Event{
		Type:    interfaces.EventRunCompleted,
		Payload: interfaces.RunEventPayload{RunID: "run_test"},
	}
	if err := eventService.PublishSync(context.Background(), event); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected custom handler to be called once, got: %d", got)
	}
}

func TestPublishSync_ReturnsHandlerErrors(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	defer eventService.Close()

	failing := func(ctx context.Context, event interfaces.Event) error { return errors.New("delivery failed") }
	if err := eventService.Subscribe(interfaces.EventReportRendered, failing); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	err := eventService.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventReportRendered})
	if err == nil {
		t.Fatal("Expected an error from the failing handler")
	}
}

func TestUnsubscribe(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	defer eventService.Close()

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	if err := eventService.Subscribe(interfaces.EventRunCompleted, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := eventService.Unsubscribe(interfaces.EventRunCompleted, handler); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := eventService.Unsubscribe(interfaces.EventRunCompleted, handler); err == nil {
		t.Error("Expected an error unsubscribing twice")
	}

	if err := eventService.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunCompleted}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("Expected no calls after unsubscribe, got %d", got)
	}
}

func TestClose_WaitsForAsyncHandlers(t *testing.T) {
	eventService := NewService(arbor.NewLogger())

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	_ = eventService.Subscribe(interfaces.EventRunCompleted, handler)
	_ = eventService.Publish(context.Background(), interfaces.Event{Type: interfaces.EventRunCompleted})

	if err := eventService.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected the async handler to finish before Close returned, got %d calls", got)
	}
}
