package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs audit lifecycle events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		switch p := event.Payload.(type) {
		case interfaces.RunEventPayload:
			logger.Info().
				Str("event_type", string(event.Type)).
				Str("run_id", p.RunID).
				Str("effective_date", p.EffectiveDate).
				Str("provider", p.Provider).
				Int("redactions", p.Redactions).
				Int("files", len(p.Files)).
				Msg("Audit event")
		case interfaces.FailureEventPayload:
			logger.Warn().
				Err(p.Err).
				Str("event_type", string(event.Type)).
				Str("effective_date", p.EffectiveDate).
				Str("stage", p.Stage).
				Msg("Audit event")
		default:
			logger.Debug().
				Str("event_type", string(event.Type)).
				Msg("Event published")
		}
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to every audit event type
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventRunCompleted,
		interfaces.EventReportRendered,
		interfaces.EventPipelineFailed,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	return nil
}
