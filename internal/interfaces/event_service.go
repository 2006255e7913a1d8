package interfaces

import "context"

// EventType names an audit lifecycle event
type EventType string

const (
	EventRunCompleted   EventType = "run_completed"
	EventReportRendered EventType = "report_rendered"
	EventPipelineFailed EventType = "pipeline_failed"
)

// Event is published on the bus. Payload is one of the typed payloads below.
type Event struct {
	Type    EventType
	Payload interface{}
}

// RunEventPayload accompanies EventRunCompleted and EventReportRendered
type RunEventPayload struct {
	RunID         string
	EffectiveDate string
	Provider      string
	Redactions    int
	Files         []string // rendered report paths, if any
}

// FailureEventPayload accompanies EventPipelineFailed
type FailureEventPayload struct {
	EffectiveDate string
	Stage         string
	Err           error
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub bus for audit lifecycle events
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe removes a previously subscribed handler
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers without waiting
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close drops all subscribers and waits for in-flight async handlers
	Close() error
}
