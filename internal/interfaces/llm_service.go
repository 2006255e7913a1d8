package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService is the text generation collaborator used by the pipeline to
// extract metrics from PDF text and to draft the narrative. Its output is
// never trusted: every narrative passes through the compliance filter.
type LLMService interface {
	// Chat generates a completion from the conversation history.
	// System messages are passed as the provider's system instruction.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the API key and model are usable
	HealthCheck(ctx context.Context) error

	// Provider returns the provider name ("claude" or "gemini")
	Provider() string

	// Close releases any held connections
	Close() error
}
