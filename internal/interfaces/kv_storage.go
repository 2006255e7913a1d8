package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair represents a single key/value pair with metadata
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage holds small pieces of application state, such as the
// outcome of the last scheduled pipeline run. Keys are case-insensitive.
type KeyValueStorage interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if absent
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or updates a key/value pair, keeping the original CreatedAt
	Set(ctx context.Context, key string, value string, description string) error

	Delete(ctx context.Context, key string) error

	// ListByPrefix returns pairs whose key starts with prefix, newest update first
	ListByPrefix(ctx context.Context, prefix string) ([]KeyValuePair, error)
}
