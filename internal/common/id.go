package common

import (
	"strings"

	"github.com/google/uuid"
)

// RunIDPrefix marks audit run identifiers.
const RunIDPrefix = "run_"

// NewRunID generates a unique audit run ID.
// Format: run_<uuid>
func NewRunID() string {
	return RunIDPrefix + uuid.New().String()
}

// IsRunID reports whether id has the run prefix followed by a valid UUID.
func IsRunID(id string) bool {
	if !strings.HasPrefix(id, RunIDPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(id, RunIDPrefix))
	return err == nil
}
