package common

import (
	"github.com/google/uuid"
)

// NewInstanceID generates the per-process instance ID. Stream clients use
// it to detect server restarts across reconnects.
func NewInstanceID() string {
	return "vigilo_" + uuid.New().String()
}
