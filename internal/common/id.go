package common

import (
	"github.com/google/uuid"
)

// NewCorrelationID generates a per-request correlation id for the HTTP
// middleware chain.
func NewCorrelationID() string {
	return "req_" + uuid.New().String()
}
