package models

import "github.com/google/uuid"

// NewGenerationID generates a unique job (generation) id with the "gen_" prefix.
func NewGenerationID() string {
	return "gen_" + uuid.New().String()
}

// NewBatchID generates a unique batch id with the "batch_" prefix.
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewSessionID generates a unique session id with the "sess_" prefix.
func NewSessionID() string {
	return "sess_" + uuid.New().String()
}
