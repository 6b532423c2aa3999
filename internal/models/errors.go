package models

import "errors"

// Sentinel errors shared across the error taxonomy. Callers wrap these with
// fmt.Errorf("...: %w", err) to add context; HTTP handlers map them to
// status codes via errors.Is.
var (
	ErrConfigError        = errors.New("config error")
	ErrNoCapableNode      = errors.New("no capable node available")
	ErrTransportError     = errors.New("transport error")
	ErrTimeout            = errors.New("deadline exceeded")
	ErrRejectedByWorker   = errors.New("rejected by worker")
	ErrMissingParameter   = errors.New("missing template parameter")
	ErrUnsupportedAdapter = errors.New("template does not support adapters")
	ErrNotFound           = errors.New("not found")
	ErrCorruptExport      = errors.New("corrupt preference export")
	ErrCancelled          = errors.New("cancelled")
	ErrInvalidState       = errors.New("invalid state for requested transition")
)
