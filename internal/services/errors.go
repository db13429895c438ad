package services

import "fmt"

// ValidationError reports a request the relay refuses before any outbound work.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// DownstreamError wraps any failure of the chat-completion provider. The
// wrapped error is for logs only.
type DownstreamError struct {
	Provider string
	Err      error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }
