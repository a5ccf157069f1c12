package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes why a provider task did not produce a successful
// outcome.
type ErrorKind string

const (
	// KindRequestRejected means the adapter detected a malformed or
	// unsupported request locally; nothing was sent to the provider.
	KindRequestRejected ErrorKind = "request_rejected"

	// KindTransportFailure means a network or connection error. Transport
	// failures are retried per strategy policy before escalating.
	KindTransportFailure ErrorKind = "transport_failure"

	// KindProviderError means the provider reported a terminal failure.
	// Never retried.
	KindProviderError ErrorKind = "provider_error"

	// KindTimeout means the local deadline elapsed while the remote job was
	// still in progress.
	KindTimeout ErrorKind = "timeout"

	// KindReconnectionExhausted means the stream strategy gave up after its
	// bounded reconnect attempts.
	KindReconnectionExhausted ErrorKind = "reconnection_exhausted"
)

// ResearchError is the canonical error for provider task failures. Adapters
// fold every ResearchError into a ResearchOutcome at their boundary; none
// propagate past the orchestrator.
type ResearchError struct {
	// Kind is the failure category.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable cause.
	Message string `json:"message"`

	// StatusCode is the HTTP status that produced the error, if any.
	StatusCode int `json:"status_code,omitempty"`
}

// Error implements the error interface.
func (e *ResearchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the strategy may retry the failed operation.
// Only transport failures are retryable; a terminal provider status never
// is.
func (e *ResearchError) Retryable() bool {
	return e.Kind == KindTransportFailure
}

// NewResearchError creates a new research error.
func NewResearchError(kind ErrorKind, message string) *ResearchError {
	return &ResearchError{
		Kind:    kind,
		Message: message,
	}
}

// WithStatusCode attaches the originating HTTP status.
func (e *ResearchError) WithStatusCode(code int) *ResearchError {
	e.StatusCode = code
	return e
}

// Convenience constructors for the taxonomy

// ErrRequestRejected creates a locally-rejected request error.
func ErrRequestRejected(message string) *ResearchError {
	return NewResearchError(KindRequestRejected, message)
}

// ErrTransport creates a transport failure error.
func ErrTransport(message string) *ResearchError {
	return NewResearchError(KindTransportFailure, message)
}

// ErrProvider creates a remote terminal failure error.
func ErrProvider(message string) *ResearchError {
	return NewResearchError(KindProviderError, message)
}

// ErrTimeout creates a local deadline error.
func ErrTimeout(message string) *ResearchError {
	return NewResearchError(KindTimeout, message)
}

// ErrReconnectionExhausted creates a reconnect-bound error.
func ErrReconnectionExhausted(message string) *ResearchError {
	return NewResearchError(KindReconnectionExhausted, message)
}

// KindOf extracts the ErrorKind from an error chain. Errors that are not
// ResearchErrors are treated as transport failures, the only kind that can
// arise outside adapter code.
func KindOf(err error) ErrorKind {
	var re *ResearchError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransportFailure
}
