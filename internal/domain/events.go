package domain

import "encoding/json"

// RawEventType tags one incremental unit received from a provider's event
// feed.
type RawEventType string

const (
	// EventContentDelta carries a fragment of the final report text.
	EventContentDelta RawEventType = "content-delta"

	// EventThoughtDelta carries a fragment of a thought summary.
	EventThoughtDelta RawEventType = "thought-delta"

	// EventLifecycle marks a state change (started, completed, failed).
	// The payload identifies the specific transition.
	EventLifecycle RawEventType = "lifecycle"

	// EventUsage carries token usage counters.
	EventUsage RawEventType = "usage"
)

// RawEvent is one unit of a provider's event stream, ordered by arrival.
// The stream is append-only from the consumer's point of view. A transport
// failure while reading surfaces as an event with Err set and terminates
// the stream.
type RawEvent struct {
	// Seq is the provider-assigned event position, used as the resume
	// cursor. Zero when the provider does not number events.
	Seq int64

	// Type classifies the event.
	Type RawEventType

	// Text is the delta text for content and thought events.
	Text string

	// Payload is the provider's event body verbatim.
	Payload json.RawMessage

	// Err reports a transport-level failure. When set, no further events
	// follow on this connection.
	Err error
}
