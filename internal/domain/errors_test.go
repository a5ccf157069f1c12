package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"request rejected", ErrRequestRejected("bad"), KindRequestRejected},
		{"transport", ErrTransport("conn reset"), KindTransportFailure},
		{"provider", ErrProvider("upstream broke"), KindProviderError},
		{"timeout", ErrTimeout("deadline"), KindTimeout},
		{"reconnect exhausted", ErrReconnectionExhausted("gave up"), KindReconnectionExhausted},
		{"wrapped", fmt.Errorf("fetch: %w", ErrProvider("boom")), KindProviderError},
		{"plain error", errors.New("dial tcp: refused"), KindTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !ErrTransport("x").Retryable() {
		t.Error("transport failure should be retryable")
	}
	for _, err := range []*ResearchError{
		ErrRequestRejected("x"),
		ErrProvider("x"),
		ErrTimeout("x"),
		ErrReconnectionExhausted("x"),
	} {
		if err.Retryable() {
			t.Errorf("%s should not be retryable", err.Kind)
		}
	}
}

func TestFailedOutcome(t *testing.T) {
	o := FailedOutcome("perplexity", ErrProvider("boom"))
	if o.Status != OutcomeFailed {
		t.Errorf("Status = %v, want %v", o.Status, OutcomeFailed)
	}
	if o.Provider != "perplexity" {
		t.Errorf("Provider = %v, want perplexity", o.Provider)
	}
	if o.Cause == nil || o.Cause.Kind != KindProviderError {
		t.Errorf("Cause = %+v, want provider_error", o.Cause)
	}

	o = FailedOutcome("gemini", ErrTimeout("deadline"))
	if o.Status != OutcomeTimedOut {
		t.Errorf("timeout Status = %v, want %v", o.Status, OutcomeTimedOut)
	}

	// Non-ResearchError folds into a transport cause.
	o = FailedOutcome("gemini", errors.New("dial tcp: refused"))
	if o.Cause == nil || o.Cause.Kind != KindTransportFailure {
		t.Errorf("Cause = %+v, want transport_failure", o.Cause)
	}
}

func TestJobHandleAdvance(t *testing.T) {
	h := &JobHandle{ProviderJobID: "job-1"}

	h.Advance(3)
	if h.Cursor != 3 {
		t.Fatalf("Cursor = %d, want 3", h.Cursor)
	}

	// Positions at or below the cursor are ignored.
	h.Advance(2)
	h.Advance(3)
	if h.Cursor != 3 {
		t.Errorf("Cursor = %d, want 3 after replayed positions", h.Cursor)
	}

	h.Advance(10)
	if h.Cursor != 10 {
		t.Errorf("Cursor = %d, want 10", h.Cursor)
	}
}

func TestComparisonResultOutcomeFor(t *testing.T) {
	result := &ComparisonResult{
		Outcomes: []*ResearchOutcome{
			{Provider: "perplexity", Status: OutcomeSucceeded},
			{Provider: "gemini", Status: OutcomeFailed},
		},
	}

	if o := result.OutcomeFor("gemini"); o == nil || o.Status != OutcomeFailed {
		t.Errorf("OutcomeFor(gemini) = %+v", o)
	}
	if o := result.OutcomeFor("unknown"); o != nil {
		t.Errorf("OutcomeFor(unknown) = %+v, want nil", o)
	}
}
