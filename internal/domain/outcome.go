package domain

import (
	"encoding/json"
	"time"
)

// OutcomeStatus is the terminal state of one provider task.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeTimedOut  OutcomeStatus = "timed_out"
)

// Citation is one source referenced by a research report. The citation list
// is order-preserved as received from the provider; deduplication and
// re-ranking belong to downstream report formatting.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

// Usage holds token and search counters. Every field is a pointer: nil means
// the provider does not report the metric, which stays distinguishable from
// a real zero (e.g. zero search queries performed).
type Usage struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
	CitationTokens   *int `json:"citation_tokens,omitempty"`
	ReasoningTokens  *int `json:"reasoning_tokens,omitempty"`
	SearchQueries    *int `json:"search_queries,omitempty"`
}

// ResearchOutcome is the normalized per-provider result of one comparison.
// It is immutable once finalized.
type ResearchOutcome struct {
	// Provider names the adapter that produced this outcome.
	Provider string `json:"provider"`

	// Status is the terminal state. Never empty.
	Status OutcomeStatus `json:"status"`

	// Report is the final report text. Possibly empty on failure. It is
	// derived only from state observed after the terminal event/status;
	// intermediate deltas never leak in.
	Report string `json:"report,omitempty"`

	// Citations lists the sources in provider order.
	Citations []Citation `json:"citations,omitempty"`

	// Usage holds the provider's reported counters.
	Usage Usage `json:"usage"`

	// Cause explains a failed or timed_out status.
	Cause *ResearchError `json:"cause,omitempty"`

	// Raw is the provider's terminal payload verbatim, kept alongside the
	// normalized fields for side-by-side analysis.
	Raw json.RawMessage `json:"raw,omitempty"`

	// RawExtra preserves provider-specific fields that have no slot in the
	// common schema (e.g. thought summaries, video results).
	RawExtra map[string]json.RawMessage `json:"raw_extra,omitempty"`

	// Duration is the wall-clock time of submit plus run-to-completion.
	Duration time.Duration `json:"duration_ns"`
}

// FailedOutcome reduces an error to a terminal outcome for the given
// provider. Timeouts keep their own status so they stay distinguishable
// from provider failures.
func FailedOutcome(provider string, err error) *ResearchOutcome {
	status := OutcomeFailed
	cause, ok := err.(*ResearchError)
	if !ok {
		cause = ErrTransport(err.Error())
	}
	if cause.Kind == KindTimeout {
		status = OutcomeTimedOut
	}
	return &ResearchOutcome{
		Provider: provider,
		Status:   status,
		Cause:    cause,
	}
}

// ComparisonResult pairs exactly one ResearchOutcome per configured provider
// under the same ResearchRequest. A total provider failure substitutes a
// failed/timed_out outcome, never a missing entry.
type ComparisonResult struct {
	ID        string             `json:"id"`
	Request   *ResearchRequest   `json:"request"`
	Outcomes  []*ResearchOutcome `json:"outcomes"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration_ns"`
}

// OutcomeFor returns the outcome for the named provider, or nil if the
// provider was not part of this comparison.
func (c *ComparisonResult) OutcomeFor(provider string) *ResearchOutcome {
	for _, o := range c.Outcomes {
		if o.Provider == provider {
			return o
		}
	}
	return nil
}
