// Package domain provides the shared types for dual-provider deep research
// comparisons: the request submitted to every provider, the per-provider
// outcome, and the joined comparison result.
package domain

// ResearchRequest is the provider-independent description of one deep
// research job. The same instance is handed to every adapter; adapters may
// drop fields their provider does not support but must never reinterpret
// them.
type ResearchRequest struct {
	// Query is the research question. Required.
	Query string `json:"query"`

	// SystemInstruction is an optional system prompt for providers that
	// accept one.
	SystemInstruction string `json:"system_instruction,omitempty"`

	// SearchMode selects the search corpus ("web", "academic"). Empty means
	// provider default.
	SearchMode string `json:"search_mode,omitempty"`

	// Temperature is the sampling temperature. Zero means provider default.
	Temperature float64 `json:"temperature,omitempty"`

	// ReasoningEffort hints how much reasoning budget to spend
	// ("low", "medium", "high").
	ReasoningEffort string `json:"reasoning_effort,omitempty"`

	// SearchAfterDate / SearchBeforeDate bound the publication dates of
	// sources, formatted "m/d/yyyy".
	SearchAfterDate  string `json:"search_after_date,omitempty"`
	SearchBeforeDate string `json:"search_before_date,omitempty"`

	// AllowedDomains / DeniedDomains restrict which sites may be cited.
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	DeniedDomains  []string `json:"denied_domains,omitempty"`
}

// Clone returns a deep copy of the request. Adapters that need to mutate
// option fields work on a copy so the caller's request stays immutable.
func (r *ResearchRequest) Clone() *ResearchRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.AllowedDomains = append([]string(nil), r.AllowedDomains...)
	out.DeniedDomains = append([]string(nil), r.DeniedDomains...)
	return &out
}
