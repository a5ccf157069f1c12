// Package normalize reduces each provider's raw terminal payload to the
// shared ResearchOutcome schema. Every function here is pure: the same raw
// bytes always produce an identical outcome, and nothing is read from or
// written to any state outside the arguments.
//
// Absent counters stay nil ("not reported") rather than being coerced to
// zero; a real zero count survives as zero. Citation order is preserved as
// received. Provider-specific fields with no slot in the common schema are
// kept verbatim in the outcome's raw_extra map instead of being discarded.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/tjfontaine/research-compare/internal/domain"
)

// malformed builds the outcome for a payload that cannot be parsed. The raw
// bytes are still attached for analysis.
func malformed(raw json.RawMessage, err error) *domain.ResearchOutcome {
	outcome := domain.FailedOutcome("", domain.ErrProvider(fmt.Sprintf("malformed payload: %v", err)))
	outcome.Raw = cloneRaw(raw)
	return outcome
}

// extraFields returns the top-level fields of raw that are not in the mapped
// set, verbatim. Returns nil when there are none.
func extraFields(raw json.RawMessage, mapped ...string) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	for _, key := range mapped {
		delete(fields, key)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// cloneRaw copies the payload so the outcome never aliases a caller buffer.
func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
