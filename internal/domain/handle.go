package domain

// JobHandle identifies one remote research job and tracks how far its
// completion strategy has progressed. A handle is owned exclusively by the
// adapter call that created it and is never shared across providers, so no
// locking is needed around the cursor.
type JobHandle struct {
	// ProviderJobID is the opaque identifier assigned by the provider.
	ProviderJobID string `json:"provider_job_id"`

	// Cursor is the resume position: the highest acknowledged event id for
	// stream providers, or the poll sequence number for poll providers.
	// It never decreases.
	Cursor int64 `json:"cursor"`
}

// Advance moves the cursor forward. Positions at or below the current
// cursor are ignored, keeping the cursor monotonically non-decreasing.
func (h *JobHandle) Advance(pos int64) {
	if pos > h.Cursor {
		h.Cursor = pos
	}
}
