// Package provider defines the adapter contract that unifies heterogeneous
// deep-research backends. Each adapter translates the generic request into a
// provider-specific call, runs that provider's completion protocol (polling
// or resumable streaming) to a terminal state, and reduces the raw result to
// a generic ResearchOutcome.
package provider

import (
	"context"

	"github.com/tjfontaine/research-compare/internal/domain"
)

// ResearchProvider is one remote deep-research backend. The two concrete
// implementations share no control flow, only this contract.
type ResearchProvider interface {
	// Name identifies the provider in outcomes, logs and stored records.
	Name() string

	// Submit validates the request against the provider's accepted shape and
	// creates the remote job. A malformed or unsupported request fails fast
	// with a KindRequestRejected error before anything is sent.
	Submit(ctx context.Context, req *domain.ResearchRequest) (*domain.JobHandle, error)

	// RunToCompletion drives the job to a terminal state. It never returns
	// an error: HTTP failures, transport drops, malformed payloads and the
	// local deadline are all reduced to an outcome with status failed or
	// timed_out and an explicit cause. The handle's resume cursor is owned
	// by this call for its duration.
	RunToCompletion(ctx context.Context, handle *domain.JobHandle) *domain.ResearchOutcome
}
