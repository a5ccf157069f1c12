// Package orchestrator fans a single research request out to every
// configured provider in parallel and assembles one comparison result. One
// provider failing, timing out, or rejecting the request never prevents the
// other providers from completing; each provider contributes exactly one
// outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/research-compare/internal/domain"
	"github.com/tjfontaine/research-compare/internal/provider"
)

const defaultProviderTimeout = 45 * time.Minute

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithProviderTimeout bounds how long each provider task may run, covering
// submission and run-to-completion together.
func WithProviderTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.providerTimeout = d
		}
	}
}

// WithProviderDeadline overrides the timeout for one named provider. Other
// providers keep the shared timeout, so differently paced backends each get
// their own budget.
func WithProviderDeadline(name string, d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.providerDeadlines[name] = d
		}
	}
}

// Orchestrator runs comparisons.
type Orchestrator struct {
	providerTimeout   time.Duration
	providerDeadlines map[string]time.Duration
	logger            *slog.Logger
	tracer            trace.Tracer
}

// New creates a new orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providerTimeout:   defaultProviderTimeout,
		providerDeadlines: make(map[string]time.Duration),
		logger:            slog.Default(),
		tracer:            otel.Tracer("research-compare/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Compare submits the request to every provider in parallel and waits for
// all of them. The error return covers only orchestration-level problems
// (an empty provider list); per-provider failures are reduced to failed or
// timed_out outcomes inside the result.
func (o *Orchestrator) Compare(ctx context.Context, req *domain.ResearchRequest, providers []provider.ResearchProvider) (*domain.ComparisonResult, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.Compare",
		trace.WithAttributes(attribute.Int("providers.count", len(providers))))
	defer span.End()

	result := &domain.ComparisonResult{
		ID:        uuid.New().String(),
		Request:   req.Clone(),
		Outcomes:  make([]*domain.ResearchOutcome, len(providers)),
		StartedAt: time.Now(),
	}

	o.logger.Info("starting comparison",
		slog.String("comparison_id", result.ID),
		slog.Int("providers", len(providers)))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(idx int, p provider.ResearchProvider) {
			defer wg.Done()
			result.Outcomes[idx] = o.runProvider(ctx, req, p)
		}(i, p)
	}
	wg.Wait()

	result.Duration = time.Since(result.StartedAt)

	for _, outcome := range result.Outcomes {
		o.logger.Info("provider finished",
			slog.String("comparison_id", result.ID),
			slog.String("provider", outcome.Provider),
			slog.String("status", string(outcome.Status)),
			slog.Duration("duration", outcome.Duration))
	}

	return result, nil
}

// runProvider drives one provider from submission to a terminal outcome. It
// always returns a non-nil outcome with Provider and Duration set.
func (o *Orchestrator) runProvider(ctx context.Context, req *domain.ResearchRequest, p provider.ResearchProvider) *domain.ResearchOutcome {
	timeout := o.providerTimeout
	if d, ok := o.providerDeadlines[p.Name()]; ok {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "orchestrator.runProvider",
		trace.WithAttributes(attribute.String("provider.name", p.Name())))
	defer span.End()

	start := time.Now()

	handle, err := p.Submit(ctx, req)
	if err != nil {
		o.logger.Warn("provider submission failed",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()))
		outcome := domain.FailedOutcome(p.Name(), err)
		outcome.Duration = time.Since(start)
		return outcome
	}

	outcome := p.RunToCompletion(ctx, handle)
	if outcome == nil {
		outcome = domain.FailedOutcome(p.Name(),
			domain.ErrProvider("provider returned no outcome"))
	}
	outcome.Provider = p.Name()
	outcome.Duration = time.Since(start)

	span.SetAttributes(attribute.String("outcome.status", string(outcome.Status)))
	return outcome
}
