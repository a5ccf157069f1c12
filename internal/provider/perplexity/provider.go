// Package perplexity adapts the Perplexity Sonar deep-research backend. Its
// async API exposes only a fetch-by-id status check, so the completion
// strategy is poll-until-terminal: fetch, sleep a fixed interval, fetch
// again, until the job reports COMPLETED or FAILED or the local deadline
// elapses.
package perplexity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tjfontaine/research-compare/internal/domain"
	"github.com/tjfontaine/research-compare/internal/normalize"
	"github.com/tjfontaine/research-compare/internal/provider"
)

const (
	defaultModel               = "sonar-deep-research"
	defaultPollInterval        = 10 * time.Second
	defaultRetryBackoff        = 2 * time.Second
	defaultMaxTransientRetries = 5

	// The API caps search_domain_filter at 10 entries.
	maxDomainFilters = 10
)

// Option configures the provider.
type Option func(*Provider)

// WithModel overrides the research model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithPollInterval sets the fixed sleep between status fetches.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithMaxTransientRetries bounds consecutive transient fetch errors before
// the job is declared failed.
func WithMaxTransientRetries(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxTransientRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay for transient-error backoff.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.retryBackoff = d
		}
	}
}

// WithAPIBaseURL sets a custom API base URL.
func WithAPIBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithAPIHTTPClient sets a custom HTTP client.
func WithAPIHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider implements provider.ResearchProvider for the poll-style backend.
type Provider struct {
	client              *Client
	model               string
	pollInterval        time.Duration
	retryBackoff        time.Duration
	maxTransientRetries int
	logger              *slog.Logger
	baseURL             string
	httpClient          *http.Client
}

var _ provider.ResearchProvider = (*Provider)(nil)

// New creates a new Perplexity provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		model:               defaultModel,
		pollInterval:        defaultPollInterval,
		retryBackoff:        defaultRetryBackoff,
		maxTransientRetries: defaultMaxTransientRetries,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(p.httpClient))
	}
	p.client = NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return "perplexity"
}

// Submit validates the request and creates the async job. Validation
// failures never reach the wire.
func (p *Provider) Submit(ctx context.Context, req *domain.ResearchRequest) (*domain.JobHandle, error) {
	chatReq, err := p.toChatRequest(req)
	if err != nil {
		return nil, err
	}

	job, err := p.client.CreateJob(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, domain.ErrProvider("job creation returned no id")
	}

	p.logger.Info("research job created",
		slog.String("provider", p.Name()),
		slog.String("job_id", job.ID))

	return &domain.JobHandle{ProviderJobID: job.ID}, nil
}

// RunToCompletion polls the job until a terminal status. The state machine
// is submitted -> in_progress -> {completed, failed}; transient fetch errors
// are retried with backoff up to the configured bound, a terminal status is
// never retried, and deadline expiry yields timed_out without cancelling the
// remote job.
func (p *Provider) RunToCompletion(ctx context.Context, handle *domain.JobHandle) *domain.ResearchOutcome {
	transientFailures := 0

	for {
		job, err := p.client.GetJob(ctx, handle.ProviderJobID)
		if err != nil {
			if ctx.Err() != nil {
				return p.timedOut(handle)
			}
			if domain.KindOf(err) == domain.KindTransportFailure && transientFailures < p.maxTransientRetries {
				transientFailures++
				p.logger.Warn("transient fetch error, retrying",
					slog.String("provider", p.Name()),
					slog.String("job_id", handle.ProviderJobID),
					slog.Int("attempt", transientFailures),
					slog.String("error", err.Error()))
				if !p.sleep(ctx, backoffDelay(p.retryBackoff, transientFailures)) {
					return p.timedOut(handle)
				}
				continue
			}
			if domain.KindOf(err) == domain.KindTransportFailure {
				err = domain.ErrTransport(fmt.Sprintf("transient fetch retries exhausted after %d attempts: %v", p.maxTransientRetries, err))
			}
			return domain.FailedOutcome(p.Name(), err)
		}
		transientFailures = 0
		handle.Advance(handle.Cursor + 1)

		if job.Terminal() {
			return p.terminalOutcome(job)
		}

		switch job.Status {
		case statusCreated, statusInProgress:
			// keep polling
		default:
			p.logger.Warn("unknown job status, continuing to poll",
				slog.String("provider", p.Name()),
				slog.String("status", job.Status))
		}

		if !p.sleep(ctx, p.pollInterval) {
			return p.timedOut(handle)
		}
	}
}

// terminalOutcome maps a COMPLETED or FAILED job to its outcome.
func (p *Provider) terminalOutcome(job *AsyncJob) *domain.ResearchOutcome {
	if job.Status == statusCompleted {
		outcome := normalize.Perplexity(job.Response)
		outcome.Provider = p.Name()
		return outcome
	}
	message := job.ErrorMessage
	if message == "" {
		message = "job reported failure without detail"
	}
	outcome := domain.FailedOutcome(p.Name(), domain.ErrProvider(message))
	outcome.Raw = job.Response
	return outcome
}

// sleep waits for d or until the context expires. It returns false when the
// deadline fired first.
func (p *Provider) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (p *Provider) timedOut(handle *domain.JobHandle) *domain.ResearchOutcome {
	// The remote job keeps running; cancellation is not assumed to be
	// supported.
	return domain.FailedOutcome(p.Name(), domain.ErrTimeout(
		fmt.Sprintf("deadline exceeded while job %s still in progress", handle.ProviderJobID)))
}

func (p *Provider) toChatRequest(req *domain.ResearchRequest) (*ChatRequest, error) {
	if req == nil || req.Query == "" {
		return nil, domain.ErrRequestRejected("query must not be empty")
	}
	switch req.SearchMode {
	case "", "web", "academic":
	default:
		return nil, domain.ErrRequestRejected(fmt.Sprintf("unsupported search mode %q", req.SearchMode))
	}
	switch req.ReasoningEffort {
	case "", "low", "medium", "high":
	default:
		return nil, domain.ErrRequestRejected(fmt.Sprintf("unsupported reasoning effort %q", req.ReasoningEffort))
	}

	// Deny entries share the allow list, prefixed with "-".
	domains := append([]string(nil), req.AllowedDomains...)
	for _, d := range req.DeniedDomains {
		domains = append(domains, "-"+d)
	}
	if len(domains) > maxDomainFilters {
		return nil, domain.ErrRequestRejected(
			fmt.Sprintf("at most %d combined domain filters are supported, got %d", maxDomainFilters, len(domains)))
	}

	var messages []ChatMessage
	if req.SystemInstruction != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Query})

	return &ChatRequest{
		Model:                  p.model,
		Messages:               messages,
		SearchMode:             req.SearchMode,
		Temperature:            req.Temperature,
		ReasoningEffort:        req.ReasoningEffort,
		SearchAfterDateFilter:  req.SearchAfterDate,
		SearchBeforeDateFilter: req.SearchBeforeDate,
		SearchDomainFilter:     domains,
	}, nil
}

// backoffDelay doubles the base delay for each consecutive failure.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
