// Package gemini adapts the Gemini deep-research backend. Its interactions
// API exposes an incremental event feed, so the completion strategy is a
// resumable stream: consume events, and on a transport drop reconnect
// requesting only events after the highest acknowledged position, so the
// logical event sequence reaches the consumer exactly once and in order.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/research-compare/internal/domain"
	"github.com/tjfontaine/research-compare/internal/normalize"
	"github.com/tjfontaine/research-compare/internal/provider"
)

const (
	defaultAgent            = "deep-research-pro-preview-12-2025"
	defaultReconnectBackoff = time.Second
	defaultMaxReconnects    = 5
)

// Option configures the provider.
type Option func(*Provider)

// WithAgent overrides the research agent name.
func WithAgent(agent string) Option {
	return func(p *Provider) {
		p.agent = agent
	}
}

// WithThinkingSummaries controls thought-summary emission ("auto", "none").
func WithThinkingSummaries(mode string) Option {
	return func(p *Provider) {
		p.thinkingSummaries = mode
	}
}

// WithMaxReconnects bounds reconnection attempts after transport drops.
func WithMaxReconnects(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxReconnects = n
		}
	}
}

// WithReconnectBackoff sets the base delay for reconnection backoff.
func WithReconnectBackoff(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.reconnectBackoff = d
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

// Provider implements provider.ResearchProvider for the stream-style
// backend.
type Provider struct {
	client            *Client
	agent             string
	thinkingSummaries string
	reconnectBackoff  time.Duration
	maxReconnects     int
	logger            *slog.Logger
	baseURL           string
	httpClient        *http.Client
}

var _ provider.ResearchProvider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		agent:             defaultAgent,
		thinkingSummaries: "auto",
		reconnectBackoff:  defaultReconnectBackoff,
		maxReconnects:     defaultMaxReconnects,
		logger:            slog.Default(),
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
	return "gemini"
}

// Submit validates the request and starts a background interaction. The
// interactions API takes no search constraints or sampling options, so
// those fields are dropped and logged; an explicit academic search mode is
// rejected rather than silently run against the web corpus.
func (p *Provider) Submit(ctx context.Context, req *domain.ResearchRequest) (*domain.JobHandle, error) {
	if req == nil || req.Query == "" {
		return nil, domain.ErrRequestRejected("query must not be empty")
	}
	if req.SearchMode != "" && req.SearchMode != "web" {
		return nil, domain.ErrRequestRejected(fmt.Sprintf("search mode %q is not supported", req.SearchMode))
	}
	if dropped := unsupportedFields(req); len(dropped) > 0 {
		p.logger.Debug("dropping unsupported request fields",
			slog.String("provider", p.Name()),
			slog.String("fields", strings.Join(dropped, ", ")))
	}

	interaction, err := p.client.CreateInteraction(ctx, &CreateInteractionRequest{
		Agent:      p.agent,
		Input:      req.Query,
		Background: true,
		AgentConfig: &AgentConfig{
			Type:              "deep-research",
			ThinkingSummaries: p.thinkingSummaries,
		},
	})
	if err != nil {
		return nil, err
	}
	if interaction.ID == "" {
		return nil, domain.ErrProvider("interaction creation returned no id")
	}

	p.logger.Info("research interaction created",
		slog.String("provider", p.Name()),
		slog.String("interaction_id", interaction.ID))

	return &domain.JobHandle{ProviderJobID: interaction.ID}, nil
}

// unsupportedFields names the request fields the interactions API has no
// equivalent for.
func unsupportedFields(req *domain.ResearchRequest) []string {
	var dropped []string
	if req.SystemInstruction != "" {
		dropped = append(dropped, "system_instruction")
	}
	if req.Temperature != 0 {
		dropped = append(dropped, "temperature")
	}
	if req.ReasoningEffort != "" {
		dropped = append(dropped, "reasoning_effort")
	}
	if req.SearchAfterDate != "" {
		dropped = append(dropped, "search_after_date")
	}
	if req.SearchBeforeDate != "" {
		dropped = append(dropped, "search_before_date")
	}
	if len(req.AllowedDomains) > 0 {
		dropped = append(dropped, "allowed_domains")
	}
	if len(req.DeniedDomains) > 0 {
		dropped = append(dropped, "denied_domains")
	}
	return dropped
}

// streamState accumulates the in-flight stream. The final report is taken
// from the terminal event's interaction object; the accumulated deltas are
// only a fallback for a complete event that arrives without one.
type streamState struct {
	content  strings.Builder
	thoughts []string
	usage    json.RawMessage
}

// RunToCompletion consumes the event feed to a terminal event. States are
// connecting -> streaming -> {completed, failed}, with reconnecting entered
// on any transport drop while streaming. Reconnects use bounded exponential
// backoff; exhausting them fails the outcome. A terminal event that arrives
// before the local deadline fires is authoritative even if the deadline is
// already due.
func (p *Provider) RunToCompletion(ctx context.Context, handle *domain.JobHandle) *domain.ResearchOutcome {
	st := &streamState{}
	reconnects := 0

	for {
		// Each connection gets its own cancellable context. Cancelling it
		// once consume returns releases the reader goroutine and the HTTP
		// body even when the server keeps sending after a terminal event.
		streamCtx, cancelStream := context.WithCancel(ctx)
		events, err := p.client.Stream(streamCtx, handle.ProviderJobID, handle.Cursor)
		if err != nil {
			cancelStream()
			if ctx.Err() != nil {
				return p.timedOut(handle)
			}
			if domain.KindOf(err) != domain.KindTransportFailure {
				return domain.FailedOutcome(p.Name(), err)
			}
		} else {
			outcome, progressed := p.consume(events, handle, st)
			cancelStream()
			if outcome != nil {
				return outcome
			}
			if progressed {
				reconnects = 0
			}
			if ctx.Err() != nil {
				return p.timedOut(handle)
			}
		}

		// Transport drop: reconnect after the highest-seen event position.
		if reconnects >= p.maxReconnects {
			return domain.FailedOutcome(p.Name(), domain.ErrReconnectionExhausted(
				fmt.Sprintf("reconnection exhausted after %d attempts", p.maxReconnects)))
		}
		reconnects++
		p.logger.Warn("stream dropped, reconnecting",
			slog.String("provider", p.Name()),
			slog.String("interaction_id", handle.ProviderJobID),
			slog.Int64("last_event_id", handle.Cursor),
			slog.Int("attempt", reconnects))
		if !p.sleep(ctx, backoffDelay(p.reconnectBackoff, reconnects)) {
			return p.timedOut(handle)
		}
	}
}

// consume drains one connection's events. It returns a non-nil outcome on a
// terminal event, and reports whether any new event was delivered on this
// connection.
func (p *Provider) consume(events <-chan domain.RawEvent, handle *domain.JobHandle, st *streamState) (*domain.ResearchOutcome, bool) {
	progressed := false

	for ev := range events {
		if ev.Err != nil {
			if domain.KindOf(ev.Err) != domain.KindTransportFailure {
				return domain.FailedOutcome(p.Name(), ev.Err), progressed
			}
			p.logger.Warn("stream transport error",
				slog.String("provider", p.Name()),
				slog.String("error", ev.Err.Error()))
			return nil, progressed
		}

		// Replay guard: a reconnect must not re-deliver acknowledged events.
		if ev.Seq != 0 && ev.Seq <= handle.Cursor {
			continue
		}
		handle.Advance(ev.Seq)
		progressed = true

		switch ev.Type {
		case domain.EventContentDelta:
			st.content.WriteString(ev.Text)
		case domain.EventThoughtDelta:
			st.thoughts = append(st.thoughts, ev.Text)
		case domain.EventUsage:
			st.usage = ev.Payload
		case domain.EventLifecycle:
			if outcome := p.lifecycle(ev, handle, st); outcome != nil {
				return outcome, progressed
			}
		}
	}

	return nil, progressed
}

// lifecycle handles start/complete/error events. It returns a non-nil
// outcome when the event is terminal.
func (p *Provider) lifecycle(ev domain.RawEvent, handle *domain.JobHandle, st *streamState) *domain.ResearchOutcome {
	var se StreamEvent
	if err := json.Unmarshal(ev.Payload, &se); err != nil {
		return domain.FailedOutcome(p.Name(), domain.ErrProvider(
			fmt.Sprintf("malformed lifecycle event: %v", err)))
	}

	switch se.Type {
	case EventTypeStart:
		if handle.ProviderJobID == "" {
			handle.ProviderJobID = se.InteractionID
		}
		return nil
	case EventTypeComplete:
		return p.completed(ev, se, st)
	case EventTypeError:
		message := "interaction failed"
		if se.Error != nil && se.Error.Message != "" {
			message = se.Error.Message
		}
		outcome := domain.FailedOutcome(p.Name(), domain.ErrProvider(message))
		outcome.Raw = ev.Payload
		return outcome
	default:
		return nil
	}
}

func (p *Provider) completed(ev domain.RawEvent, se StreamEvent, st *streamState) *domain.ResearchOutcome {
	if len(se.Interaction) > 0 {
		outcome := normalize.Gemini(se.Interaction)
		outcome.Provider = p.Name()
		return outcome
	}

	// Complete event without an interaction body: fall back to the
	// accumulated stream.
	outcome := &domain.ResearchOutcome{
		Provider: p.Name(),
		Status:   domain.OutcomeSucceeded,
		Report:   st.content.String(),
		Raw:      ev.Payload,
	}
	if len(st.thoughts) > 0 {
		if encoded, err := json.Marshal(st.thoughts); err == nil {
			outcome.RawExtra = map[string]json.RawMessage{"thought_summaries": encoded}
		}
	}
	if len(st.usage) > 0 {
		var frame StreamEvent
		if json.Unmarshal(st.usage, &frame) == nil && len(frame.Usage) > 0 {
			var u struct {
				PromptTokens       *int `json:"prompt_tokens"`
				CompletionTokens   *int `json:"completion_tokens"`
				TotalTokens        *int `json:"total_tokens"`
				ThoughtsTokenCount *int `json:"thoughts_token_count"`
			}
			if json.Unmarshal(frame.Usage, &u) == nil {
				outcome.Usage = domain.Usage{
					PromptTokens:     u.PromptTokens,
					CompletionTokens: u.CompletionTokens,
					TotalTokens:      u.TotalTokens,
					ReasoningTokens:  u.ThoughtsTokenCount,
				}
			}
		}
	}
	return outcome
}

func (p *Provider) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (p *Provider) timedOut(handle *domain.JobHandle) *domain.ResearchOutcome {
	// The remote interaction keeps running; it is not cancelled server-side.
	return domain.FailedOutcome(p.Name(), domain.ErrTimeout(
		fmt.Sprintf("deadline exceeded while interaction %s still streaming", handle.ProviderJobID)))
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
