package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/research-compare/internal/domain"
)

func testProvider(t *testing.T, handler http.Handler, opts ...Option) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	base := []Option{
		WithAPIBaseURL(server.URL),
		WithPollInterval(5 * time.Millisecond),
		WithRetryBackoff(time.Millisecond),
	}
	return New("test-key", append(base, opts...)...), server
}

func writeJob(w http.ResponseWriter, job *AsyncJob) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job)
}

func TestProvider_PollsToCompletion(t *testing.T) {
	var polls atomic.Int32

	p, _ := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req AsyncJobRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode create request: %v", err)
			}
			if req.Request == nil || req.Request.Model != "sonar-deep-research" {
				t.Errorf("unexpected request payload: %+v", req.Request)
			}
			writeJob(w, &AsyncJob{ID: "job-1", Status: statusCreated})
			return
		}

		if !strings.HasSuffix(r.URL.Path, "/job-1") {
			t.Errorf("unexpected fetch path %s", r.URL.Path)
		}
		switch polls.Add(1) {
		case 1, 2:
			writeJob(w, &AsyncJob{ID: "job-1", Status: statusInProgress})
		default:
			writeJob(w, &AsyncJob{
				ID:     "job-1",
				Status: statusCompleted,
				Response: json.RawMessage(`{
					"choices": [{"message": {"content": "done"}}],
					"usage": {"total_tokens": 10}
				}`),
			})
		}
	}))

	handle, err := p.Submit(context.Background(), &domain.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if handle.ProviderJobID != "job-1" {
		t.Fatalf("ProviderJobID = %s", handle.ProviderJobID)
	}

	outcome := p.RunToCompletion(context.Background(), handle)
	if outcome.Status != domain.OutcomeSucceeded {
		t.Fatalf("Status = %v, cause = %+v", outcome.Status, outcome.Cause)
	}
	if outcome.Report != "done" {
		t.Errorf("Report = %q", outcome.Report)
	}
	if outcome.Provider != "perplexity" {
		t.Errorf("Provider = %q", outcome.Provider)
	}
	if polls.Load() < 3 {
		t.Errorf("polls = %d, want at least 3", polls.Load())
	}
}

func TestProvider_RetriesTransientFetchErrors(t *testing.T) {
	var polls atomic.Int32

	p, _ := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJob(w, &AsyncJob{ID: "job-1", Status: statusCreated})
			return
		}
		switch polls.Add(1) {
		case 1, 2:
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
		default:
			writeJob(w, &AsyncJob{
				ID:       "job-1",
				Status:   statusCompleted,
				Response: json.RawMessage(`{"choices":[{"message":{"content":"recovered"}}]}`),
			})
		}
	}))

	handle, err := p.Submit(context.Background(), &domain.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	outcome := p.RunToCompletion(context.Background(), handle)
	if outcome.Status != domain.OutcomeSucceeded {
		t.Fatalf("Status = %v, cause = %+v", outcome.Status, outcome.Cause)
	}
	if outcome.Report != "recovered" {
		t.Errorf("Report = %q", outcome.Report)
	}
}

func TestProvider_TransientRetriesExhausted(t *testing.T) {
	p, _ := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJob(w, &AsyncJob{ID: "job-1", Status: statusCreated})
			return
		}
		http.Error(w, "down", http.StatusInternalServerError)
	}), WithMaxTransientRetries(2))

	handle, err := p.Submit(context.Background(), &domain.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	outcome := p.RunToCompletion(context.Background(), handle)
	if outcome.Status != domain.OutcomeFailed {
		t.Fatalf("Status = %v, want failed", outcome.Status)
	}
	if outcome.Cause == nil || outcome.Cause.Kind != domain.KindTransportFailure {
		t.Errorf("Cause = %+v, want transport_failure", outcome.Cause)
	}
	if !strings.Contains(outcome.Cause.Message, "retries exhausted") {
		t.Errorf("Cause.Message = %q", outcome.Cause.Message)
	}
}

func TestProvider_TerminalFailureNotRetried(t *testing.T) {
	var polls atomic.Int32

	p, _ := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJob(w, &AsyncJob{ID: "job-1", Status: statusCreated})
			return
		}
		polls.Add(1)
		writeJob(w, &AsyncJob{ID: "job-1", Status: statusFailed, ErrorMessage: "content policy"})
	}))

	handle, err := p.Submit(context.Background(), &domain.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	outcome := p.RunToCompletion(context.Background(), handle)
	if outcome.Status != domain.OutcomeFailed {
		t.Fatalf("Status = %v, want failed", outcome.Status)
	}
	if outcome.Cause == nil || outcome.Cause.Kind != domain.KindProviderError {
		t.Errorf("Cause = %+v, want provider_error", outcome.Cause)
	}
	if outcome.Cause.Message != "content policy" {
		t.Errorf("Cause.Message = %q", outcome.Cause.Message)
	}
	if polls.Load() != 1 {
		t.Errorf("polls = %d, terminal status must not be retried", polls.Load())
	}
}

func TestProvider_DeadlineYieldsTimedOut(t *testing.T) {
	p, _ := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJob(w, &AsyncJob{ID: "job-1", Status: statusCreated})
			return
		}
		writeJob(w, &AsyncJob{ID: "job-1", Status: statusInProgress})
	}), WithPollInterval(20*time.Millisecond))

	handle, err := p.Submit(context.Background(), &domain.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := p.RunToCompletion(ctx, handle)
	if outcome.Status != domain.OutcomeTimedOut {
		t.Fatalf("Status = %v, want timed_out", outcome.Status)
	}
	if outcome.Cause == nil || outcome.Cause.Kind != domain.KindTimeout {
		t.Errorf("Cause = %+v, want timeout", outcome.Cause)
	}
}

func TestProvider_SubmitValidation(t *testing.T) {
	p := New("test-key") // no server needed, validation fails first

	tests := []struct {
		name string
		req  *domain.ResearchRequest
	}{
		{"empty query", &domain.ResearchRequest{}},
		{"bad search mode", &domain.ResearchRequest{Query: "q", SearchMode: "news"}},
		{"bad reasoning effort", &domain.ResearchRequest{Query: "q", ReasoningEffort: "max"}},
		{"too many domain filters", &domain.ResearchRequest{
			Query: "q",
			AllowedDomains: []string{
				"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com", "h.com",
			},
			DeniedDomains: []string{"x.com", "y.com", "z.com"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Submit(context.Background(), tt.req)
			if err == nil {
				t.Fatal("Submit() error = nil, want rejection")
			}
			if domain.KindOf(err) != domain.KindRequestRejected {
				t.Errorf("kind = %v, want request_rejected", domain.KindOf(err))
			}
		})
	}
}

func TestProvider_SubmitRejectedNotSent(t *testing.T) {
	var requests atomic.Int32
	p, _ := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJob(w, &AsyncJob{ID: "job-1", Status: statusCreated})
	}))

	if _, err := p.Submit(context.Background(), &domain.ResearchRequest{Query: "q", SearchMode: "news"}); err == nil {
		t.Fatal("expected rejection")
	}
	if requests.Load() != 0 {
		t.Errorf("rejected request reached the wire (%d requests)", requests.Load())
	}
}

func TestProvider_DomainFilterEncoding(t *testing.T) {
	p := New("test-key")
	chatReq, err := p.toChatRequest(&domain.ResearchRequest{
		Query:          "q",
		AllowedDomains: []string{"good.org"},
		DeniedDomains:  []string{"bad.net"},
	})
	if err != nil {
		t.Fatalf("toChatRequest() error = %v", err)
	}
	want := []string{"good.org", "-bad.net"}
	if len(chatReq.SearchDomainFilter) != 2 ||
		chatReq.SearchDomainFilter[0] != want[0] ||
		chatReq.SearchDomainFilter[1] != want[1] {
		t.Errorf("SearchDomainFilter = %v, want %v", chatReq.SearchDomainFilter, want)
	}
}
