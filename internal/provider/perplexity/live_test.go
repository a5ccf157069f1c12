package perplexity

import (
	"context"
	"os"
	"testing"

	"github.com/tjfontaine/research-compare/internal/domain"
	"github.com/tjfontaine/research-compare/internal/testutil"
)

// TestProvider_RecordSubmit records a live job-creation exchange into a
// cassette. It only runs when explicitly recording; day-to-day runs skip it
// so no credentials or fixtures are required.
func TestProvider_RecordSubmit(t *testing.T) {
	if os.Getenv("VCR_MODE") != "record" {
		t.Skip("set VCR_MODE=record and PERPLEXITY_API_KEY to record a live cassette")
	}
	apiKey := os.Getenv("PERPLEXITY_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping test: PERPLEXITY_API_KEY not set")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "perplexity_submit")
	defer cleanup()

	p := New(apiKey, WithAPIHTTPClient(testutil.VCRHTTPClient(recorder)))

	handle, err := p.Submit(context.Background(), &domain.ResearchRequest{
		Query: "In one sentence, what is a watershed?",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if handle.ProviderJobID == "" {
		t.Error("expected a job id")
	}
}
