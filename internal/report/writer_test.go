package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/research-compare/internal/domain"
)

func intPtr(n int) *int { return &n }

func testResult() *domain.ComparisonResult {
	return &domain.ComparisonResult{
		ID:        "cmp-1",
		Request:   &domain.ResearchRequest{Query: "how do rivers form"},
		StartedAt: time.Now(),
		Duration:  2 * time.Minute,
		Outcomes: []*domain.ResearchOutcome{
			{
				Provider: "perplexity",
				Status:   domain.OutcomeSucceeded,
				Report:   "Rivers form from precipitation collecting in channels.",
				Citations: []domain.Citation{
					{Title: "Hydrology primer", URL: "https://example.com/h", Date: "2024-05-01"},
					{URL: "https://example.com/bare"},
				},
				Usage: domain.Usage{
					TotalTokens:   intPtr(420),
					SearchQueries: intPtr(0),
				},
				Raw:      json.RawMessage(`{"choices":[{"message":{"content":"..."}}]}`),
				Duration: 90 * time.Second,
			},
			{
				Provider: "gemini",
				Status:   domain.OutcomeFailed,
				Cause:    domain.ErrProvider("agent crashed"),
				Duration: 30 * time.Second,
			},
		},
	}
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if err := w.Write(testResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	for _, name := range []string{
		"perplexity_full_response.json",
		"perplexity_report.md",
		"gemini_full_response.json",
		"gemini_report.md",
		"comparison.md",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestWriter_ProviderReportContent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.Write(testResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "perplexity_report.md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(data)

	if !strings.Contains(report, "how do rivers form") {
		t.Error("report missing query")
	}
	if !strings.Contains(report, "Rivers form from precipitation") {
		t.Error("report missing body")
	}
	if !strings.Contains(report, "## Sources") {
		t.Error("report missing sources section")
	}
	if !strings.Contains(report, "1. [Hydrology primer](https://example.com/h) (2024-05-01)") {
		t.Errorf("report sources malformed:\n%s", report)
	}
	// A reported zero renders as 0; an unreported counter says so.
	if !strings.Contains(report, "Search queries: 0") {
		t.Error("reported zero was not rendered as 0")
	}
	if !strings.Contains(report, "Citation tokens: n/a (not reported)") {
		t.Error("absent counter was not labeled as not reported")
	}
	if !strings.Contains(report, "Report tokens (local estimate):") {
		t.Error("report missing local token estimate")
	}
}

func TestWriter_FailedProviderReport(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.Write(testResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "gemini_report.md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(data)

	if !strings.Contains(report, "failed") {
		t.Error("failed status missing")
	}
	if !strings.Contains(report, "agent crashed") {
		t.Error("failure cause missing")
	}

	// The raw file still exists, carrying the normalized outcome.
	raw, err := os.ReadFile(filepath.Join(dir, "gemini_full_response.json"))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	var outcome domain.ResearchOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		t.Fatalf("raw fallback is not valid JSON: %v", err)
	}
	if outcome.Status != domain.OutcomeFailed {
		t.Errorf("fallback status = %v", outcome.Status)
	}
}

func TestWriter_ComparisonTable(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if err := w.Write(testResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "comparison.md"))
	if err != nil {
		t.Fatalf("read comparison: %v", err)
	}
	comparison := string(data)

	if !strings.Contains(comparison, "| perplexity | succeeded |") {
		t.Errorf("comparison missing perplexity row:\n%s", comparison)
	}
	if !strings.Contains(comparison, "| gemini | failed |") {
		t.Errorf("comparison missing gemini row:\n%s", comparison)
	}
	if !strings.Contains(comparison, "agent crashed") {
		t.Error("comparison missing failure note")
	}
}
