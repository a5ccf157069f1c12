package normalize

import (
	"encoding/json"

	"github.com/tjfontaine/research-compare/internal/domain"
)

// perplexityPayload is the mapped subset of a completed async chat
// completion. Everything else stays in raw_extra.
type perplexityPayload struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Date  string `json:"date"`
	} `json:"search_results"`
	Usage *perplexityUsage `json:"usage"`
}

// perplexityUsage mirrors the wire counters with pointers so "omitted" and
// "zero" stay distinct through normalization.
type perplexityUsage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	TotalTokens      *int `json:"total_tokens"`
	CitationTokens   *int `json:"citation_tokens"`
	ReasoningTokens  *int `json:"reasoning_tokens"`
	NumSearchQueries *int `json:"num_search_queries"`
}

// Perplexity maps a completed Perplexity response to the shared outcome
// schema.
func Perplexity(raw json.RawMessage) *domain.ResearchOutcome {
	var payload perplexityPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return malformed(raw, err)
	}

	outcome := &domain.ResearchOutcome{
		Status:   domain.OutcomeSucceeded,
		Raw:      cloneRaw(raw),
		RawExtra: extraFields(raw, "choices", "search_results", "usage"),
	}

	if len(payload.Choices) > 0 {
		outcome.Report = payload.Choices[0].Message.Content
	}

	for _, sr := range payload.SearchResults {
		outcome.Citations = append(outcome.Citations, domain.Citation{
			Title: sr.Title,
			URL:   sr.URL,
			Date:  sr.Date,
		})
	}

	if u := payload.Usage; u != nil {
		outcome.Usage = domain.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
			CitationTokens:   u.CitationTokens,
			ReasoningTokens:  u.ReasoningTokens,
			SearchQueries:    u.NumSearchQueries,
		}
	}

	return outcome
}
