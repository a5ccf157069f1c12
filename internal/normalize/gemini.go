package normalize

import (
	"encoding/json"

	"github.com/tjfontaine/research-compare/internal/domain"
)

// geminiInteraction is the mapped subset of a completed interaction object.
type geminiInteraction struct {
	Outputs []geminiOutput `json:"outputs"`
	Usage   *geminiUsage   `json:"usage"`
}

type geminiOutput struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Citations []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Date  string `json:"publication_date"`
	} `json:"citations"`
}

type geminiUsage struct {
	PromptTokens       *int `json:"prompt_tokens"`
	CompletionTokens   *int `json:"completion_tokens"`
	TotalTokens        *int `json:"total_tokens"`
	ThoughtsTokenCount *int `json:"thoughts_token_count"`
}

// Gemini maps a completed interaction to the shared outcome schema. The
// report is the last text output; thought-summary outputs have no slot in
// the common schema and are preserved under raw_extra["thought_summaries"].
func Gemini(raw json.RawMessage) *domain.ResearchOutcome {
	var interaction geminiInteraction
	if err := json.Unmarshal(raw, &interaction); err != nil {
		return malformed(raw, err)
	}

	outcome := &domain.ResearchOutcome{
		Status:   domain.OutcomeSucceeded,
		Raw:      cloneRaw(raw),
		RawExtra: extraFields(raw, "outputs", "usage"),
	}

	var thoughts []string
	for _, out := range interaction.Outputs {
		switch out.Type {
		case "thought_summary":
			thoughts = append(thoughts, out.Text)
		default:
			outcome.Report = out.Text
			outcome.Citations = outcome.Citations[:0]
			for _, c := range out.Citations {
				outcome.Citations = append(outcome.Citations, domain.Citation{
					Title: c.Title,
					URL:   c.URL,
					Date:  c.Date,
				})
			}
		}
	}

	if len(thoughts) > 0 {
		encoded, err := json.Marshal(thoughts)
		if err == nil {
			if outcome.RawExtra == nil {
				outcome.RawExtra = make(map[string]json.RawMessage)
			}
			outcome.RawExtra["thought_summaries"] = encoded
		}
	}

	if u := interaction.Usage; u != nil {
		outcome.Usage = domain.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
			ReasoningTokens:  u.ThoughtsTokenCount,
		}
	}

	return outcome
}
