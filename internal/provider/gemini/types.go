package gemini

import "encoding/json"

// Stream event types as carried in the SSE data payload.
const (
	EventTypeStart        = "interaction.start"
	EventTypeContentDelta = "content.delta"
	EventTypeThoughtDelta = "thought_summary.delta"
	EventTypeUsage        = "usage"
	EventTypeComplete     = "interaction.complete"
	EventTypeError        = "error"
)

// CreateInteractionRequest is the body of the interaction-creation call.
type CreateInteractionRequest struct {
	Agent       string       `json:"agent"`
	Input       string       `json:"input"`
	Background  bool         `json:"background"`
	Stream      bool         `json:"stream,omitempty"`
	AgentConfig *AgentConfig `json:"agent_config,omitempty"`
}

// AgentConfig tunes the deep-research agent.
type AgentConfig struct {
	Type              string `json:"type"`
	ThinkingSummaries string `json:"thinking_summaries,omitempty"`
}

// Interaction is the envelope returned by the creation call.
type Interaction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StreamEvent is the decoded data payload of one SSE frame.
type StreamEvent struct {
	Type          string `json:"type"`
	InteractionID string `json:"interaction_id,omitempty"`
	Delta         *struct {
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	// Interaction carries the final interaction object on
	// interaction.complete; it stays raw for the normalizer.
	Interaction json.RawMessage `json:"interaction,omitempty"`
	Usage       json.RawMessage `json:"usage,omitempty"`
	Error       *struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// apiErrorResponse is the error body shape for non-2xx responses.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
