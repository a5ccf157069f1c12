package perplexity

import "encoding/json"

// Async job statuses as reported by the API.
const (
	statusCreated    = "CREATED"
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
	statusFailed     = "FAILED"
)

// ChatMessage is one role/content pair.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the inner chat-completion request.
type ChatRequest struct {
	Model                  string        `json:"model"`
	Messages               []ChatMessage `json:"messages"`
	SearchMode             string        `json:"search_mode,omitempty"`
	Temperature            float64       `json:"temperature,omitempty"`
	ReasoningEffort        string        `json:"reasoning_effort,omitempty"`
	SearchAfterDateFilter  string        `json:"search_after_date_filter,omitempty"`
	SearchBeforeDateFilter string        `json:"search_before_date_filter,omitempty"`
	SearchDomainFilter     []string      `json:"search_domain_filter,omitempty"`
}

// AsyncJobRequest wraps a ChatRequest for the async job-creation endpoint.
type AsyncJobRequest struct {
	Request *ChatRequest `json:"request"`
}

// AsyncJob is the job envelope returned by both the creation call and the
// fetch-by-id call. Response stays raw: the normalizer owns its
// interpretation and the verbatim payload is persisted next to it.
type AsyncJob struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *AsyncJob) Terminal() bool {
	return j.Status == statusCompleted || j.Status == statusFailed
}

// apiErrorResponse is the error body shape for non-2xx responses.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
