package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tjfontaine/research-compare/internal/domain"
)

const defaultBaseURL = "https://api.perplexity.ai"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is an HTTP client for the async chat-completions API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateJob submits a new async research job and returns its envelope.
func (c *Client) CreateJob(ctx context.Context, req *ChatRequest) (*AsyncJob, error) {
	body, err := json.Marshal(&AsyncJobRequest{Request: req})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/async/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("job creation failed: %v", err))
	}
	defer resp.Body.Close()

	return c.decodeJob(resp)
}

// GetJob fetches the current state of an async job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*AsyncJob, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/async/chat/completions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("status fetch failed: %v", err))
	}
	defer resp.Body.Close()

	return c.decodeJob(resp)
}

func (c *Client) decodeJob(resp *http.Response) (*AsyncJob, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, respBody)
	}

	var job AsyncJob
	if err := json.Unmarshal(respBody, &job); err != nil {
		return nil, domain.ErrProvider(fmt.Sprintf("failed to unmarshal job: %v", err))
	}
	return &job, nil
}

// parseError maps a non-2xx response to the error taxonomy: 5xx and 429 are
// transient transport failures eligible for retry, everything else is a
// terminal provider error.
func parseError(statusCode int, body []byte) *domain.ResearchError {
	message := fmt.Sprintf("API error (status %d)", statusCode)
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	} else if len(body) > 0 {
		message = fmt.Sprintf("%s: %s", message, string(body))
	}

	if statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests {
		return domain.ErrTransport(message).WithStatusCode(statusCode)
	}
	return domain.ErrProvider(message).WithStatusCode(statusCode)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "research-compare/1.0")
}
