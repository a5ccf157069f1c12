package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tjfontaine/research-compare/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

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

// Client is an HTTP client for the interactions API.
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

// CreateInteraction starts a background interaction and returns its id.
func (c *Client) CreateInteraction(ctx context.Context, req *CreateInteractionRequest) (*Interaction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/interactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("interaction creation failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("failed to read response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, respBody)
	}

	var interaction Interaction
	if err := json.Unmarshal(respBody, &interaction); err != nil {
		return nil, domain.ErrProvider(fmt.Sprintf("failed to unmarshal interaction: %v", err))
	}
	return &interaction, nil
}

// Stream opens the event feed for an interaction. afterEventID requests only
// events after that position, so a reconnect neither replays nor skips any
// event. The returned channel is closed when the connection ends; a
// transport failure surfaces as a final event with Err set.
func (c *Client) Stream(ctx context.Context, id string, afterEventID int64) (<-chan domain.RawEvent, error) {
	url := c.baseURL + "/v1/interactions/" + id + "?stream=true"
	if afterEventID > 0 {
		url += "&last_event_id=" + strconv.FormatInt(afterEventID, 10)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("stream connect failed: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, respBody)
	}

	out := make(chan domain.RawEvent)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- domain.RawEvent) {
	defer close(out)
	defer body.Close()

	// The consumer may stop receiving after a terminal event while trailing
	// events are still on the wire, so every send races ctx cancellation;
	// otherwise the goroutine and connection would be held forever.
	send := func(ev domain.RawEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	// Deltas can be large
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var seq int64
	var data []byte

	flush := func() bool {
		if len(data) == 0 {
			return true
		}
		ok := send(decodeEvent(seq, data))
		seq = 0
		data = nil
		return ok
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if !flush() {
				return
			}
		case strings.HasPrefix(line, "id: "):
			if n, err := strconv.ParseInt(strings.TrimPrefix(line, "id: "), 10, 64); err == nil {
				seq = n
			}
		case strings.HasPrefix(line, "data: "):
			chunk := strings.TrimPrefix(line, "data: ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		}
		// other fields (comments, event:) are ignored
	}
	if !flush() {
		return
	}

	if err := scanner.Err(); err != nil {
		send(domain.RawEvent{Err: domain.ErrTransport(fmt.Sprintf("stream read error: %v", err))})
	}
}

// decodeEvent classifies one SSE frame into the generic event model. The
// payload is kept verbatim.
func decodeEvent(seq int64, data []byte) domain.RawEvent {
	var se StreamEvent
	if err := json.Unmarshal(data, &se); err != nil {
		return domain.RawEvent{
			Seq: seq,
			Err: domain.ErrProvider(fmt.Sprintf("failed to unmarshal event: %v", err)),
		}
	}

	ev := domain.RawEvent{
		Seq:     seq,
		Payload: append(json.RawMessage(nil), data...),
	}

	switch se.Type {
	case EventTypeContentDelta:
		ev.Type = domain.EventContentDelta
		if se.Delta != nil {
			ev.Text = se.Delta.Text
		}
	case EventTypeThoughtDelta:
		ev.Type = domain.EventThoughtDelta
		if se.Delta != nil {
			ev.Text = se.Delta.Text
		}
	case EventTypeUsage:
		ev.Type = domain.EventUsage
	default:
		ev.Type = domain.EventLifecycle
	}
	return ev
}

// parseError maps a non-2xx response to the error taxonomy: 5xx and 429 are
// transient transport failures, everything else a terminal provider error.
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
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("User-Agent", "research-compare/1.0")
}
