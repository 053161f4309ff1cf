package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"values-server/services/articulator-api/internal/domain/llm"
)

// Client implements the llm.Provider interface against an OpenAI-compatible
// chat completions endpoint.
type Client struct {
	httpClient   *resty.Client
	streamClient *http.Client
	baseURL      string
	apiKey       string
}

// NewClient creates a Resty-backed client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(75 * time.Second),
		streamClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
	}
}

// CreateChatCompletion calls /v1/chat/completions without streaming.
func (c *Client) CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	req.Stream = false

	var completion llm.ChatCompletionResponse
	request := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&completion)

	c.authorize(ctx, request)

	resp, err := request.Post("/v1/chat/completions")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &llm.TransportError{StatusCode: resp.StatusCode(), Body: resp.Body()}
	}
	return &completion, nil
}

// CreateChatCompletionStream calls /v1/chat/completions with streaming
// enabled and returns a decoded chunk stream.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req llm.ChatCompletionRequest) (llm.Stream, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if token := c.bearer(ctx); token != "" {
		httpReq.Header.Set("Authorization", token)
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &llm.TransportError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return newChunkStream(resp), nil
}

func (c *Client) authorize(ctx context.Context, request *resty.Request) {
	if token := c.bearer(ctx); token != "" {
		request.SetHeader("Authorization", token)
	}
}

// bearer prefers a caller-supplied Authorization header over the configured
// API key.
func (c *Client) bearer(ctx context.Context) string {
	if token := llm.AuthTokenFromContext(ctx); token != "" {
		return token
	}
	if c.apiKey != "" {
		return "Bearer " + c.apiKey
	}
	return ""
}

// Ensure interface compliance.
var _ llm.Provider = (*Client)(nil)
