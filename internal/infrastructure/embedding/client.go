package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client calls the embeddings endpoint of an OpenAI-compatible API.
type Client struct {
	httpClient *resty.Client
	model      string
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewClient creates an embedding client against the given base URL.
func NewClient(baseURL, apiKey, model string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		httpClient.SetAuthToken(apiKey)
	}
	return &Client{
		httpClient: httpClient,
		model:      model,
	}
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var result embeddingResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(embeddingRequest{
			Model: c.model,
			Input: []string{text},
		}).
		SetResult(&result).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding request failed: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return result.Data[0].Embedding, nil
}
