package llmprovider_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"values-server/services/articulator-api/internal/domain/llm"
	"values-server/services/articulator-api/internal/infrastructure/llmprovider"
)

func sseServer(t *testing.T, events []string, assertReq func(*http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if assertReq != nil {
			assertReq(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range events {
			fmt.Fprintf(w, "data: %s\n\n", event)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func contentDelta(text string) string {
	return fmt.Sprintf(`{"choices": [{"delta": {"content": %q}}]}`, text)
}

func functionDelta(name, arguments string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{
				"delta": map[string]any{
					"function_call": map[string]string{
						"name":      name,
						"arguments": arguments,
					},
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func drainStream(t *testing.T, stream llm.Stream) []string {
	t.Helper()
	var chunks []string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestCreateChatCompletionStream_ContentPassthrough(t *testing.T) {
	server := sseServer(t, []string{
		contentDelta("Hel"),
		contentDelta("lo"),
		contentDelta(" there"),
	}, func(r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req llm.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
	})
	defer server.Close()

	client := llmprovider.NewClient(server.URL, "test-key")
	stream, err := client.CreateChatCompletionStream(context.Background(), llm.ChatCompletionRequest{
		Model: "gpt-4-0613",
	})
	require.NoError(t, err)
	defer stream.Close()

	chunks := drainStream(t, stream)
	assert.Equal(t, []string{"Hel", "lo", " there"}, chunks)
}

func TestCreateChatCompletionStream_FunctionCallEnvelope(t *testing.T) {
	server := sseServer(t, []string{
		functionDelta("show_values_card", ""),
		functionDelta("", `{"ti`),
		functionDelta("", `tle": "Honesty"}`),
	}, nil)
	defer server.Close()

	client := llmprovider.NewClient(server.URL, "test-key")
	stream, err := client.CreateChatCompletionStream(context.Background(), llm.ChatCompletionRequest{
		Model: "gpt-4-0613",
	})
	require.NoError(t, err)
	defer stream.Close()

	chunks := drainStream(t, stream)
	require.NotEmpty(t, chunks)

	// The very first chunk must open the function_call envelope so the
	// detector can recognize it from one read.
	assert.True(t, strings.HasPrefix(chunks[0], `{"function_call": {"name": "show_values_card"`))

	// Concatenating the chunks yields one valid envelope whose arguments
	// string decodes to the original fragments joined.
	var envelope struct {
		FunctionCall llm.FunctionCallPayload `json:"function_call"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.Join(chunks, "")), &envelope))
	assert.Equal(t, "show_values_card", envelope.FunctionCall.Name)
	assert.JSONEq(t, `{"title": "Honesty"}`, envelope.FunctionCall.Arguments)
}

func TestCreateChatCompletionStream_NonSuccessStatusIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": "rate limited"}`)
	}))
	defer server.Close()

	client := llmprovider.NewClient(server.URL, "test-key")
	_, err := client.CreateChatCompletionStream(context.Background(), llm.ChatCompletionRequest{})
	require.Error(t, err)

	var transportErr *llm.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusTooManyRequests, transportErr.StatusCode)
	assert.JSONEq(t, `{"error": "rate limited"}`, string(transportErr.Body))
}

func TestCreateChatCompletion_NonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "hi"}}]}`)
	}))
	defer server.Close()

	client := llmprovider.NewClient(server.URL, "test-key")
	resp, err := client.CreateChatCompletion(context.Background(), llm.ChatCompletionRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	require.NotNil(t, resp.Choices[0].Message.Content)
	assert.Equal(t, "hi", *resp.Choices[0].Message.Content)
}

func TestCreateChatCompletionStream_CallerTokenOverridesAPIKey(t *testing.T) {
	server := sseServer(t, []string{contentDelta("ok")}, func(r *http.Request) {
		assert.Equal(t, "Bearer caller-token", r.Header.Get("Authorization"))
	})
	defer server.Close()

	client := llmprovider.NewClient(server.URL, "configured-key")
	ctx := llm.ContextWithAuthToken(context.Background(), "Bearer caller-token")
	stream, err := client.CreateChatCompletionStream(ctx, llm.ChatCompletionRequest{})
	require.NoError(t, err)
	defer stream.Close()
	drainStream(t, stream)
}
