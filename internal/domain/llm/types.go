package llm

import (
	"context"
	"fmt"
)

// Provider defines the contract for calling the chat completions endpoint.
type Provider interface {
	CreateChatCompletion(reqCtx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	CreateChatCompletionStream(reqCtx context.Context, req ChatCompletionRequest) (Stream, error)
}

// Stream is a finite sequence of decoded text chunks from a streamed
// completion. For plain responses the chunks are assistant content tokens;
// for function-call responses they spell out the function_call JSON envelope
// in arrival order. Not restartable; Close abandons the underlying body.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// FunctionCallMode selects how the model may invoke functions. Valid values
// are "auto", "none", or a forced call built with ForceFunction.
type FunctionCallMode any

// ForceFunction builds a function_call value that forces the named function.
func ForceFunction(name string) FunctionCallMode {
	return map[string]string{"name": name}
}

// ChatCompletionRequest mirrors the OpenAI-compatible request shape, using
// the legacy functions API.
type ChatCompletionRequest struct {
	Model        string               `json:"model"`
	Messages     []ChatMessage        `json:"messages"`
	Functions    []FunctionDefinition `json:"functions,omitempty"`
	FunctionCall FunctionCallMode     `json:"function_call,omitempty"`
	Temperature  *float64             `json:"temperature,omitempty"`
	MaxTokens    *int                 `json:"max_tokens,omitempty"`
	Stream       bool                 `json:"stream"`
}

// ChatMessage represents a single message in the conversation history.
type ChatMessage struct {
	Role         string               `json:"role"`
	Content      *string              `json:"content"`
	Name         string               `json:"name,omitempty"`
	FunctionCall *FunctionCallPayload `json:"function_call,omitempty"`
}

// FunctionCallPayload carries a function invocation as serialized by the
// completions API: arguments are a JSON-encoded string, not an object.
type FunctionCallPayload struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionDefinition declares a callable function contract passed to the model.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatCompletionResponse captures the non-streaming completion payload.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *Usage                 `json:"usage,omitempty"`
}

// ChatCompletionChoice represents one completion choice.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage contains token accounting metadata.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TransportError is returned when the completions endpoint answers with a
// non-success status. The raw status and body are preserved so callers can
// relay the failed response unmodified.
type TransportError struct {
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion api error: %d %s", e.StatusCode, string(e.Body))
}

// Text returns a pointer to s, for building message content in place.
func Text(s string) *string {
	return &s
}
