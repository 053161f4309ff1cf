package dto

import (
	"encoding/json"
	"fmt"
	"strings"

	"values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
)

// ChatCompletionRequest is the body of POST /v1/chats/{chat_id}/completions.
type ChatCompletionRequest struct {
	Messages     []Message       `json:"messages" binding:"required"`
	CollectionID *uint           `json:"collection_id,omitempty"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
}

// Message mirrors the OpenAI legacy chat message shape.
type Message struct {
	Role         string               `json:"role"`
	Content      *string              `json:"content,omitempty"`
	Name         string               `json:"name,omitempty"`
	FunctionCall *MessageFunctionCall `json:"function_call,omitempty"`
}

// MessageFunctionCall is a recorded assistant function call.
type MessageFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToDomain converts the request messages to domain messages.
func (r *ChatCompletionRequest) ToDomain() ([]chat.Message, error) {
	messages := make([]chat.Message, 0, len(r.Messages))
	for i, m := range r.Messages {
		converted := chat.Message{
			Role:    chat.Role(m.Role),
			Content: m.Content,
			Name:    m.Name,
		}
		if m.FunctionCall != nil {
			converted.FunctionCall = &llm.FunctionCallPayload{
				Name:      m.FunctionCall.Name,
				Arguments: m.FunctionCall.Arguments,
			}
		}
		converted = converted.Normalize()
		if err := converted.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, converted)
	}
	return messages, nil
}

// FunctionCallMode parses the optional function_call field: a bare string
// ("auto", "none") or an object naming a function to force.
func (r *ChatCompletionRequest) FunctionCallMode() (llm.FunctionCallMode, error) {
	if len(r.FunctionCall) == 0 {
		return nil, nil
	}

	trimmed := strings.TrimSpace(string(r.FunctionCall))
	if strings.HasPrefix(trimmed, "\"") {
		var mode string
		if err := json.Unmarshal(r.FunctionCall, &mode); err != nil {
			return nil, fmt.Errorf("invalid function_call: %w", err)
		}
		return mode, nil
	}

	var forced struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(r.FunctionCall, &forced); err != nil {
		return nil, fmt.Errorf("invalid function_call: %w", err)
	}
	if forced.Name == "" {
		return nil, fmt.Errorf("function_call object requires a name")
	}
	return llm.ForceFunction(forced.Name), nil
}
