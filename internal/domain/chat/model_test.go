package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
)

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		message chat.Message
		wantErr bool
	}{
		{
			name:    "user message with content",
			message: chat.Message{Role: chat.RoleUser, Content: llm.Text("hello")},
		},
		{
			name:    "assistant message with nil content",
			message: chat.Message{Role: chat.RoleAssistant},
		},
		{
			name: "assistant function call",
			message: chat.Message{
				Role:         chat.RoleAssistant,
				FunctionCall: &llm.FunctionCallPayload{Name: "show_values_card", Arguments: "{}"},
			},
		},
		{
			name: "function result with name",
			message: chat.Message{
				Role:    chat.RoleFunction,
				Name:    "show_values_card",
				Content: llm.Text("{}"),
			},
		},
		{
			name:    "unknown role",
			message: chat.Message{Role: "narrator", Content: llm.Text("hello")},
			wantErr: true,
		},
		{
			name: "function call without name",
			message: chat.Message{
				Role:         chat.RoleAssistant,
				FunctionCall: &llm.FunctionCallPayload{Arguments: "{}"},
			},
			wantErr: true,
		},
		{
			name:    "function result without name",
			message: chat.Message{Role: chat.RoleFunction, Content: llm.Text("{}")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessage_NormalizeDefaultsArguments(t *testing.T) {
	message := chat.Message{
		Role:         chat.RoleAssistant,
		FunctionCall: &llm.FunctionCallPayload{Name: "guess_values_card"},
	}

	normalized := message.Normalize()
	require.NotNil(t, normalized.FunctionCall)
	assert.Equal(t, "{}", normalized.FunctionCall.Arguments)

	// The original message is left untouched.
	assert.Empty(t, message.FunctionCall.Arguments)
}

func TestTranscript_Validate(t *testing.T) {
	valid := chat.Transcript{
		{Role: chat.RoleSystem, Content: llm.Text("prompt")},
		{Role: chat.RoleUser, Content: llm.Text("hello")},
	}
	assert.NoError(t, valid.Validate())

	invalid := chat.Transcript{
		{Role: chat.RoleUser, Content: llm.Text("hello")},
		{Role: "narrator", Content: llm.Text("meanwhile")},
	}
	err := invalid.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 1")
}

func TestTranscript_ToChatMessages(t *testing.T) {
	transcript := chat.Transcript{
		{Role: chat.RoleUser, Content: llm.Text("hello")},
		{
			Role:         chat.RoleAssistant,
			FunctionCall: &llm.FunctionCallPayload{Name: "show_values_card"},
		},
	}

	wire := transcript.ToChatMessages()
	require.Len(t, wire, 2)
	assert.Equal(t, "user", wire[0].Role)
	require.NotNil(t, wire[1].FunctionCall)
	assert.Equal(t, "{}", wire[1].FunctionCall.Arguments)
}
