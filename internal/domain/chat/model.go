package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/domain/llm"
)

// Role identifies who authored a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

var validRoles = map[Role]struct{}{
	RoleSystem:    {},
	RoleUser:      {},
	RoleAssistant: {},
	RoleFunction:  {},
}

// Message is one entry of a chat transcript. Content is nil when the message
// carries a function call instead of text. Function-result messages carry the
// executed function's name in Name.
type Message struct {
	Role         Role                     `json:"role"`
	Content      *string                  `json:"content"`
	Name         string                   `json:"name,omitempty"`
	FunctionCall *llm.FunctionCallPayload `json:"function_call,omitempty"`
}

// Validate enforces the transcript union invariants at the persistence
// boundary: known role, and a non-empty function name whenever a function
// call descriptor is present.
func (m Message) Validate() error {
	if _, ok := validRoles[m.Role]; !ok {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if m.FunctionCall != nil && m.FunctionCall.Name == "" {
		return fmt.Errorf("function call message missing function name")
	}
	if m.Role == RoleFunction && m.Name == "" {
		return fmt.Errorf("function result message missing function name")
	}
	return nil
}

// Normalize keeps only the fields the completions API understands and
// defaults absent function-call arguments to an empty object literal.
func (m Message) Normalize() Message {
	out := Message{
		Role:    m.Role,
		Content: m.Content,
		Name:    m.Name,
	}
	if m.FunctionCall != nil {
		fc := *m.FunctionCall
		if fc.Arguments == "" {
			fc.Arguments = "{}"
		}
		out.FunctionCall = &fc
	}
	return out
}

// ToChatMessage converts a transcript message to the wire shape.
func (m Message) ToChatMessage() llm.ChatMessage {
	n := m.Normalize()
	return llm.ChatMessage{
		Role:         string(n.Role),
		Content:      n.Content,
		Name:         n.Name,
		FunctionCall: n.FunctionCall,
	}
}

// Transcript is the ordered message history of a chat. It is append-only
// within a turn and rewritten wholesale on update.
type Transcript []Message

// Validate checks every message in order.
func (t Transcript) Validate() error {
	for i, m := range t {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// ToChatMessages renders the transcript in the wire shape.
func (t Transcript) ToChatMessages() []llm.ChatMessage {
	out := make([]llm.ChatMessage, len(t))
	for i, m := range t {
		out[i] = m.ToChatMessage()
	}
	return out
}

// Chat is one values-articulation conversation. The chat owns its transcript
// and provisional card exclusively; a submitted card is owned by the card
// store and only back-references the chat.
type Chat struct {
	ID     string
	UserID string

	Transcript Transcript

	// ProvisionalCard is the unsubmitted draft attached to this chat. It is
	// replaced on each successful articulation. It is intentionally not
	// cleared on submission; callers mint a fresh chat id per articulation
	// session.
	ProvisionalCard *card.Data

	// ProvisionalCanonicalCardID optionally links the draft to a canonical
	// card it is expected to match after deduplication.
	ProvisionalCanonicalCardID *uint

	ArticulatorModel         string
	ArticulatorPromptHash    string
	ArticulatorPromptVersion string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProvisionalCardJSON serializes the draft card, or nil when none exists.
func (c *Chat) ProvisionalCardJSON() ([]byte, error) {
	if c.ProvisionalCard == nil {
		return nil, nil
	}
	return json.Marshal(c.ProvisionalCard)
}
