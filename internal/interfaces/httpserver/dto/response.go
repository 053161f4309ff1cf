package dto

import (
	"time"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/domain/chat"
)

// CardData is the user-facing values card body.
type CardData struct {
	Title                string   `json:"title"`
	InstructionsShort    string   `json:"instructions_short"`
	InstructionsDetailed string   `json:"instructions_detailed"`
	EvaluationCriteria   []string `json:"evaluation_criteria"`
}

// ValuesCardPayload is a submitted card record.
type ValuesCardPayload struct {
	ID                   uint     `json:"id"`
	Title                string   `json:"title"`
	InstructionsShort    string   `json:"instructions_short"`
	InstructionsDetailed string   `json:"instructions_detailed"`
	EvaluationCriteria   []string `json:"evaluation_criteria"`
	ChatID               string   `json:"chat_id"`
	CanonicalCardID      *uint    `json:"canonical_card_id,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

// CardListPayload wraps a card listing.
type CardListPayload struct {
	Data []ValuesCardPayload `json:"data"`
}

// FromCardData converts domain card data.
func FromCardData(data card.Data) CardData {
	return CardData{
		Title:                data.Title,
		InstructionsShort:    data.InstructionsShort,
		InstructionsDetailed: data.InstructionsDetailed,
		EvaluationCriteria:   data.EvaluationCriteria,
	}
}

// FunctionCallData is a persisted function-call descriptor.
type FunctionCallData struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MessagePayload is one transcript entry.
type MessagePayload struct {
	Role         string            `json:"role"`
	Content      *string           `json:"content"`
	Name         string            `json:"name,omitempty"`
	FunctionCall *FunctionCallData `json:"function_call,omitempty"`
}

// ChatPayload is the stored state of one articulation chat, returned so
// clients can recover the transcript after a failed turn.
type ChatPayload struct {
	ID                         string           `json:"id"`
	UserID                     string           `json:"user_id"`
	Transcript                 []MessagePayload `json:"transcript"`
	ProvisionalCard            *CardData        `json:"provisional_card,omitempty"`
	ProvisionalCanonicalCardID *uint            `json:"provisional_canonical_card_id,omitempty"`
	ArticulatorModel           string           `json:"articulator_model"`
	ArticulatorPromptHash      string           `json:"articulator_prompt_hash"`
	ArticulatorPromptVersion   string           `json:"articulator_prompt_version"`
	CreatedAt                  string           `json:"created_at"`
	UpdatedAt                  string           `json:"updated_at"`
}

// FromChat converts a domain chat.
func FromChat(c *chat.Chat) ChatPayload {
	transcript := make([]MessagePayload, len(c.Transcript))
	for i, m := range c.Transcript {
		entry := MessagePayload{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		}
		if m.FunctionCall != nil {
			entry.FunctionCall = &FunctionCallData{
				Name:      m.FunctionCall.Name,
				Arguments: m.FunctionCall.Arguments,
			}
		}
		transcript[i] = entry
	}

	payload := ChatPayload{
		ID:                         c.ID,
		UserID:                     c.UserID,
		Transcript:                 transcript,
		ProvisionalCanonicalCardID: c.ProvisionalCanonicalCardID,
		ArticulatorModel:           c.ArticulatorModel,
		ArticulatorPromptHash:      c.ArticulatorPromptHash,
		ArticulatorPromptVersion:   c.ArticulatorPromptVersion,
		CreatedAt:                  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                  c.UpdatedAt.Format(time.RFC3339),
	}
	if c.ProvisionalCard != nil {
		data := FromCardData(*c.ProvisionalCard)
		payload.ProvisionalCard = &data
	}
	return payload
}

// FromValuesCard converts a submitted domain card.
func FromValuesCard(c *card.ValuesCard) ValuesCardPayload {
	return ValuesCardPayload{
		ID:                   c.ID,
		Title:                c.Title,
		InstructionsShort:    c.InstructionsShort,
		InstructionsDetailed: c.InstructionsDetailed,
		EvaluationCriteria:   c.EvaluationCriteria,
		ChatID:               c.ChatID,
		CanonicalCardID:      c.CanonicalCardID,
		CreatedAt:            c.CreatedAt.Format(time.RFC3339),
	}
}
