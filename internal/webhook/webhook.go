package webhook

import (
	"context"

	"values-server/services/articulator-api/internal/domain/card"
)

// Service announces card lifecycle events to a configured endpoint. The
// primary consumer is the deduplication service, which clusters newly
// submitted cards against canonical ones.
type Service interface {
	// NotifyCardSubmitted sends a webhook notification when a card is
	// submitted from a chat.
	NotifyCardSubmitted(ctx context.Context, submitted *card.ValuesCard) error
}

// CardPayload is the card body included in webhook notifications.
type CardPayload struct {
	Title                string   `json:"title"`
	InstructionsShort    string   `json:"instructions_short"`
	InstructionsDetailed string   `json:"instructions_detailed"`
	EvaluationCriteria   []string `json:"evaluation_criteria"`
}

// WebhookPayload is the structure sent to webhook URLs.
type WebhookPayload struct {
	ID              uint        `json:"id"`
	Event           string      `json:"event"` // "card.submitted"
	ChatID          string      `json:"chat_id"`
	Card            CardPayload `json:"card"`
	CanonicalCardID *uint       `json:"canonical_card_id,omitempty"`
	CreatedAt       string      `json:"created_at"`
}
