package card

import "time"

// Data is the user-facing values card artifact: a title plus the instructions
// and evaluation criteria that describe the value. It exists in two lifecycle
// states: provisional (attached to a chat, mutable, replaced on each
// re-articulation) and submitted (persisted as an immutable ValuesCard).
type Data struct {
	Title                string   `json:"title"`
	InstructionsShort    string   `json:"instructions_short"`
	InstructionsDetailed string   `json:"instructions_detailed"`
	EvaluationCriteria   []string `json:"evaluation_criteria"`
}

// ValuesCard is a submitted, immutable card record.
type ValuesCard struct {
	ID uint

	Title                string
	InstructionsShort    string
	InstructionsDetailed string
	EvaluationCriteria   []string

	// ChatID back-references the chat that produced the card.
	ChatID string

	// CanonicalCardID links to the deduplicated representative, when known
	// at submission time.
	CanonicalCardID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Data returns the card's user-facing fields.
func (c *ValuesCard) Data() Data {
	return Data{
		Title:                c.Title,
		InstructionsShort:    c.InstructionsShort,
		InstructionsDetailed: c.InstructionsDetailed,
		EvaluationCriteria:   c.EvaluationCriteria,
	}
}

// NewValuesCard builds a submitted card from draft data.
func NewValuesCard(data Data, chatID string, canonicalCardID *uint) *ValuesCard {
	return &ValuesCard{
		Title:                data.Title,
		InstructionsShort:    data.InstructionsShort,
		InstructionsDetailed: data.InstructionsDetailed,
		EvaluationCriteria:   data.EvaluationCriteria,
		ChatID:               chatID,
		CanonicalCardID:      canonicalCardID,
	}
}

// Share records that a submitted card was shared into a collection.
type Share struct {
	ID           uint
	PublicID     string
	CardID       uint
	CollectionID uint
	UserID       string
	CreatedAt    time.Time
}
