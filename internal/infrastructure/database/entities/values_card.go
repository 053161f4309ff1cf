package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"values-server/services/articulator-api/internal/domain/card"
)

// ValuesCard is the database schema for submitted cards. The embedding
// column is a pgvector vector(1536) added outside gorm's type system; it is
// read and written only through raw SQL in the card repository.
type ValuesCard struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Title                string         `gorm:"type:varchar(256);not null"`
	InstructionsShort    string         `gorm:"type:text;not null"`
	InstructionsDetailed string         `gorm:"type:text;not null"`
	EvaluationCriteria   datatypes.JSON `gorm:"type:jsonb;not null"`

	ChatID          string `gorm:"type:varchar(64);index:idx_card_chat;not null"`
	CanonicalCardID *uint  `gorm:"index:idx_card_canonical"`

	Shares []CardShare `gorm:"foreignKey:CardID"`
}

// TableName specifies the table name for ValuesCard.
func (ValuesCard) TableName() string {
	return "values_cards"
}

// CardShare records a card shared into a collection.
type CardShare struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID     string `gorm:"type:varchar(50);uniqueIndex;not null"`
	CardID       uint   `gorm:"index:idx_share_card;not null"`
	CollectionID uint   `gorm:"index:idx_share_collection;not null"`
	UserID       string `gorm:"type:varchar(64);not null"`
}

// TableName specifies the table name for CardShare.
func (CardShare) TableName() string {
	return "card_shares"
}

// EtoD converts the database entity to the domain model.
func (v *ValuesCard) EtoD() (*card.ValuesCard, error) {
	var criteria []string
	if len(v.EvaluationCriteria) > 0 {
		if err := json.Unmarshal(v.EvaluationCriteria, &criteria); err != nil {
			return nil, fmt.Errorf("decode evaluation criteria: %w", err)
		}
	}
	return &card.ValuesCard{
		ID:                   v.ID,
		Title:                v.Title,
		InstructionsShort:    v.InstructionsShort,
		InstructionsDetailed: v.InstructionsDetailed,
		EvaluationCriteria:   criteria,
		ChatID:               v.ChatID,
		CanonicalCardID:      v.CanonicalCardID,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	}, nil
}

// NewSchemaValuesCard creates a database entity from the domain model.
func NewSchemaValuesCard(c *card.ValuesCard) (*ValuesCard, error) {
	criteria, err := json.Marshal(c.EvaluationCriteria)
	if err != nil {
		return nil, fmt.Errorf("encode evaluation criteria: %w", err)
	}
	return &ValuesCard{
		ID:                   c.ID,
		Title:                c.Title,
		InstructionsShort:    c.InstructionsShort,
		InstructionsDetailed: c.InstructionsDetailed,
		EvaluationCriteria:   criteria,
		ChatID:               c.ChatID,
		CanonicalCardID:      c.CanonicalCardID,
	}, nil
}

// NewSchemaCardShare creates a share entity linked to a card.
func NewSchemaCardShare(s *card.Share, cardID uint) *CardShare {
	return &CardShare{
		PublicID:     s.PublicID,
		CardID:       cardID,
		CollectionID: s.CollectionID,
		UserID:       s.UserID,
	}
}
