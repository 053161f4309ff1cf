package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/domain/chat"
)

// Chat is the database schema for articulation conversations. The transcript
// and provisional card are stored as JSONB and validated against the typed
// domain shapes on every conversion.
type Chat struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID string `gorm:"type:varchar(64);index:idx_chat_user;not null"`

	Transcript                 datatypes.JSON `gorm:"type:jsonb;not null"`
	ProvisionalCard            datatypes.JSON `gorm:"type:jsonb"`
	ProvisionalCanonicalCardID *uint

	ArticulatorModel         string `gorm:"type:varchar(64);not null"`
	ArticulatorPromptHash    string `gorm:"type:varchar(64);not null"`
	ArticulatorPromptVersion string `gorm:"type:varchar(64);not null"`
}

// TableName specifies the table name for Chat.
func (Chat) TableName() string {
	return "chats"
}

// EtoD converts the database entity to the domain model, validating the
// transcript union on the way out.
func (c *Chat) EtoD() (*chat.Chat, error) {
	var transcript chat.Transcript
	if len(c.Transcript) > 0 {
		if err := json.Unmarshal(c.Transcript, &transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}

	var provisional *card.Data
	if len(c.ProvisionalCard) > 0 {
		provisional = &card.Data{}
		if err := json.Unmarshal(c.ProvisionalCard, provisional); err != nil {
			return nil, fmt.Errorf("decode provisional card: %w", err)
		}
	}

	return &chat.Chat{
		ID:                         c.ID,
		UserID:                     c.UserID,
		Transcript:                 transcript,
		ProvisionalCard:            provisional,
		ProvisionalCanonicalCardID: c.ProvisionalCanonicalCardID,
		ArticulatorModel:           c.ArticulatorModel,
		ArticulatorPromptHash:      c.ArticulatorPromptHash,
		ArticulatorPromptVersion:   c.ArticulatorPromptVersion,
		CreatedAt:                  c.CreatedAt,
		UpdatedAt:                  c.UpdatedAt,
	}, nil
}

// NewSchemaChat creates a database entity from the domain model, validating
// the transcript before it is written.
func NewSchemaChat(c *chat.Chat) (*Chat, error) {
	if err := c.Transcript.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}
	transcript, err := json.Marshal(c.Transcript)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	provisional, err := c.ProvisionalCardJSON()
	if err != nil {
		return nil, fmt.Errorf("encode provisional card: %w", err)
	}

	return &Chat{
		ID:                         c.ID,
		UserID:                     c.UserID,
		Transcript:                 transcript,
		ProvisionalCard:            provisional,
		ProvisionalCanonicalCardID: c.ProvisionalCanonicalCardID,
		ArticulatorModel:           c.ArticulatorModel,
		ArticulatorPromptHash:      c.ArticulatorPromptHash,
		ArticulatorPromptVersion:   c.ArticulatorPromptVersion,
	}, nil
}
