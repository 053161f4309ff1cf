package card

import "context"

// Filter narrows card listings.
type Filter struct {
	ChatID          *string
	CanonicalCardID *uint
}

// Pagination bounds a listing query.
type Pagination struct {
	Page     int
	PageSize int
}

// Repository persists submitted values cards.
//
// Create inserts the card and, when share is non-nil, the share row in the
// same transaction. Embedding columns are managed separately: cards are
// created without an embedding and picked up by the embedding pipeline.
type Repository interface {
	Create(ctx context.Context, card *ValuesCard, share *Share) error
	FindByID(ctx context.Context, id uint) (*ValuesCard, error)
	FindByFilter(ctx context.Context, filter Filter, pagination *Pagination) ([]*ValuesCard, error)

	// ListWithoutEmbedding returns cards that still need an embedding,
	// locking them against concurrent workers.
	ListWithoutEmbedding(ctx context.Context, limit int) ([]*ValuesCard, error)

	// CountWithoutEmbedding reports how many cards still await embedding.
	CountWithoutEmbedding(ctx context.Context) (int64, error)

	// UpdateEmbedding writes the pgvector column for a card.
	UpdateEmbedding(ctx context.Context, id uint, embedding []float32) error
}
