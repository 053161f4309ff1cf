package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/domain/card"
)

// PostgresQueue implements TaskQueue over the card store: a card with a NULL
// embedding is a pending task. Dequeue and Depth go through the card
// repository, which locks pending rows against concurrent workers.
type PostgresQueue struct {
	cards card.Repository
	log   zerolog.Logger
	wake  chan struct{}
}

// NewPostgresQueue creates the embedding queue over the card repository.
func NewPostgresQueue(cards card.Repository, log zerolog.Logger) *PostgresQueue {
	return &PostgresQueue{
		cards: cards,
		log:   log.With().Str("component", "postgres-queue").Logger(),
		wake:  make(chan struct{}, 1),
	}
}

var _ TaskQueue = (*PostgresQueue)(nil)

// Dequeue fetches the next unembedded card, or nil when none is pending.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*Task, error) {
	pending, err := q.cards.ListWithoutEmbedding(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("dequeue embedding task: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	next := pending[0]
	return &Task{
		CardID:    next.ID,
		Title:     next.Title,
		CreatedAt: next.CreatedAt,
	}, nil
}

// Depth returns the number of cards still awaiting an embedding.
func (q *PostgresQueue) Depth(ctx context.Context) (int64, error) {
	count, err := q.cards.CountWithoutEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("embedding queue depth: %w", err)
	}
	return count, nil
}

// Wake nudges workers without blocking; a pending signal is enough.
func (q *PostgresQueue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// WakeChan exposes the wake signal channel.
func (q *PostgresQueue) WakeChan() <-chan struct{} {
	return q.wake
}

// TriggerEmbed implements the articulator's embedding trigger: the card is
// already queued by virtue of its NULL embedding, so a wake-up suffices.
func (q *PostgresQueue) TriggerEmbed(ctx context.Context, cardID uint) error {
	q.log.Debug().Uint("card_id", cardID).Msg("embedding triggered")
	q.Wake()
	return nil
}
