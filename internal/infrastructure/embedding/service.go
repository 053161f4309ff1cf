package embedding

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/infrastructure/observability"
)

// Service embeds submitted values cards. The text fed to the model is the
// card's evaluation criteria joined by newlines.
type Service struct {
	cards  card.Repository
	client *Client
	log    zerolog.Logger
}

// NewService builds an embedding service.
func NewService(cards card.Repository, client *Client, log zerolog.Logger) *Service {
	return &Service{
		cards:  cards,
		client: client,
		log:    log.With().Str("component", "embedding-service").Logger(),
	}
}

// EmbedCard computes and stores the embedding for one card.
func (s *Service) EmbedCard(ctx context.Context, cardID uint) error {
	ctx, span := observability.StartEmbeddingSpan(ctx, cardID)
	defer span.End()

	c, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	text := strings.Join(c.EvaluationCriteria, "\n")
	vector, err := s.client.Embed(ctx, text)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	if err := s.cards.UpdateEmbedding(ctx, cardID, vector); err != nil {
		observability.RecordError(span, err)
		return err
	}

	s.log.Debug().Uint("card_id", cardID).Int("dimensions", len(vector)).Msg("card embedded")
	return nil
}
