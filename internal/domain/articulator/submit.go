package articulator

import (
	"context"

	"github.com/google/uuid"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/utils/platformerrors"
)

// handleSubmitCard finalizes the chat's provisional card into an immutable
// record. The dispatch loop only offers submit once a provisional card
// exists, so a missing card here is a protocol violation.
func (s *Service) handleSubmitCard(ctx context.Context, chatID, userID string, collectionID *uint) (*functionOutcome, error) {
	record, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if record.ProvisionalCard == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"no provisional card to submit", nil, "submit-no-provisional-card")
	}

	data := *record.ProvisionalCard
	message, err := s.submitValuesCard(ctx, data, chatID, userID, collectionID, record.ProvisionalCanonicalCardID)
	if err != nil {
		return nil, err
	}

	return &functionOutcome{Message: &message, SubmittedCard: &data}, nil
}

// submitValuesCard persists the card (and its share, in the same
// transaction) and triggers the embedding pipeline. Embedding and
// notification failures do not roll back card creation.
func (s *Service) submitValuesCard(ctx context.Context, data card.Data, chatID, userID string, collectionID, canonicalCardID *uint) (string, error) {
	submitted := card.NewValuesCard(data, chatID, canonicalCardID)

	var share *card.Share
	if collectionID != nil {
		share = &card.Share{
			PublicID:     "share_" + uuid.NewString(),
			CollectionID: *collectionID,
			UserID:       userID,
		}
	}

	if err := s.cards.Create(ctx, submitted, share); err != nil {
		return "", err
	}

	s.log.Info().Uint("card_id", submitted.ID).Str("chat_id", chatID).Str("title", data.Title).Msg("values card submitted")

	if err := s.embeddings.TriggerEmbed(ctx, submitted.ID); err != nil {
		s.log.Error().Err(err).Uint("card_id", submitted.ID).Msg("trigger embedding")
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyCardSubmitted(ctx, submitted); err != nil {
			s.log.Error().Err(err).Uint("card_id", submitted.ID).Msg("notify card submitted")
		}
	}

	return s.cfg.Summarize(SummarySubmitValuesCard, map[string]string{"title": data.Title})
}
