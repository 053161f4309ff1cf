package handlers

import (
	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/domain/articulator"
	domain "values-server/services/articulator-api/internal/domain/card"
	chatDomain "values-server/services/articulator-api/internal/domain/chat"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat *ChatHandler
	Card *CardHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(articulatorService *articulator.Service, chats chatDomain.Repository, cards domain.Repository, log zerolog.Logger) *Provider {
	return &Provider{
		Chat: NewChatHandler(articulatorService, chats, log),
		Card: NewCardHandler(cards, log),
	}
}
