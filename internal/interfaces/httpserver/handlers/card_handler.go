package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	domain "values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/interfaces/httpserver/dto"
	"values-server/services/articulator-api/internal/utils/platformerrors"
)

// CardHandler exposes read access to submitted values cards.
type CardHandler struct {
	cards domain.Repository
	log   zerolog.Logger
}

// NewCardHandler constructs the handler.
func NewCardHandler(cards domain.Repository, log zerolog.Logger) *CardHandler {
	return &CardHandler{
		cards: cards,
		log:   log.With().Str("handler", "card").Logger(),
	}
}

// Get handles GET /v1/cards/:card_id
// @Summary Get a submitted card by ID
// @Tags Cards
// @Produce json
// @Param card_id path int true "Card ID"
// @Success 200 {object} dto.ValuesCardPayload
// @Failure 404 {object} map[string]string
// @Router /v1/cards/{card_id} [get]
func (h *CardHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("card_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}

	card, err := h.cards.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.FromValuesCard(card))
}

// List handles GET /v1/cards
// @Summary List submitted cards
// @Tags Cards
// @Produce json
// @Param chat_id query string false "Filter by chat ID"
// @Param canonical_card_id query int false "Filter by canonical card ID"
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.CardListPayload
// @Router /v1/cards [get]
func (h *CardHandler) List(c *gin.Context) {
	var filter domain.Filter

	if chatID := c.Query("chat_id"); chatID != "" {
		filter.ChatID = &chatID
	}
	if raw := c.Query("canonical_card_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid canonical_card_id"})
			return
		}
		canonical := uint(id)
		filter.CanonicalCardID = &canonical
	}

	pagination := &domain.Pagination{Page: 1, PageSize: 50}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		pagination.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		pagination.PageSize = size
	}

	cards, err := h.cards.FindByFilter(c.Request.Context(), filter, pagination)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	payload := dto.CardListPayload{Data: make([]dto.ValuesCardPayload, 0, len(cards))}
	for _, card := range cards {
		payload.Data = append(payload.Data, dto.FromValuesCard(card))
	}
	c.JSON(http.StatusOK, payload)
}
