package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/domain/articulator"
	chatDomain "values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
	"values-server/services/articulator-api/internal/infrastructure/metrics"
	"values-server/services/articulator-api/internal/infrastructure/observability"
	"values-server/services/articulator-api/internal/interfaces/httpserver/dto"
	"values-server/services/articulator-api/internal/utils/platformerrors"
)

// ChatHandler exposes the articulation turn endpoint and transcript reads.
type ChatHandler struct {
	service *articulator.Service
	chats   chatDomain.Repository
	log     zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service *articulator.Service, chats chatDomain.Repository, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		chats:   chats,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// Get handles GET /v1/chats/:chat_id
// @Summary Get a chat with its transcript
// @Description Returns the persisted transcript and provisional card. Clients use this to recover state after a failed turn.
// @Tags Chats
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} dto.ChatPayload
// @Failure 404 {object} map[string]string
// @Router /v1/chats/{chat_id} [get]
func (h *ChatHandler) Get(c *gin.Context) {
	chat, err := h.chats.FindByID(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.FromChat(chat))
}

// CreateCompletion handles POST /v1/chats/:chat_id/completions
// @Summary Run one articulation turn
// @Description Streams the assistant response for one user turn. Function calls made by the model are executed server-side and narrated back; articulated and submitted cards are relayed as SSE events.
// @Tags Chats
// @Accept json
// @Produce text/event-stream
// @Param chat_id path string true "Chat ID"
// @Param request body dto.ChatCompletionRequest true "Turn request"
// @Success 200 {string} string "SSE stream"
// @Failure 400 {object} map[string]string
// @Router /v1/chats/{chat_id}/completions [post]
func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	start := time.Now()

	var req dto.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages, err := req.ToDomain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fcMode, err := req.FunctionCallMode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		userID = "guest"
	}

	chatID := c.Param("chat_id")

	authCtx := llm.ContextWithAuthToken(c.Request.Context(), strings.TrimSpace(c.GetHeader("Authorization")))
	ctx, span := observability.StartTurnSpan(authCtx, chatID, userID, "")

	result, err := h.service.ProcessCompletion(ctx, articulator.TurnParams{
		ChatID:       chatID,
		UserID:       userID,
		Messages:     messages,
		CollectionID: req.CollectionID,
		FunctionCall: fcMode,
	})
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		metrics.RecordTurn("error")
		h.writeError(c, err)
		return
	}
	defer span.End()
	defer result.Stream.Close()

	if result.FunctionCall != nil {
		metrics.RecordFunctionCall(result.FunctionCall.Name, "completed")
	}

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	emitter := newSSEEmitter(writer, flusher, h.log)

	if result.ArticulatedCard != nil {
		emitter.sendEvent("card.articulated", dto.FromCardData(*result.ArticulatedCard))
	}
	if result.SubmittedCard != nil {
		emitter.sendEvent("card.submitted", dto.FromCardData(*result.SubmittedCard))
		metrics.RecordCardSubmitted()
	}

	for {
		chunk, err := result.Stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			h.log.Error().Err(err).Str("chat_id", chatID).Msg("stream read failed")
			emitter.sendEvent("completion.error", map[string]string{"message": err.Error()})
			metrics.RecordTurn("error")
			return
		}
		if chunk == "" {
			continue
		}
		emitter.sendEvent("completion.delta", map[string]string{"delta": chunk})
	}

	emitter.sendEvent("completion.done", gin.H{"chat_id": chatID})
	metrics.RecordTurn("completed")
	metrics.RecordCompletion("turn", time.Since(start).Seconds())
}

// writeError maps turn failures to HTTP responses. Upstream transport errors
// are passed through with their original status and body.
func (h *ChatHandler) writeError(c *gin.Context, err error) {
	var transportErr *llm.TransportError
	if errors.As(err, &transportErr) {
		contentType := "application/json"
		c.Data(transportErr.StatusCode, contentType, transportErr.Body)
		return
	}

	if errors.Is(err, articulator.ErrUnknownFunction) || errors.Is(err, articulator.ErrMalformedCall) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	status := platformerrors.HTTPStatus(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

type sseEmitter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	log     zerolog.Logger
	mu      sync.Mutex
}

func newSSEEmitter(w http.ResponseWriter, flusher http.Flusher, log zerolog.Logger) *sseEmitter {
	return &sseEmitter{
		writer:  w,
		flusher: flusher,
		log:     log,
	}
}

func (e *sseEmitter) sendEvent(name string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error().Err(err).Msg("marshal SSE payload")
		return
	}

	fmt.Fprintf(e.writer, "event: %s\n", name)
	fmt.Fprintf(e.writer, "data: %s\n\n", data)
	e.flusher.Flush()
}
