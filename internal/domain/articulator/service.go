package articulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
	"values-server/services/articulator-api/internal/infrastructure/observability"
	"values-server/services/articulator-api/internal/utils/platformerrors"
)

// ErrUnknownFunction is returned when the model names a function outside the
// dispatch table. Fatal for the turn.
var ErrUnknownFunction = errors.New("unknown function call")

// EmbeddingTrigger kicks off embedding for a submitted card. Fire-and-forget:
// failures are logged by the caller and never fail the submission.
type EmbeddingTrigger interface {
	TriggerEmbed(ctx context.Context, cardID uint) error
}

// SubmissionNotifier announces submitted cards to downstream consumers
// (deduplication). Failures are logged only.
type SubmissionNotifier interface {
	NotifyCardSubmitted(ctx context.Context, submitted *card.ValuesCard) error
}

// Service runs one articulation turn to completion: it drives the streamed
// completion, intercepts function calls, executes them against the chat's
// state, and re-enters the completion service to narrate the result.
type Service struct {
	provider   llm.Provider
	chats      chat.Repository
	cards      card.Repository
	embeddings EmbeddingTrigger
	notifier   SubmissionNotifier
	cfg        *Config
	settings   Settings
	log        zerolog.Logger
}

// NewService constructs the articulator service.
func NewService(
	provider llm.Provider,
	chats chat.Repository,
	cards card.Repository,
	embeddings EmbeddingTrigger,
	notifier SubmissionNotifier,
	cfg *Config,
	settings Settings,
	log zerolog.Logger,
) *Service {
	return &Service{
		provider:   provider,
		chats:      chats,
		cards:      cards,
		embeddings: embeddings,
		notifier:   notifier,
		cfg:        cfg,
		settings:   settings,
		log:        log.With().Str("component", "articulator").Logger(),
	}
}

// Metadata exposes the audit metadata of the active prompt set.
func (s *Service) Metadata() Metadata {
	return s.cfg.Metadata()
}

// TurnParams describes one user turn.
type TurnParams struct {
	ChatID string
	UserID string

	// Messages is the caller's conversation view; the last entry is the new
	// user message. Only the last entry is appended to an existing chat's
	// transcript, which remains the source of truth.
	Messages []chat.Message

	// CollectionID, when set, shares a submitted card into that collection.
	CollectionID *uint

	// FunctionCall optionally forces a specific function on the first
	// completion call. Nil means "auto".
	FunctionCall llm.FunctionCallMode
}

// TurnResult is the outcome of a turn. Stream carries the plain response or
// the narration of an executed function; the card fields are relayed to the
// caller out of band.
type TurnResult struct {
	Stream          llm.Stream
	FunctionCall    *FunctionCall
	ArticulatedCard *card.Data
	SubmittedCard   *card.Data
}

type functionOutcome struct {
	Message         *string
	ArticulatedCard *card.Data
	SubmittedCard   *card.Data
}

// ProcessCompletion runs one turn. Transport failures from the completion
// service are returned unmodified as *llm.TransportError; execution errors
// abort the turn before the narrating follow-up call.
func (s *Service) ProcessCompletion(ctx context.Context, params TurnParams) (*TurnResult, error) {
	if len(params.Messages) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"turn requires at least one message", nil, "turn-empty-messages")
	}

	existing, messages, err := s.prepareTranscript(ctx, params)
	if err != nil {
		return nil, err
	}

	// The submit function is only offered once a card has been articulated
	// and shown; otherwise the model could submit before anything exists.
	functions := s.cfg.Prompts.Main.Functions
	if existing == nil || existing.ProvisionalCard == nil {
		functions = excludeFunction(functions, FunctionSubmitValuesCard)
	}

	fcMode := params.FunctionCall
	if fcMode == nil {
		fcMode = "auto"
	}

	temperature := 0.7
	stream, err := s.provider.CreateChatCompletionStream(ctx, llm.ChatCompletionRequest{
		Model:        s.cfg.Model,
		Messages:     chat.Transcript(messages).ToChatMessages(),
		Temperature:  &temperature,
		Functions:    functions,
		FunctionCall: fcMode,
	})
	if err != nil {
		return nil, err
	}

	call, passthrough, err := DetectFunctionCall(stream)
	if err != nil {
		return nil, err
	}
	if call == nil {
		// Plain-text turn: hand the stream back as-is.
		return &TurnResult{Stream: passthrough}, nil
	}

	s.log.Info().Str("chat_id", params.ChatID).Str("function", call.Name).Msg("function call detected")

	// Record the call before executing it, so the transcript reflects intent
	// even if execution fails.
	callMessage := chat.Message{
		Role: chat.RoleAssistant,
		FunctionCall: &llm.FunctionCallPayload{
			Name:      call.Name,
			Arguments: call.ArgumentsJSON(),
		},
	}
	if err := s.appendServerSideMessage(ctx, params.ChatID, &messages, callMessage, nil); err != nil {
		return nil, err
	}

	fnCtx, fnSpan := observability.StartFunctionCallSpan(ctx, params.ChatID, call.Name)
	outcome, err := s.execute(fnCtx, call, &messages, params)
	if err != nil {
		observability.RecordError(fnSpan, err)
		fnSpan.End()
		return nil, err
	}
	if outcome.ArticulatedCard != nil {
		observability.AddCardEvent(fnSpan, "card.articulated", outcome.ArticulatedCard.Title)
	}
	if outcome.SubmittedCard != nil {
		observability.AddCardEvent(fnSpan, "card.submitted", outcome.SubmittedCard.Title)
	}
	fnSpan.End()

	if outcome.Message != nil {
		resultMessage := chat.Message{
			Role:    chat.RoleFunction,
			Name:    call.Name,
			Content: outcome.Message,
		}
		if err := s.appendServerSideMessage(ctx, params.ChatID, &messages, resultMessage, nil); err != nil {
			return nil, err
		}
	}

	// Narrate the function result in natural language. function_call "none"
	// prevents recursion into another call.
	narrationTemp := 0.0
	narration, err := s.provider.CreateChatCompletionStream(ctx, llm.ChatCompletionRequest{
		Model:        s.cfg.Model,
		Messages:     chat.Transcript(messages).ToChatMessages(),
		Temperature:  &narrationTemp,
		Functions:    s.cfg.Prompts.Main.Functions,
		FunctionCall: "none",
	})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Stream:          narration,
		FunctionCall:    call,
		ArticulatedCard: outcome.ArticulatedCard,
		SubmittedCard:   outcome.SubmittedCard,
	}, nil
}

// prepareTranscript loads or creates the chat and persists the caller's
// latest message before any network call, so the transcript is durable even
// if the completion call fails.
func (s *Service) prepareTranscript(ctx context.Context, params TurnParams) (*chat.Chat, []chat.Message, error) {
	existing, err := s.chats.FindByID(ctx, params.ChatID)
	if err != nil && !platformerrors.IsType(err, platformerrors.ErrorTypeNotFound) {
		return nil, nil, err
	}

	if existing != nil {
		lastMessage := params.Messages[len(params.Messages)-1]
		existing.Transcript = append(existing.Transcript, lastMessage)
		messages := make([]chat.Message, len(existing.Transcript))
		for i, m := range existing.Transcript {
			messages[i] = m.Normalize()
		}
		existing.Transcript = messages
		if err := s.chats.Update(ctx, existing); err != nil {
			return nil, nil, err
		}
		return existing, messages, nil
	}

	meta := s.cfg.Metadata()
	system := chat.Message{
		Role:    chat.RoleSystem,
		Content: llm.Text(s.cfg.MainPrompt(s.settings)),
	}
	messages := append([]chat.Message{system}, params.Messages...)

	created := &chat.Chat{
		ID:                       params.ChatID,
		UserID:                   params.UserID,
		Transcript:               messages,
		ArticulatorModel:         meta.Model,
		ArticulatorPromptHash:    meta.ContentHash,
		ArticulatorPromptVersion: meta.Name,
	}
	if err := s.chats.Create(ctx, created); err != nil {
		return nil, nil, err
	}
	return nil, messages, nil
}

// execute dispatches a detected function call. Any name outside the table is
// a protocol violation and aborts the turn.
func (s *Service) execute(ctx context.Context, call *FunctionCall, messages *[]chat.Message, params TurnParams) (*functionOutcome, error) {
	switch call.Name {
	case FunctionGuessValuesCard:
		s.log.Info().Str("chat_id", params.ChatID).Interface("arguments", call.Arguments).Msg("value guessed")
		return &functionOutcome{}, nil
	case FunctionShowValuesCard:
		return s.handleArticulateCard(ctx, params.ChatID, messages)
	case FunctionSubmitValuesCard:
		return s.handleSubmitCard(ctx, params.ChatID, params.UserID, params.CollectionID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, call.Name)
	}
}

type provisionalUpdate struct {
	Card            *card.Data
	CanonicalCardID *uint
}

// appendServerSideMessage appends to both the in-memory message list and the
// persisted transcript, optionally updating the provisional card alongside.
// The persisted transcript is re-read so the write reflects the latest state.
func (s *Service) appendServerSideMessage(ctx context.Context, chatID string, messages *[]chat.Message, message chat.Message, update *provisionalUpdate) error {
	*messages = append(*messages, message)

	record, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return err
	}
	record.Transcript = append(record.Transcript, message)
	if update != nil {
		record.ProvisionalCard = update.Card
		if update.CanonicalCardID != nil {
			record.ProvisionalCanonicalCardID = update.CanonicalCardID
		}
	}
	return s.chats.Update(ctx, record)
}

func excludeFunction(functions []llm.FunctionDefinition, name string) []llm.FunctionDefinition {
	out := make([]llm.FunctionDefinition, 0, len(functions))
	for _, f := range functions {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}
