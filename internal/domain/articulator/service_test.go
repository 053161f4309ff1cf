package articulator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"values-server/services/articulator-api/internal/domain/articulator"
	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
	"values-server/services/articulator-api/internal/utils/platformerrors"
)

// fakeProvider replays scripted streams and completions and records every
// request it receives.
type fakeProvider struct {
	streams        []llm.Stream
	completions    []*llm.ChatCompletionResponse
	streamErr      error
	streamRequests []llm.ChatCompletionRequest
	callRequests   []llm.ChatCompletionRequest
}

func (p *fakeProvider) CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	p.callRequests = append(p.callRequests, req)
	if len(p.completions) == 0 {
		return nil, fmt.Errorf("unexpected completion call")
	}
	resp := p.completions[0]
	p.completions = p.completions[1:]
	return resp, nil
}

func (p *fakeProvider) CreateChatCompletionStream(ctx context.Context, req llm.ChatCompletionRequest) (llm.Stream, error) {
	p.streamRequests = append(p.streamRequests, req)
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	if len(p.streams) == 0 {
		return nil, fmt.Errorf("unexpected stream call")
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	return stream, nil
}

type fakeChatRepo struct {
	chats   map[string]*chat.Chat
	updates int
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[string]*chat.Chat{}}
}

func (r *fakeChatRepo) FindByID(ctx context.Context, id string) (*chat.Chat, error) {
	record, ok := r.chats[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound, "chat not found", nil, "chat-find-not-found")
	}
	clone := *record
	clone.Transcript = append(chat.Transcript{}, record.Transcript...)
	return &clone, nil
}

func (r *fakeChatRepo) Create(ctx context.Context, c *chat.Chat) error {
	clone := *c
	r.chats[c.ID] = &clone
	return nil
}

func (r *fakeChatRepo) Update(ctx context.Context, c *chat.Chat) error {
	clone := *c
	r.chats[c.ID] = &clone
	r.updates++
	return nil
}

type fakeCardRepo struct {
	created []*card.ValuesCard
	shares  []*card.Share
	nextID  uint
	failErr error
}

func (r *fakeCardRepo) Create(ctx context.Context, c *card.ValuesCard, share *card.Share) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.nextID++
	c.ID = r.nextID
	r.created = append(r.created, c)
	if share != nil {
		share.CardID = c.ID
		r.shares = append(r.shares, share)
	}
	return nil
}

func (r *fakeCardRepo) FindByID(ctx context.Context, id uint) (*card.ValuesCard, error) {
	for _, c := range r.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
		platformerrors.ErrorTypeNotFound, "card not found", nil, "card-find-not-found")
}

func (r *fakeCardRepo) FindByFilter(ctx context.Context, filter card.Filter, pagination *card.Pagination) ([]*card.ValuesCard, error) {
	return r.created, nil
}

func (r *fakeCardRepo) ListWithoutEmbedding(ctx context.Context, limit int) ([]*card.ValuesCard, error) {
	return nil, nil
}

func (r *fakeCardRepo) CountWithoutEmbedding(ctx context.Context) (int64, error) {
	return int64(len(r.created)), nil
}

func (r *fakeCardRepo) UpdateEmbedding(ctx context.Context, id uint, embedding []float32) error {
	return nil
}

type fakeTrigger struct {
	triggered []uint
}

func (f *fakeTrigger) TriggerEmbed(ctx context.Context, cardID uint) error {
	f.triggered = append(f.triggered, cardID)
	return nil
}

type fakeNotifier struct {
	notified []*card.ValuesCard
}

func (f *fakeNotifier) NotifyCardSubmitted(ctx context.Context, submitted *card.ValuesCard) error {
	f.notified = append(f.notified, submitted)
	return nil
}

type fixture struct {
	provider *fakeProvider
	chats    *fakeChatRepo
	cards    *fakeCardRepo
	trigger  *fakeTrigger
	notifier *fakeNotifier
	service  *articulator.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{},
		chats:    newFakeChatRepo(),
		cards:    &fakeCardRepo{},
		trigger:  &fakeTrigger{},
		notifier: &fakeNotifier{},
	}
	f.service = articulator.NewService(
		f.provider,
		f.chats,
		f.cards,
		f.trigger,
		f.notifier,
		articulator.DefaultConfig(),
		articulator.Settings{
			PromptTask:       "articulate a value",
			PromptSubmitStep: "offer to submit",
			Timeframe:        "right now",
			Name:             "the user",
		},
		zerolog.Nop(),
	)
	return f
}

func userMessage(text string) chat.Message {
	return chat.Message{Role: chat.RoleUser, Content: llm.Text(text)}
}

func textStream(chunks ...string) llm.Stream {
	return &chunkStream{chunks: chunks}
}

func functionCallStream(name, argumentsJSON string) llm.Stream {
	payload, _ := json.Marshal(llm.FunctionCallPayload{Name: name, Arguments: argumentsJSON})
	raw := fmt.Sprintf(`{"function_call": %s}`, payload)
	return &chunkStream{chunks: []string{raw}}
}

func formatCardResponse(t *testing.T, response articulator.ArticulateCardResponse) *llm.ChatCompletionResponse {
	t.Helper()
	args, err := json.Marshal(response)
	require.NoError(t, err)
	return &llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{
			{
				Message: llm.ChatMessage{
					Role: string(chat.RoleAssistant),
					FunctionCall: &llm.FunctionCallPayload{
						Name:      articulator.FunctionFormatCard,
						Arguments: string(args),
					},
				},
			},
		},
	}
}

func sampleCard() card.Data {
	return card.Data{
		Title:                "Honesty",
		InstructionsShort:    "Tell the truth even when it costs.",
		InstructionsDetailed: "Attend to moments where shading the truth would be convenient.",
		EvaluationCriteria:   []string{"Discomfort that signals an omission", "The urge to soften a fact"},
	}
}

func TestProcessCompletion_RejectsEmptyMessages(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID: "chat-1",
		UserID: "user-1",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeValidation))
}

func TestProcessCompletion_NewChatPlainText(t *testing.T) {
	f := newFixture(t)
	f.provider.streams = []llm.Stream{textStream("Tell me ", "more.")}

	result, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("I quit my job to care for my mother.")},
	})
	require.NoError(t, err)
	assert.Nil(t, result.FunctionCall)
	assert.Equal(t, "Tell me more.", drain(t, result.Stream))

	record, err := f.chats.FindByID(context.Background(), "chat-1")
	require.NoError(t, err)

	// The transcript starts with the rendered system prompt.
	require.Len(t, record.Transcript, 2)
	assert.Equal(t, chat.RoleSystem, record.Transcript[0].Role)
	assert.Contains(t, *record.Transcript[0].Content, "articulate a value")
	assert.Equal(t, chat.RoleUser, record.Transcript[1].Role)

	// Prompt audit fields are stamped at creation.
	meta := f.service.Metadata()
	assert.Equal(t, meta.Model, record.ArticulatorModel)
	assert.Equal(t, meta.ContentHash, record.ArticulatorPromptHash)
	assert.Equal(t, meta.Name, record.ArticulatorPromptVersion)

	// A brand-new chat has no provisional card, so submit is not offered.
	require.Len(t, f.provider.streamRequests, 1)
	assert.Equal(t, "auto", f.provider.streamRequests[0].FunctionCall)
	require.NotNil(t, f.provider.streamRequests[0].Temperature)
	assert.InDelta(t, 0.7, *f.provider.streamRequests[0].Temperature, 0.001)
}

func TestProcessCompletion_ExistingChatAppendsOnlyLastMessage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chats.Create(context.Background(), &chat.Chat{
		ID:     "chat-1",
		UserID: "user-1",
		Transcript: chat.Transcript{
			{Role: chat.RoleSystem, Content: llm.Text("system")},
			userMessage("first turn"),
			{Role: chat.RoleAssistant, Content: llm.Text("reply")},
		},
	}))
	f.provider.streams = []llm.Stream{textStream("Go on.")}

	_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID: "chat-1",
		UserID: "user-1",
		Messages: []chat.Message{
			userMessage("first turn"),
			{Role: chat.RoleAssistant, Content: llm.Text("reply")},
			userMessage("second turn"),
		},
	})
	require.NoError(t, err)

	record, err := f.chats.FindByID(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, record.Transcript, 4)
	assert.Equal(t, "second turn", *record.Transcript[3].Content)
}

func TestProcessCompletion_SubmitGatedUntilCardExists(t *testing.T) {
	hasFunction := func(functions []llm.FunctionDefinition, name string) bool {
		for _, fn := range functions {
			if fn.Name == name {
				return true
			}
		}
		return false
	}

	t.Run("no provisional card excludes submit", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.chats.Create(context.Background(), &chat.Chat{
			ID:         "chat-1",
			UserID:     "user-1",
			Transcript: chat.Transcript{userMessage("hello")},
		}))
		f.provider.streams = []llm.Stream{textStream("ok")}

		_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
			ChatID:   "chat-1",
			UserID:   "user-1",
			Messages: []chat.Message{userMessage("hi")},
		})
		require.NoError(t, err)

		require.Len(t, f.provider.streamRequests, 1)
		assert.False(t, hasFunction(f.provider.streamRequests[0].Functions, articulator.FunctionSubmitValuesCard))
		assert.True(t, hasFunction(f.provider.streamRequests[0].Functions, articulator.FunctionShowValuesCard))
	})

	t.Run("provisional card offers submit", func(t *testing.T) {
		f := newFixture(t)
		draft := sampleCard()
		require.NoError(t, f.chats.Create(context.Background(), &chat.Chat{
			ID:              "chat-1",
			UserID:          "user-1",
			Transcript:      chat.Transcript{userMessage("hello")},
			ProvisionalCard: &draft,
		}))
		f.provider.streams = []llm.Stream{textStream("ok")}

		_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
			ChatID:   "chat-1",
			UserID:   "user-1",
			Messages: []chat.Message{userMessage("hi")},
		})
		require.NoError(t, err)

		require.Len(t, f.provider.streamRequests, 1)
		assert.True(t, hasFunction(f.provider.streamRequests[0].Functions, articulator.FunctionSubmitValuesCard))
	})
}

func TestProcessCompletion_ArticulatesCard(t *testing.T) {
	f := newFixture(t)
	articulated := sampleCard()
	f.provider.streams = []llm.Stream{
		functionCallStream(articulator.FunctionShowValuesCard, "{}"),
		textStream("Here is the card I heard."),
	}
	f.provider.completions = []*llm.ChatCompletionResponse{
		formatCardResponse(t, articulator.ArticulateCardResponse{ValuesCard: articulated}),
	}

	result, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("I think honesty matters most to me.")},
	})
	require.NoError(t, err)

	require.NotNil(t, result.FunctionCall)
	assert.Equal(t, articulator.FunctionShowValuesCard, result.FunctionCall.Name)
	require.NotNil(t, result.ArticulatedCard)
	assert.Equal(t, "Honesty", result.ArticulatedCard.Title)
	assert.Nil(t, result.SubmittedCard)
	assert.Equal(t, "Here is the card I heard.", drain(t, result.Stream))

	record, err := f.chats.FindByID(context.Background(), "chat-1")
	require.NoError(t, err)

	// system, user, assistant call, function card, function summary.
	require.Len(t, record.Transcript, 5)
	assert.Equal(t, chat.RoleAssistant, record.Transcript[2].Role)
	require.NotNil(t, record.Transcript[2].FunctionCall)
	assert.Equal(t, articulator.FunctionShowValuesCard, record.Transcript[2].FunctionCall.Name)
	assert.Equal(t, chat.RoleFunction, record.Transcript[3].Role)
	assert.Equal(t, articulator.FunctionShowValuesCard, record.Transcript[3].Name)
	assert.Equal(t, chat.RoleFunction, record.Transcript[4].Role)
	assert.Contains(t, *record.Transcript[4].Content, "Honesty")

	// The draft is attached to the chat.
	require.NotNil(t, record.ProvisionalCard)
	assert.Equal(t, "Honesty", record.ProvisionalCard.Title)

	// The articulation call is forced, non-streamed, and deterministic.
	require.Len(t, f.provider.callRequests, 1)
	articulateReq := f.provider.callRequests[0]
	require.NotNil(t, articulateReq.Temperature)
	assert.Zero(t, *articulateReq.Temperature)

	// The narration call pins function_call to "none".
	require.Len(t, f.provider.streamRequests, 2)
	assert.Equal(t, "none", f.provider.streamRequests[1].FunctionCall)
	require.NotNil(t, f.provider.streamRequests[1].Temperature)
	assert.Zero(t, *f.provider.streamRequests[1].Temperature)
}

func TestProcessCompletion_CritiqueLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	critique := "The card describes a circumstance, not a value."
	f.provider.streams = []llm.Stream{
		functionCallStream(articulator.FunctionShowValuesCard, "{}"),
		textStream("Let me ask one more thing."),
	}
	f.provider.completions = []*llm.ChatCompletionResponse{
		formatCardResponse(t, articulator.ArticulateCardResponse{
			ValuesCard: sampleCard(),
			Critique:   &critique,
		}),
	}

	result, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("It was a hard year.")},
	})
	require.NoError(t, err)
	assert.Nil(t, result.ArticulatedCard)
	assert.Nil(t, result.SubmittedCard)

	record, err := f.chats.FindByID(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Nil(t, record.ProvisionalCard)

	// system, user, assistant call, function critique summary.
	require.Len(t, record.Transcript, 4)
	assert.Equal(t, chat.RoleFunction, record.Transcript[3].Role)
	assert.Contains(t, *record.Transcript[3].Content, critique)
}

func TestProcessCompletion_SubmitsProvisionalCard(t *testing.T) {
	f := newFixture(t)
	draft := sampleCard()
	require.NoError(t, f.chats.Create(context.Background(), &chat.Chat{
		ID:     "chat-1",
		UserID: "user-1",
		Transcript: chat.Transcript{
			{Role: chat.RoleSystem, Content: llm.Text("system")},
			userMessage("show me"),
		},
		ProvisionalCard: &draft,
	}))
	f.provider.streams = []llm.Stream{
		functionCallStream(articulator.FunctionSubmitValuesCard, "{}"),
		textStream("Thank you for contributing."),
	}

	collectionID := uint(7)
	result, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:       "chat-1",
		UserID:       "user-1",
		Messages:     []chat.Message{userMessage("submit it")},
		CollectionID: &collectionID,
	})
	require.NoError(t, err)

	require.NotNil(t, result.SubmittedCard)
	assert.Equal(t, "Honesty", result.SubmittedCard.Title)

	require.Len(t, f.cards.created, 1)
	submitted := f.cards.created[0]
	assert.Equal(t, "chat-1", submitted.ChatID)
	assert.Equal(t, draft.EvaluationCriteria, submitted.EvaluationCriteria)

	// Sharing into a collection mints a share with a public id.
	require.Len(t, f.cards.shares, 1)
	assert.Equal(t, collectionID, f.cards.shares[0].CollectionID)
	assert.Equal(t, "user-1", f.cards.shares[0].UserID)
	assert.Contains(t, f.cards.shares[0].PublicID, "share_")

	// Embedding and notification fire for the new card.
	assert.Equal(t, []uint{submitted.ID}, f.trigger.triggered)
	require.Len(t, f.notifier.notified, 1)

	// The provisional card stays on the chat after submission.
	record, err := f.chats.FindByID(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.NotNil(t, record.ProvisionalCard)
}

func TestProcessCompletion_SubmitWithoutCardFails(t *testing.T) {
	f := newFixture(t)
	draft := sampleCard()
	require.NoError(t, f.chats.Create(context.Background(), &chat.Chat{
		ID:              "chat-1",
		UserID:          "user-1",
		Transcript:      chat.Transcript{userMessage("hello")},
		ProvisionalCard: &draft,
	}))

	// Remove the card between gating and execution to exercise the guard.
	f.provider.streams = []llm.Stream{
		functionCallStream(articulator.FunctionSubmitValuesCard, "{}"),
	}
	record := f.chats.chats["chat-1"]
	record.ProvisionalCard = nil

	_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("submit it")},
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeValidation))
	assert.Empty(t, f.cards.created)
}

func TestProcessCompletion_UnknownFunctionAborts(t *testing.T) {
	f := newFixture(t)
	f.provider.streams = []llm.Stream{
		functionCallStream("delete_everything", "{}"),
	}

	_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("hello")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, articulator.ErrUnknownFunction)

	// No narration call is made after a failed dispatch.
	assert.Len(t, f.provider.streamRequests, 1)
}

func TestProcessCompletion_TransportErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	transportErr := &llm.TransportError{StatusCode: 429, Body: []byte(`{"error": "rate limited"}`)}
	f.provider.streamErr = transportErr

	_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("hello")},
	})
	require.Error(t, err)

	var gotten *llm.TransportError
	require.ErrorAs(t, err, &gotten)
	assert.Equal(t, 429, gotten.StatusCode)

	// The user message is persisted even though the upstream call failed.
	record, findErr := f.chats.FindByID(context.Background(), "chat-1")
	require.NoError(t, findErr)
	assert.Equal(t, chat.RoleUser, record.Transcript[len(record.Transcript)-1].Role)
}

func TestProcessCompletion_MalformedArgumentsSkipNarration(t *testing.T) {
	f := newFixture(t)
	f.provider.streams = []llm.Stream{
		&chunkStream{chunks: []string{`{"function_call": {"name": "show_values_card", "arguments": "not json"}}`}},
	}

	_, err := f.service.ProcessCompletion(context.Background(), articulator.TurnParams{
		ChatID:   "chat-1",
		UserID:   "user-1",
		Messages: []chat.Message{userMessage("hello")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, articulator.ErrMalformedCall)
	assert.Len(t, f.provider.streamRequests, 1)
}
