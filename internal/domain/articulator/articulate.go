package articulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
)

// ArticulateCardResponse is the format_card result: the articulated card,
// or a critique when the transcript does not yet support one.
type ArticulateCardResponse struct {
	ValuesCard card.Data `json:"values_card"`
	Critique   *string   `json:"critique,omitempty"`
}

// handleArticulateCard runs one articulation attempt against the transcript.
// A critique is not an error: it produces a follow-up prompt and leaves the
// provisional card untouched. The revise loop is driven by the model itself,
// one attempt per turn re-entry.
func (s *Service) handleArticulateCard(ctx context.Context, chatID string, messages *[]chat.Message) (*functionOutcome, error) {
	record, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	response, err := s.articulateValuesCard(ctx, *messages, record.ProvisionalCard)
	if err != nil {
		return nil, err
	}

	if response.Critique != nil && strings.TrimSpace(*response.Critique) != "" {
		message, err := s.cfg.Summarize(SummaryShowValuesCardCritique, map[string]string{
			"critique": *response.Critique,
		})
		if err != nil {
			return nil, err
		}
		return &functionOutcome{Message: &message}, nil
	}

	newCard := response.ValuesCard
	cardJSON, err := json.Marshal(newCard)
	if err != nil {
		return nil, fmt.Errorf("marshal articulated card: %w", err)
	}

	shown := chat.Message{
		Role:    chat.RoleFunction,
		Name:    FunctionShowValuesCard,
		Content: llm.Text(string(cardJSON)),
	}
	if err := s.appendServerSideMessage(ctx, chatID, messages, shown, &provisionalUpdate{Card: &newCard}); err != nil {
		return nil, err
	}

	message, err := s.cfg.Summarize(SummaryShowValuesCard, map[string]string{
		"title": newCard.Title,
	})
	if err != nil {
		return nil, err
	}
	return &functionOutcome{Message: &message, ArticulatedCard: &newCard}, nil
}

// articulateValuesCard asks the completion service to produce a card (or a
// critique) from the conversation so far. Exactly one attempt per invocation.
func (s *Service) articulateValuesCard(ctx context.Context, messages []chat.Message, previousCard *card.Data) (*ArticulateCardResponse, error) {
	transcript := linearizeTranscript(messages)
	if previousCard != nil {
		prev, err := json.Marshal(previousCard)
		if err != nil {
			return nil, fmt.Errorf("marshal previous card: %w", err)
		}
		transcript += fmt.Sprintf("Previous card: %s", prev)
	}

	temperature := 0.0
	resp, err := s.provider.CreateChatCompletion(ctx, llm.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []llm.ChatMessage{
			{Role: string(chat.RoleSystem), Content: llm.Text(s.cfg.Prompts.ShowValuesCard.Prompt)},
			{Role: string(chat.RoleUser), Content: llm.Text(transcript)},
		},
		Functions:    s.cfg.Prompts.ShowValuesCard.Functions,
		FunctionCall: llm.ForceFunction(FunctionFormatCard),
		Temperature:  &temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("articulation returned no choices")
	}
	fc := resp.Choices[0].Message.FunctionCall
	if fc == nil {
		return nil, fmt.Errorf("%w: articulation response has no function call", ErrMalformedCall)
	}

	var parsed ArticulateCardResponse
	if err := json.Unmarshal([]byte(fc.Arguments), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse format_card arguments: %v", ErrMalformedCall, err)
	}
	return &parsed, nil
}

// linearizeTranscript renders user and assistant turns as "Role: content"
// lines, the form the evaluation prompt expects.
func linearizeTranscript(messages []chat.Message) string {
	var lines []string
	for _, m := range messages {
		if m.Role != chat.RoleUser && m.Role != chat.RoleAssistant {
			continue
		}
		content := ""
		if m.Content != nil {
			content = *m.Content
		}
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(string(m.Role)), content))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
