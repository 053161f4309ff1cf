package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/webhook"
)

func sampleCard() *card.ValuesCard {
	canonical := uint(42)
	return &card.ValuesCard{
		ID:                   7,
		Title:                "Honesty",
		InstructionsShort:    "Tell the truth.",
		InstructionsDetailed: "Tell the truth even when it costs you.",
		EvaluationCriteria:   []string{"COURAGE to say hard things", "DIRECTNESS in conversation"},
		ChatID:               "chat-123",
		CanonicalCardID:      &canonical,
		CreatedAt:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifyCardSubmitted_PayloadAndHeaders(t *testing.T) {
	var received webhook.WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "card.submitted", r.Header.Get("X-Articulator-Event"))
		assert.Equal(t, "7", r.Header.Get("X-Articulator-Card-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := webhook.NewHTTPService(server.URL, zerolog.Nop())
	require.NoError(t, svc.NotifyCardSubmitted(context.Background(), sampleCard()))

	assert.Equal(t, uint(7), received.ID)
	assert.Equal(t, "card.submitted", received.Event)
	assert.Equal(t, "chat-123", received.ChatID)
	assert.Equal(t, "Honesty", received.Card.Title)
	assert.Len(t, received.Card.EvaluationCriteria, 2)
	require.NotNil(t, received.CanonicalCardID)
	assert.Equal(t, uint(42), *received.CanonicalCardID)
	assert.Equal(t, "2024-03-01T12:00:00Z", received.CreatedAt)
}

func TestNotifyCardSubmitted_EmptyURLSkipsDelivery(t *testing.T) {
	svc := webhook.NewHTTPService("", zerolog.Nop())
	assert.NoError(t, svc.NotifyCardSubmitted(context.Background(), sampleCard()))
}

func TestNotifyCardSubmitted_RetriesOnServerError(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := webhook.NewHTTPService(server.URL, zerolog.Nop())
	require.NoError(t, svc.NotifyCardSubmitted(context.Background(), sampleCard()))
	assert.Equal(t, int32(2), calls.Load())
}
