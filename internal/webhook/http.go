package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/domain/card"
	"values-server/services/articulator-api/internal/infrastructure/metrics"
	"values-server/services/articulator-api/internal/utils/retry"
)

// HTTPService implements webhook notifications via HTTP POST.
type HTTPService struct {
	httpClient *http.Client
	webhookURL string
	log        zerolog.Logger
	retrier    *retry.Executor
}

// NewHTTPService creates a new HTTP-based webhook service. An empty URL
// disables delivery.
func NewHTTPService(webhookURL string, log zerolog.Logger) *HTTPService {
	return &HTTPService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		webhookURL: webhookURL,
		log:        log.With().Str("component", "webhook").Logger(),
		retrier: retry.NewExecutor(retry.Policy{
			MaxRetries:      3,
			InitialDelay:    2 * time.Second,
			MaxDelay:        15 * time.Second,
			BackoffStrategy: retry.BackoffExponential,
			JitterFactor:    0.2,
		}),
	}
}

var _ Service = (*HTTPService)(nil)

// NotifyCardSubmitted sends a webhook notification when a card is submitted.
func (s *HTTPService) NotifyCardSubmitted(ctx context.Context, submitted *card.ValuesCard) error {
	if s.webhookURL == "" {
		s.log.Debug().Uint("card_id", submitted.ID).Msg("no webhook URL configured, skipping notification")
		return nil
	}

	payload := WebhookPayload{
		ID:     submitted.ID,
		Event:  "card.submitted",
		ChatID: submitted.ChatID,
		Card: CardPayload{
			Title:                submitted.Title,
			InstructionsShort:    submitted.InstructionsShort,
			InstructionsDetailed: submitted.InstructionsDetailed,
			EvaluationCriteria:   submitted.EvaluationCriteria,
		},
		CanonicalCardID: submitted.CanonicalCardID,
		CreatedAt:       submitted.CreatedAt.Format(time.RFC3339),
	}

	return s.sendWebhook(ctx, payload)
}

func (s *HTTPService) sendWebhook(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	cardID := strconv.FormatUint(uint64(payload.ID), 10)

	start := time.Now()
	err = s.retrier.Execute(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			metrics.RecordWebhookRetry(payload.Event)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "articulator-api/1.0")
		req.Header.Set("X-Articulator-Event", payload.Event)
		req.Header.Set("X-Articulator-Card-ID", cardID)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("url", s.webhookURL).Int("attempt", attempt).Msg("webhook delivery failed")
			return fmt.Errorf("send webhook: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("url", s.webhookURL).Int("status", resp.StatusCode).Str("card_id", cardID).Msg("webhook delivered successfully")
			return nil
		}

		s.log.Warn().Int("status", resp.StatusCode).Str("url", s.webhookURL).Int("attempt", attempt).Msg("webhook delivery failed")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	})

	status := "delivered"
	if err != nil {
		status = "failed"
	}
	metrics.RecordWebhookDelivery(payload.Event, status, time.Since(start).Seconds())

	return err
}
