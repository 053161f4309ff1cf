package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"values-server/services/articulator-api/internal/infrastructure/embedding"
	"values-server/services/articulator-api/internal/infrastructure/metrics"
	"values-server/services/articulator-api/internal/infrastructure/queue"
)

// Worker embeds submitted cards pulled from the queue.
type Worker struct {
	id          int
	queue       queue.TaskQueue
	embedder    *embedding.Service
	taskTimeout time.Duration
	log         zerolog.Logger
	stopChan    chan struct{}
}

// NewWorker creates a new embedding worker.
func NewWorker(
	id int,
	taskQueue queue.TaskQueue,
	embedder *embedding.Service,
	taskTimeout time.Duration,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		id:          id,
		queue:       taskQueue,
		embedder:    embedder,
		taskTimeout: taskTimeout,
		log:         log.With().Int("worker_id", id).Str("component", "worker").Logger(),
		stopChan:    make(chan struct{}),
	}
}

// Start polls the queue until the context is cancelled or Stop is called.
// A wake signal short-circuits the poll interval so freshly submitted cards
// are embedded promptly.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Msg("worker started")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			w.drainQueue(ctx)
		case <-w.queue.WakeChan():
			w.drainQueue(ctx)
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.stopChan)
}

// drainQueue processes tasks until the queue is empty.
func (w *Worker) drainQueue(ctx context.Context) {
	for {
		if !w.processNextTask(ctx) {
			return
		}
	}
}

func (w *Worker) processNextTask(ctx context.Context) bool {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to dequeue task")
		return false
	}

	if task == nil {
		return false
	}

	w.log.Info().
		Uint("card_id", task.CardID).
		Str("title", task.Title).
		Msg("embedding card")

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	if err := w.embedder.EmbedCard(taskCtx, task.CardID); err != nil {
		// The card stays in the queue and is retried on the next poll.
		w.log.Error().Err(err).Uint("card_id", task.CardID).Msg("embedding failed")
		metrics.RecordEmbeddingJob("failed")
		return false
	}

	w.log.Info().Uint("card_id", task.CardID).Msg("card embedded")
	metrics.RecordEmbeddingJob("completed")
	return true
}
