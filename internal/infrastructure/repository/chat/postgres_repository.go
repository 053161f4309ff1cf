package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/infrastructure/database/entities"
	"values-server/services/articulator-api/internal/infrastructure/metrics"
	"values-server/services/articulator-api/internal/utils/platformerrors"
)

// timeQuery reports a query's duration to the db metrics when it finishes.
func timeQuery(queryType string) func() {
	start := time.Now()
	return func() {
		metrics.RecordDBQuery(queryType, time.Since(start).Seconds())
	}
}

// Repository persists chats and their transcripts.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// FindByID fetches a chat by its client-supplied id.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Chat, error) {
	defer timeQuery("chat_find")()

	var entity entities.Chat
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("chat not found: %s", id),
				nil,
				"chat-find-not-found",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch chat",
			err,
			"chat-find-db-error",
		)
	}

	chat, err := entity.EtoD()
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to decode chat",
			err,
			"chat-decode-error",
		)
	}
	return chat, nil
}

// Create inserts the chat record with its initial transcript.
func (r *Repository) Create(ctx context.Context, chat *domain.Chat) error {
	defer timeQuery("chat_create")()

	entity, err := entities.NewSchemaChat(chat)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeValidation,
			"failed to encode chat",
			err,
			"chat-create-encode-error",
		)
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create chat",
			err,
			"chat-create-db-error",
		)
	}

	chat.CreatedAt = entity.CreatedAt
	chat.UpdatedAt = entity.UpdatedAt
	return nil
}

// Update rewrites the chat's transcript and provisional-card columns.
func (r *Repository) Update(ctx context.Context, chat *domain.Chat) error {
	defer timeQuery("chat_update")()

	entity, err := entities.NewSchemaChat(chat)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeValidation,
			"failed to encode chat",
			err,
			"chat-update-encode-error",
		)
	}

	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update chat",
			err,
			"chat-update-db-error",
		)
	}
	return nil
}
