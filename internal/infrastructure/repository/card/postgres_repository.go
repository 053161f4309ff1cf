package card

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	domain "values-server/services/articulator-api/internal/domain/card"
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

// Repository persists submitted values cards and their shares.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a card repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// Create inserts the card and, when share is non-nil, the share row in one
// transaction.
func (r *Repository) Create(ctx context.Context, card *domain.ValuesCard, share *domain.Share) error {
	defer timeQuery("card_create")()

	entity, err := entities.NewSchemaValuesCard(card)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeValidation,
			"failed to encode card",
			err,
			"card-create-encode-error",
		)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entity).Error; err != nil {
			return err
		}
		if share != nil {
			shareEntity := entities.NewSchemaCardShare(share, entity.ID)
			if err := tx.Create(shareEntity).Error; err != nil {
				return err
			}
			share.ID = shareEntity.ID
			share.CardID = entity.ID
		}
		return nil
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create card",
			err,
			"card-create-db-error",
		)
	}

	card.ID = entity.ID
	card.CreatedAt = entity.CreatedAt
	card.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByID fetches a card by id.
func (r *Repository) FindByID(ctx context.Context, id uint) (*domain.ValuesCard, error) {
	defer timeQuery("card_find")()

	var entity entities.ValuesCard
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("card not found: %d", id),
				nil,
				"card-find-not-found",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch card",
			err,
			"card-find-db-error",
		)
	}
	return r.decode(ctx, &entity)
}

// FindByFilter fetches cards matching the filter criteria.
func (r *Repository) FindByFilter(ctx context.Context, filter domain.Filter, pagination *domain.Pagination) ([]*domain.ValuesCard, error) {
	defer timeQuery("card_list")()

	query := r.db.WithContext(ctx).Model(&entities.ValuesCard{})

	if filter.ChatID != nil {
		query = query.Where("chat_id = ?", *filter.ChatID)
	}
	if filter.CanonicalCardID != nil {
		query = query.Where("canonical_card_id = ?", *filter.CanonicalCardID)
	}

	if pagination != nil {
		offset := (pagination.Page - 1) * pagination.PageSize
		query = query.Offset(offset).Limit(pagination.PageSize)
	}

	var rows []entities.ValuesCard
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find cards",
			err,
			"card-filter-db-error",
		)
	}

	result := make([]*domain.ValuesCard, 0, len(rows))
	for i := range rows {
		decoded, err := r.decode(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, decoded)
	}
	return result, nil
}

// ListWithoutEmbedding returns cards whose embedding column is still NULL,
// locking the rows against concurrent embedding workers.
func (r *Repository) ListWithoutEmbedding(ctx context.Context, limit int) ([]*domain.ValuesCard, error) {
	defer timeQuery("card_unembedded_list")()

	var rows []entities.ValuesCard
	err := r.db.WithContext(ctx).
		Raw("SELECT id, created_at, updated_at, title, instructions_short, instructions_detailed, evaluation_criteria, chat_id, canonical_card_id FROM values_cards WHERE embedding IS NULL ORDER BY id ASC LIMIT ? FOR UPDATE SKIP LOCKED", limit).
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list cards without embedding",
			err,
			"card-unembedded-db-error",
		)
	}

	result := make([]*domain.ValuesCard, 0, len(rows))
	for i := range rows {
		decoded, err := r.decode(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, decoded)
	}
	return result, nil
}

// UpdateEmbedding writes the pgvector column for a card. gorm has no vector
// type, so the value is rendered as a vector literal.
func (r *Repository) UpdateEmbedding(ctx context.Context, id uint, embedding []float32) error {
	defer timeQuery("card_embedding_update")()

	result := r.db.WithContext(ctx).
		Exec("UPDATE values_cards SET embedding = ?::vector, updated_at = NOW() WHERE id = ?", vectorLiteral(embedding), id)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update embedding",
			result.Error,
			"card-embedding-db-error",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("card not found: %d", id),
			nil,
			"card-embedding-not-found",
		)
	}
	return nil
}

// CountWithoutEmbedding reports how many cards still await embedding.
func (r *Repository) CountWithoutEmbedding(ctx context.Context) (int64, error) {
	defer timeQuery("card_unembedded_count")()

	var count int64
	if err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM values_cards WHERE embedding IS NULL").
		Scan(&count).Error; err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count cards without embedding",
			err,
			"card-embedding-count-error",
		)
	}
	return count, nil
}

func (r *Repository) decode(ctx context.Context, entity *entities.ValuesCard) (*domain.ValuesCard, error) {
	decoded, err := entity.EtoD()
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to decode card",
			err,
			"card-decode-error",
		)
	}
	return decoded, nil
}

// vectorLiteral renders a float slice in pgvector's input syntax.
func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
