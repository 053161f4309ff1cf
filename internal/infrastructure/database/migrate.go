package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"values-server/services/articulator-api/internal/infrastructure/database/entities"
)

// EmbeddingDimensions is the width of the card embedding vectors
// (text-embedding-ada-002).
const EmbeddingDimensions = 1536

// AutoMigrate applies schema changes for the articulator domain. The
// embedding column is added with raw SQL because gorm has no vector column
// type; Connect has already enabled the pgvector extension.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Chat{},
		&entities.ValuesCard{},
		&entities.CardShare{},
	); err != nil {
		return err
	}

	if err := db.WithContext(ctx).Exec(fmt.Sprintf(
		"ALTER TABLE values_cards ADD COLUMN IF NOT EXISTS embedding vector(%d)", EmbeddingDimensions,
	)).Error; err != nil {
		return fmt.Errorf("add embedding column: %w", err)
	}

	log.Info().Msg("database schema up to date")
	return nil
}
