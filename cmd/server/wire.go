//go:build wireinject

package main

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"values-server/services/articulator-api/internal/config"
	"values-server/services/articulator-api/internal/domain/articulator"
	cardDomain "values-server/services/articulator-api/internal/domain/card"
	chatDomain "values-server/services/articulator-api/internal/domain/chat"
	"values-server/services/articulator-api/internal/domain/llm"
	"values-server/services/articulator-api/internal/infrastructure/auth"
	"values-server/services/articulator-api/internal/infrastructure/database"
	"values-server/services/articulator-api/internal/infrastructure/llmprovider"
	"values-server/services/articulator-api/internal/infrastructure/logger"
	"values-server/services/articulator-api/internal/infrastructure/queue"
	cardrepo "values-server/services/articulator-api/internal/infrastructure/repository/card"
	chatrepo "values-server/services/articulator-api/internal/infrastructure/repository/chat"
	"values-server/services/articulator-api/internal/interfaces/httpserver"
	"values-server/services/articulator-api/internal/webhook"
)

var articulatorSet = wire.NewSet(
	chatrepo.NewRepository,
	wire.Bind(new(chatDomain.Repository), new(*chatrepo.Repository)),
	cardrepo.NewRepository,
	wire.Bind(new(cardDomain.Repository), new(*cardrepo.Repository)),
	newLLMProvider,
	wire.Bind(new(llm.Provider), new(*llmprovider.Client)),
	newTaskQueue,
	wire.Bind(new(articulator.EmbeddingTrigger), new(*queue.PostgresQueue)),
	newWebhookService,
	wire.Bind(new(articulator.SubmissionNotifier), new(*webhook.HTTPService)),
	newArticulatorConfig,
	newSettings,
	articulator.NewService,
)

// BuildApplication demonstrates how to assemble the articulator service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		newAuthValidator,
		articulatorSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

func newLLMProvider(cfg *config.Config) *llmprovider.Client {
	return llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)
}

func newTaskQueue(cards cardDomain.Repository, log zerolog.Logger) *queue.PostgresQueue {
	return queue.NewPostgresQueue(cards, log)
}

func newWebhookService(cfg *config.Config, log zerolog.Logger) *webhook.HTTPService {
	return webhook.NewHTTPService(cfg.DedupeWebhookURL, log)
}

func newArticulatorConfig(cfg *config.Config) (*articulator.Config, error) {
	configs, err := articulator.LoadConfigs(cfg.ArticulatorConfigDir)
	if err != nil {
		return nil, err
	}
	selected, ok := configs[cfg.ArticulatorConfigKey]
	if !ok {
		return nil, fmt.Errorf("unknown articulator config key: %s", cfg.ArticulatorConfigKey)
	}
	return selected, nil
}

func newSettings(cfg *config.Config) articulator.Settings {
	return articulator.Settings{
		PromptTask:       cfg.PromptTask,
		PromptSubmitStep: cfg.PromptSubmitStep,
		Timeframe:        cfg.PromptTimeframe,
		Name:             cfg.PromptName,
	}
}
