package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"values-server/services/articulator-api/internal/config"
	"values-server/services/articulator-api/internal/domain/articulator"
	"values-server/services/articulator-api/internal/infrastructure/auth"
	"values-server/services/articulator-api/internal/infrastructure/database"
	"values-server/services/articulator-api/internal/infrastructure/embedding"
	"values-server/services/articulator-api/internal/infrastructure/llmprovider"
	"values-server/services/articulator-api/internal/infrastructure/logger"
	"values-server/services/articulator-api/internal/infrastructure/observability"
	"values-server/services/articulator-api/internal/infrastructure/queue"
	cardrepo "values-server/services/articulator-api/internal/infrastructure/repository/card"
	chatrepo "values-server/services/articulator-api/internal/infrastructure/repository/chat"
	"values-server/services/articulator-api/internal/interfaces/httpserver"
	"values-server/services/articulator-api/internal/webhook"
	"values-server/services/articulator-api/internal/worker"
)

// @title Articulator API
// @version 1.0
// @description Guides users through articulating their values as cards via function-call driven chat completions.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	articulatorConfigs, err := articulator.LoadConfigs(cfg.ArticulatorConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("load articulator configs")
	}
	articulatorConfig, ok := articulatorConfigs[cfg.ArticulatorConfigKey]
	if !ok {
		log.Fatal().Str("key", cfg.ArticulatorConfigKey).Msg("unknown articulator config key")
	}

	settings := articulator.Settings{
		PromptTask:       cfg.PromptTask,
		PromptSubmitStep: cfg.PromptSubmitStep,
		Timeframe:        cfg.PromptTimeframe,
		Name:             cfg.PromptName,
	}

	chatRepository := chatrepo.NewRepository(db)
	cardRepository := cardrepo.NewRepository(db)
	llmClient := llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)

	// Initialize webhook delivery towards the deduplication service
	webhookService := webhook.NewHTTPService(cfg.DedupeWebhookURL, log)

	// Initialize embedding queue; card submission wakes the workers
	taskQueue := queue.NewPostgresQueue(cardRepository, log)

	articulatorService := articulator.NewService(
		llmClient,
		chatRepository,
		cardRepository,
		taskQueue,
		webhookService,
		articulatorConfig,
		settings,
		log,
	)

	embeddingClient := embedding.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.EmbeddingModel)
	embeddingService := embedding.NewService(cardRepository, embeddingClient, log)

	workerPool := worker.NewPool(
		taskQueue,
		embeddingService,
		worker.Config{
			WorkerCount: cfg.WorkerCount,
			TaskTimeout: cfg.TaskTimeout,
		},
		log,
	)

	// Start worker pool
	workerPool.Start(ctx)
	defer func() {
		log.Info().Msg("stopping worker pool")
		workerPool.Stop()
	}()

	httpServer := httpserver.New(cfg, log, articulatorService, chatRepository, cardRepository, authValidator)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
