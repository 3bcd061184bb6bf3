package main

import (
	"time"

	"github.com/xaenox/tempo-bot/internal/assistant"
	"github.com/xaenox/tempo-bot/internal/bot"
	"github.com/xaenox/tempo-bot/internal/classifier"
	"github.com/xaenox/tempo-bot/internal/session"
	"github.com/xaenox/tempo-bot/internal/storage"
	"github.com/xaenox/tempo-bot/internal/threads"
	"github.com/xaenox/tempo-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Remote assistant API and the run driver shared by both stages
	client := assistant.NewOpenAIClient(cfg.OpenAI.APIKey)
	driver := assistant.NewDriver(
		client,
		cfg.Session.PollAttempts,
		time.Duration(cfg.Session.PollIntervalSecs)*time.Second,
		logger,
	)

	// Thread directory shared by the analyzer and the primary assistant
	directory := threads.NewDirectory(store, client, logger)

	// Pre-processing stage against the analyzer assistant
	clf := classifier.New(directory, driver, store, cfg.Assistants.AnalyzerID, logger)

	// Telegram transport, reading conversation history from the store
	b, err := bot.New(cfg.Telegram.Token, store, cfg.Assistants.PrimaryID, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Session orchestrator delivering through the bot
	orchestrator := session.NewOrchestrator(
		session.Config{
			Debounce:           time.Duration(cfg.Session.DebounceSeconds) * time.Second,
			CuePad:             time.Duration(cfg.Session.CuePadSeconds) * time.Second,
			DefaultCue:         time.Duration(cfg.Session.DefaultCueSeconds) * time.Second,
			PrimaryAssistantID: cfg.Assistants.PrimaryID,
		},
		directory,
		driver,
		clf,
		store,
		b,
		logger,
	)

	// Start the bot
	if err := b.Start(orchestrator); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
