package main

import (
	"fmt"
	"time"

	"github.com/ravianlabs/quantum-chat/internal/bot"
	"github.com/ravianlabs/quantum-chat/internal/chat"
	"github.com/ravianlabs/quantum-chat/internal/generator"
	"github.com/ravianlabs/quantum-chat/internal/server"
	"github.com/ravianlabs/quantum-chat/internal/storage"
	"github.com/ravianlabs/quantum-chat/pkg/config"
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
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the response generator
	var gen generator.Generator
	if cfg.Generator.UseOpenAI {
		logger.Info("Using OpenAI response generator", zap.String("model", cfg.OpenAI.Model))
		gen = generator.NewOpenAIGenerator(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
	} else {
		logger.Info("Using template response generator")
		gen = generator.NewTemplateGenerator(time.Duration(cfg.Generator.DelayMs) * time.Millisecond)
	}

	// Wire the chat service
	usage := chat.NewUsageCounter(store, cfg.Chat.DailyLimit)
	events := chat.NewLogEvents(logger)
	service := chat.NewService(store, gen, usage, events)

	// Optional Telegram front end
	if cfg.Telegram.Enabled {
		b, err := bot.New(cfg.Telegram.Token, service, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		go func() {
			if err := b.Start(); err != nil {
				logger.Error("Bot error", zap.Error(err))
			}
		}()
	}

	// Start the HTTP API
	srv := server.New(service, logger)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server", zap.String("addr", addr))
	if err := srv.Run(addr); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
