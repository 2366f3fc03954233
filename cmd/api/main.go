package main

import (
	"log"
	"time"

	"parley/config"
	"parley/internal/events"
	"parley/internal/handler"
	parleyredis "parley/internal/redis"
	"parley/internal/repository"
	"parley/internal/server"
	"parley/internal/services"
	"parley/pkg/database"
	"parley/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	db := database.Connect(cfg)
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient, err := parleyredis.NewClient(parleyredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	bus := events.NewRedisEventBus(redisClient)
	if err := bus.Start(); err != nil {
		log.Fatalf("Failed to start event bus: %v", err)
	}
	defer bus.Stop()

	presence := parleyredis.NewPresenceStore(
		redisClient,
		time.Duration(cfg.PresenceTTLSeconds)*time.Second,
		time.Duration(cfg.TypingTTLSeconds)*time.Second,
	)

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	blockRepo := repository.NewBlockRepository(db)

	convService := services.NewConversationService(db, convRepo, msgRepo, bus, l)
	msgService := services.NewMessageService(db, msgRepo, convRepo, blockRepo, bus, l)
	ledgerService := services.NewLedgerService(msgRepo, convRepo, blockRepo, bus, l)
	blockService := services.NewBlockService(blockRepo, bus, l)

	hub := server.NewHub(bus, convService, ledgerService, presence, l)
	go hub.Run()
	defer hub.Stop()

	srv := server.New(cfg, db, l)
	srv.SetupRoutes(&server.Handlers{
		Conversations: handler.NewConversationHandler(convService, ledgerService),
		Messages:      handler.NewMessageHandler(msgService, ledgerService),
		Blocks:        handler.NewBlockHandler(blockService),
		WebSocket:     server.NewWebSocketHandler(hub, l),
	})

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
