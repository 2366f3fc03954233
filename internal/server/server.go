package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/config"
	"parley/internal/handler"
	"parley/internal/middleware"
	"parley/internal/transport/httpdto"
	"parley/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	db         *gorm.DB
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Blocks        *handler.BlockHandler
	WebSocket     *WebSocketHandler
}

func New(cfg *config.Config, db *gorm.DB, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		db:     db,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	auth := middleware.AuthMiddleware(s.config.JWTSecret)

	v1 := s.engine.Group("/api/v1", auth)
	{
		conversations := v1.Group("/conversations")
		{
			conversations.POST("", handlers.Conversations.Create)
			conversations.GET("", handlers.Conversations.List)
			conversations.GET("/:id", handlers.Conversations.Get)
			conversations.POST("/:id/participants", handlers.Conversations.AddParticipant)
			conversations.DELETE("/:id/participants/:userId", handlers.Conversations.RemoveParticipant)
			conversations.GET("/:id/messages", handlers.Messages.List)
			conversations.GET("/:id/messages/catchup", handlers.Messages.CatchUp)
			conversations.POST("/:id/read", handlers.Conversations.MarkRead)
			conversations.GET("/:id/unread", handlers.Conversations.UnreadCount)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("", handlers.Messages.Send)
			messages.GET("/search", handlers.Messages.Search)
			messages.GET("/:id", handlers.Messages.Get)
			messages.PATCH("/:id", handlers.Messages.Edit)
			messages.DELETE("/:id", handlers.Messages.Delete)
			messages.POST("/:id/read", handlers.Messages.MarkRead)
			messages.GET("/:id/receipts", handlers.Messages.Receipts)
			messages.POST("/:id/reactions", handlers.Messages.AddReaction)
			messages.DELETE("/:id/reactions/:emoji", handlers.Messages.RemoveReaction)
			messages.GET("/:id/reactions", handlers.Messages.Reactions)
		}

		blocks := v1.Group("/blocks")
		{
			blocks.POST("", handlers.Blocks.Block)
			blocks.DELETE("/:userId", handlers.Blocks.Unblock)
			blocks.GET("", handlers.Blocks.List)
		}
	}

	s.engine.GET("/ws", auth, handlers.WebSocket.Handle)
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
