package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pricebot/internal/chat"
	"pricebot/internal/config"
	"pricebot/internal/database"
	custommiddleware "pricebot/internal/middleware"
	"pricebot/internal/notify"
	"pricebot/internal/service"
	"pricebot/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client

	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// NewServer wires the chat API. db may be nil when products come from the
// backend API.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	products, err := NewProductService(cfg, logger, db)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(middleware.Recoverer)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	// Health check endpoint
	router.Get("/health", healthHandler(db, redisClient))

	// Notifications go to the log and to a per-session Redis channel
	publisher := notify.NewRedisPublisher(redisClient, notify.DefaultRedisConfig(), logger)
	notifier := notify.Fanout{notify.NewLogNotifier(logger), publisher}

	// Initialize services
	resolver := chat.NewResolver(products, products, notifier, logger, chat.WithThinkDelay(cfg.Chat.ThinkDelay))
	chatService := service.NewChatService(chat.NewStore(), resolver, publisher, logger)

	// Initialize handlers
	chatHandler := transport.NewChatHandler(chatService, logger)
	productHandler := transport.NewProductHandler(products, logger)

	// Create auth and rate limit middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	rateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "pricebot:ratelimit:chat",
		KeyFunc:           custommiddleware.SessionKey,
	}, logger)

	// Register routes
	chatHandler.RegisterRoutes(router, authMiddleware, rateLimit)
	productHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	if cfg.Chat.SessionIdle > 0 && cfg.Chat.SweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		server.stopSweeper = cancel
		server.sweeperDone = make(chan struct{})
		go func() {
			defer close(server.sweeperDone)
			service.RunSweeper(ctx, chatService, cfg.Chat.SweepInterval, cfg.Chat.SessionIdle)
		}()
	}

	return server, nil
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]interface{}{"status": "ok"}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = err.Error()
		} else {
			body["redis"] = "up"
		}

		if db != nil {
			health := db.Health()
			body["database"] = health
			if health["status"] != "up" {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.stopSweeper != nil {
		s.stopSweeper()
		<-s.sweeperDone
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis connection", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}
