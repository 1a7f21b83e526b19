package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jobnest/apiserver/config"
	"github.com/jobnest/apiserver/internal/db"
	"github.com/jobnest/apiserver/internal/handlers"
	"github.com/jobnest/apiserver/internal/matcher"
	"github.com/jobnest/apiserver/internal/metrics"
	"github.com/jobnest/apiserver/internal/mq"
	"github.com/jobnest/apiserver/internal/services"
	"github.com/jobnest/apiserver/internal/storage"
	"github.com/jobnest/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	redis      *redis.Client
	logger     *slog.Logger
}

// New wires stores, services and routes from cfg. Object storage, the
// event broker and Redis are optional and only connected when configured.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	logger := NewLogger(os.Stdout, cfg.Log)
	s := &Server{logger: logger}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.db = dbConn

	var objectStore services.ObjectStore
	resumeStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	if resumeStorage != nil {
		objectStore = resumeStorage
		logger.Info("resume storage enabled", slog.String("backend", cfg.Storage.Backend), slog.String("bucket", resumeStorage.Bucket()))
	}

	var publisher services.EventPublisher
	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("mq: %w", err)
	}
	if broker != nil {
		s.broker = broker
		publisher = mq.NewEventPublisher(broker, cfg.MQ.Channel)
		logger.Info("event publishing enabled", slog.String("backend", cfg.MQ.Backend), slog.String("channel", cfg.MQ.Channel))
	}

	var limiter *handlers.LoginLimiter
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		limiter = handlers.NewLoginLimiter(s.redis, cfg.Auth.LoginRateLimitPerHour)
	}

	jobRepo := store.NewJobRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)

	userService := services.NewUserService(userRepo, objectStore, logger)
	jobService := services.NewJobService(jobRepo, userRepo, publisher, logger)
	applicationService := services.NewApplicationService(jobRepo, userRepo, publisher, logger)
	recommendationService := services.NewRecommendationService(jobRepo, userRepo, matcher.New(cfg.Matcher), logger)

	authHandler := handlers.NewAuthHandler(userService, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, limiter)
	jobHandler := handlers.NewJobHandler(jobService, applicationService, recommendationService, userService)
	userHandler := handlers.NewUserHandler(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		middleware.Recoverer,
		metrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/jobs", func(r chi.Router) {
		handlers.JobRouter(r, jobHandler, authHandler.RequireAuth)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, authHandler.RequireAuth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes owned connections.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
