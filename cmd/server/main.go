package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arvind-99/commune/internal/api"
	"github.com/arvind-99/commune/internal/chat"
	"github.com/arvind-99/commune/internal/config"
	"github.com/arvind-99/commune/internal/db"
	"github.com/arvind-99/commune/internal/media"
	"github.com/arvind-99/commune/internal/metrics"
	"github.com/arvind-99/commune/internal/middleware"
	"github.com/arvind-99/commune/internal/observ"
	"github.com/arvind-99/commune/internal/presence"
	"github.com/arvind-99/commune/internal/repository/postgres"
	"github.com/arvind-99/commune/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Startup has no request deadline; connecting takes as long as it
	// takes.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	uploads, err := media.NewStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("open upload store: %w", err)
	}

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	postRepo := postgres.NewPostStore(pool)
	friendRepo := postgres.NewFriendStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	tracker := presence.NewTracker(rdb, logger)
	hub := ws.NewHub(collector, logger)
	chatSvc := chat.NewService(userRepo, messageRepo, hub, collector, logger)

	authHandler := api.NewAuthHandler(userRepo, uploads, cfg.JWTSecret, cfg.TokenTTL, logger)
	userHandler := api.NewUserHandler(userRepo, friendRepo, logger)
	postHandler := api.NewPostHandler(postRepo, uploads, logger)
	friendHandler := api.NewFriendHandler(friendRepo, tracker, logger)
	chatHandler := api.NewChatHandler(chatSvc, logger)
	wsHandler := ws.NewHandler(hub, chatSvc, tracker, cfg.JWTSecret, collector, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Public surface: health for load balancers, metrics for scraping,
	// uploads because media links are shared, auth because tokens come
	// from it.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	srv.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	srv.GET("/uploads/:filename", postHandler.ServeUpload)
	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)

	// The websocket endpoint resolves its own token: an invalid one
	// yields an unauthenticated no-op connection rather than a 401.
	srv.GET("/v1/ws", wsHandler.Serve)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	v1.GET("/me", userHandler.Me)
	v1.GET("/users", userHandler.Search)
	v1.POST("/posts", postHandler.Create)
	v1.GET("/posts", postHandler.List)
	v1.POST("/friends", friendHandler.SendRequest)
	v1.GET("/friends", friendHandler.List)
	v1.GET("/friends/requests", friendHandler.ListPending)
	v1.POST("/friends/:id/accept", friendHandler.Accept)
	v1.DELETE("/friends/:id", friendHandler.Delete)
	v1.GET("/chat/history", chatHandler.History)

	logger.Info("starting commune",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
