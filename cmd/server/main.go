package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/playforge/api/internal/anthropic"
	"github.com/playforge/api/internal/config"
	"github.com/playforge/api/internal/database"
	"github.com/playforge/api/internal/eventbus"
	"github.com/playforge/api/internal/handlers"
	"github.com/playforge/api/internal/middleware"
	"github.com/playforge/api/internal/synthesis"
	"github.com/playforge/api/internal/telemetry"

	_ "github.com/playforge/api/docs" // Swagger docs
)

// @title PlayForge API
// @version 0.1.0
// @description Turns a short game idea into a single playable HTML document.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("PlayForge API starting...",
		zap.String("version", "0.1.0"),
		zap.String("environment", cfg.Environment),
	)

	shutdownTelemetry, err := telemetry.InitTracer(ctx, "playforge-api", cfg.OTLPEndpoint)
	if err != nil {
		// collector might be down; tracing is optional
		logger.Error("failed to initialize telemetry", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTelemetry(ctx); err != nil {
				logger.Error("failed to shutdown telemetry", zap.Error(err))
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	var (
		limiter middleware.Limiter
		pinger  handlers.Pinger
	)
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewPerMinuteLimiter(cfg.RateLimitPerMinute)
	}
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis, rate limiting in memory", zap.Error(err))
		} else {
			defer rdb.Close()
			if limiter != nil {
				limiter = middleware.NewRedisLimiter(rdb.Client(), cfg.RateLimitPerMinute)
			}
			pinger = rdb
			logger.Info("connected to redis")
		}
	}

	var events *eventbus.Publisher
	if cfg.NATSURL != "" {
		events, err = eventbus.Connect(cfg.NATSURL)
		if err != nil {
			logger.Error("failed to connect to NATS, events disabled", zap.Error(err))
		} else {
			defer events.Close()
			logger.Info("connected to NATS")
		}
	}

	client := anthropic.NewClient(cfg.Anthropic, &http.Client{})
	if !client.Configured() {
		logger.Warn("ANTHROPIC_API_KEY not set, every request uses the local generator")
	}
	service := synthesis.NewService(client, logger, metrics)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	healthHandler := handlers.NewHealthHandler(pinger, events, client.Configured(), client.Model())
	router.GET("/health", healthHandler.Health)
	router.GET("/health/deep", healthHandler.DeepHealth)

	generationHandler := handlers.NewGenerationHandler(service, events, cfg.RequestTimeout, logger)
	rateLimit := middleware.RateLimitMiddleware(limiter, logger, metrics)

	router.POST("/api/generate-game", rateLimit, generationHandler.GenerateGame)
	v1 := router.Group("/api/v1")
	v1.Use(rateLimit)
	{
		v1.POST("/generate-game", generationHandler.GenerateGame)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}
