package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/analytics"
	"github.com/GoSwapGuard/swapguard/internal/config"
	"github.com/GoSwapGuard/swapguard/internal/handler"
	"github.com/GoSwapGuard/swapguard/internal/market"
	"github.com/GoSwapGuard/swapguard/internal/middleware"
	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/poller"
	"github.com/GoSwapGuard/swapguard/internal/recovery"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/GoSwapGuard/swapguard/internal/risk"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/GoSwapGuard/swapguard/internal/validate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Persistence
	// Heuristic state (Redis > Memory)
	var kv repository.KVStore
	if cfg.Redis.Addr != "" {
		redisStore, err := repository.NewRedisStore(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			kv = redisStore
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if kv == nil {
		kv = repository.NewMemoryStore()
	}

	// Durable records (Postgres > none)
	var pendingStore recovery.PendingStore
	var eventSink analytics.DurableEventSink
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			pendingStore = repository.NewPostgresPendingRepo(db)
			eventRepo := repository.NewPostgresEventRepo(db)
			eventSink = eventRepo

			// Retention sweep for the durable event log.
			go func() {
				ticker := time.NewTicker(time.Duration(cfg.Database.CleanupIntervalMinutes) * time.Minute)
				defer ticker.Stop()
				retention := time.Duration(cfg.Database.EventRetentionDays) * 24 * time.Hour
				for range ticker.C {
					if err := eventRepo.Cleanup(context.Background(), retention); err != nil {
						logger.Warn("event retention cleanup failed", "error", err)
					}
				}
			}()
		} else {
			logger.Error("⚠️ Failed to connect to DB, pending operations will not survive restarts", "error", err)
		}
	}
	if pendingStore == nil {
		pendingStore = recovery.NewMemoryPendingStore()
	}

	// 3. Initialize Core Services
	scorer := risk.NewScorer(cfg.Risk.ReferenceFeeTier, cfg.Risk.MaxRouteImpact)
	advisor := risk.NewAdvisor(cfg.Mev.Enabled, model.MevLevel(cfg.Mev.Level))
	validator := validate.NewValidator(kv, cfg.Validation)
	health := poller.NewAdaptivePoller()
	aggregator := analytics.NewAggregator(kv, eventSink, cfg.Analytics.EventLogCap)

	tracker := recovery.NewPendingTracker(
		pendingStore,
		nil, // confirmation source is wired per deployment
		time.Duration(cfg.Recovery.PendingExpiryMinutes)*time.Minute,
		time.Duration(cfg.Recovery.SweepIntervalMinutes)*time.Minute,
	)
	tracker.Start()

	monitor := analytics.NewHealthMonitor(aggregator, cfg.Analytics.HealthURL,
		time.Duration(cfg.Analytics.HealthIntervalSeconds)*time.Second)
	monitor.Start()

	var feed *market.QuoteFeed
	if cfg.Feed.URL != "" {
		feed = market.NewQuoteFeed(cfg.Feed.URL, cfg.Feed.Pairs)
		feed.Start()
	}

	registry := service.NewClientRegistry(cfg)
	guardSvc := service.NewGuardService(cfg, scorer, advisor, validator, health, tracker, aggregator, feed)

	// 4. Initialize Handlers
	swapHandler := handler.NewSwapHandler(guardSvc)
	mevHandler := handler.NewMevHandler(guardSvc)
	analyticsHandler := handler.NewAnalyticsHandler(guardSvc, monitor)
	recoveryHandler := handler.NewRecoveryHandler(guardSvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "swapguard"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, registry))
	v1.Use(middleware.RateLimitMiddleware(registry))
	{
		v1.POST("/analyze", swapHandler.Analyze)
		v1.POST("/validate", swapHandler.Validate)
		v1.GET("/ratelimit", swapHandler.RateLimit)
		v1.GET("/mev", mevHandler.Get)
		v1.PUT("/mev", mevHandler.SetLevel)
		v1.GET("/analytics", analyticsHandler.Summary)
		v1.GET("/health/backend", analyticsHandler.BackendHealth)
		v1.GET("/pending", recoveryHandler.List)
		v1.POST("/pending/:id/recover", recoveryHandler.Recover)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 SwapGuard started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if feed != nil {
		feed.Stop()
	}
	monitor.Stop()
	tracker.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
