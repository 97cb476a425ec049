package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	// Internal packages
	"github.com/rentalku/relayd/internal/adapter/cache"
	"github.com/rentalku/relayd/internal/adapter/http/fiber/handlers"
	"github.com/rentalku/relayd/internal/adapter/http/fiber/middleware"
	"github.com/rentalku/relayd/internal/adapter/queue"
	"github.com/rentalku/relayd/internal/adapter/storage/postgres"
	wsAdapter "github.com/rentalku/relayd/internal/adapter/websocket"
	"github.com/rentalku/relayd/internal/observability/telemetry"
	"github.com/rentalku/relayd/internal/ports"
	"github.com/rentalku/relayd/internal/service/billing"
	"github.com/rentalku/relayd/internal/service/channel"
	"github.com/rentalku/relayd/internal/service/report"
	"github.com/rentalku/relayd/internal/service/timer"
	"github.com/rentalku/relayd/pkg/config"
)

const (
	serviceName = "relayd"
)

func main() {
	// 1. Initialize Logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// 2. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting relayd",
		zap.String("service", serviceName),
		zap.String("version", cfg.App.Version),
		zap.Int("channels", cfg.Channels.Count),
	)

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.Telemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, cfg.App.Version, cfg.Telemetry.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Initialize PostgreSQL Connection Pool
	db, err := postgres.NewConnection(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	// Run migrations
	if err := postgres.RunMigrations(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// 5. Initialize Cache (Redis, with in-memory fallback)
	var statusCache ports.Cache
	statusCache, err = cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to local cache", zap.Error(err))
		statusCache = cache.NewLocalCache(time.Minute, logger)
	}
	defer statusCache.Close()

	// 6. Initialize Message Queue
	messageQueue, err := queue.New(cfg.Queue.Driver, cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	defer messageQueue.Close()

	// 7. Initialize Repositories
	usageLedger := postgres.NewUsageLedgerRepository(db, logger)
	summarySink := postgres.NewSummarySinkRepository(db, logger)

	// 8. Initialize WebSocket Hub (presentation notifier)
	wsHub := wsAdapter.NewHub()
	go wsHub.Run()

	// 9. Initialize Services (Business Logic Layer)
	calculator := billing.NewCalculator(&billing.Config{
		UnitMinutes:       cfg.Billing.UnitMinutes,
		RoundingIncrement: cfg.Billing.RoundingIncrement,
		Currency:          cfg.Billing.Currency,
	})
	channelService := channel.NewService(cfg.Channels.Count, cfg.Channels.ChannelPrices(), statusCache, messageQueue, wsHub, logger)
	timerEngine := timer.NewEngine(channelService, calculator, usageLedger, messageQueue, wsHub, logger)
	channelService.AttachTimers(timerEngine, timerEngine.HasActiveTimer)
	aggregator := report.NewAggregator(usageLedger, summarySink, calculator, messageQueue, cfg.Channels.Count, logger)

	// 10. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(config.CORSConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
	}))
	app.Use(middleware.CircuitBreaker(logger))

	// Health Check Endpoints
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.Status(503).SendString("Database not ready")
		}
		if err := statusCache.Ping(); err != nil {
			return c.Status(503).SendString("Cache not ready")
		}
		return c.SendString("Ready")
	})

	// Metrics endpoint for Prometheus
	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})

	// Legacy device poll endpoint
	statusHandler := handlers.NewStatusHandler(channelService, statusCache, logger)
	app.Get("/status", statusHandler.Get)

	// API v1 Routes
	v1 := app.Group("/api/v1")

	// Channel routes
	channelHandler := handlers.NewChannelHandler(channelService, logger)
	v1.Get("/channels", channelHandler.List)
	v1.Get("/channels/:id", channelHandler.Get)
	v1.Patch("/channels/:id/state", channelHandler.UpdateState)

	// Timer routes
	timerHandler := handlers.NewTimerHandler(timerEngine, channelService, logger)
	v1.Post("/channels/:id/timer", timerHandler.Arm)
	v1.Delete("/channels/:id/timer", timerHandler.Cancel)
	v1.Get("/channels/:id/timer", timerHandler.Remaining)

	// Report routes
	reportHandler := handlers.NewReportHandler(aggregator, logger)
	v1.Post("/reports/monthly", reportHandler.RunMonthly)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Real-time updates WebSocket
	app.Get("/ws/updates", websocket.New(func(c *websocket.Conn) {
		wsHub.AddClient(c)
	}))

	// 11. Start Background Workers
	go startBackgroundWorkers(messageQueue, logger)

	// 12. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 13. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// startBackgroundWorkers subscribes to the core's own events for audit
// logging; external consumers attach to the same subjects.
func startBackgroundWorkers(mq queue.MessageQueue, logger *zap.Logger) {
	logger.Info("Starting background workers")

	if err := mq.Subscribe(queue.SubjectSessionExpired, func(msg []byte) error {
		logger.Info("Session expired", zap.ByteString("event", msg))
		return nil
	}); err != nil {
		logger.Warn("Failed to subscribe to expiry events", zap.Error(err))
	}

	if err := mq.Subscribe(queue.SubjectReportCompleted, func(msg []byte) error {
		logger.Info("Report completed", zap.ByteString("event", msg))
		return nil
	}); err != nil {
		logger.Warn("Failed to subscribe to report events", zap.Error(err))
	}
}
