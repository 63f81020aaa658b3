package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"preorder-svc/cache"
	"preorder-svc/config"
	"preorder-svc/handlers"
	"preorder-svc/kafka"
	"preorder-svc/ledger"
	"preorder-svc/mailer"
	"preorder-svc/middleware"
	"preorder-svc/notion"
	"preorder-svc/payment"
	"preorder-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Initialize database (confirmation ledger + audit log)
	db, err := ledger.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis (replay guard + track-order cache). Optional: the
	// ledger alone still guarantees at-most-once recording.
	rdb, err := cache.InitRedis(cfg, logger)
	if err != nil {
		logger.Warn("Redis unavailable, running without replay guard", zap.Error(err))
		rdb = nil
	}

	// Initialize Kafka producer for order_confirmed events. Optional.
	producer, err := kafka.InitProducer(cfg, logger)
	if err != nil {
		logger.Warn("Kafka unavailable, running without event publishing", zap.Error(err))
		producer = nil
	} else {
		defer producer.Close()
	}

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("preorder-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// External service clients
	var provider payment.Provider
	switch cfg.Provider {
	case config.ProviderStripe:
		provider = payment.NewStripeClient(cfg.StripeSecretKey, logger)
	default:
		provider = payment.NewFlutterwaveClient(cfg.FlutterwaveSecretKey, logger)
	}
	store := notion.NewClient(cfg.NotionSecret, cfg.NotionDatabaseID, logger)
	notifier := mailer.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom, logger)

	var guard workflow.ReplayGuard
	var orderCache handlers.ProjectionCache
	if rdb != nil {
		guard = cache.NewGuard(rdb)
		orderCache = cache.NewOrderCache(rdb)
	}

	confirmer := workflow.NewConfirmer(
		provider,
		store,
		notifier,
		ledger.New(db, logger),
		guard,
		producer,
		cfg.KafkaTopic,
		cfg.FlutterwaveWebhookSecret,
		logger,
	)

	paymentHandler := handlers.NewPaymentHandler(provider, confirmer, cfg, logger)
	webhookHandler := handlers.NewWebhookHandler(confirmer, cfg, logger)
	trackHandler := handlers.NewTrackHandler(store, orderCache, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("preorder-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/create-payment", paymentHandler.CreatePayment)
		api.GET("/verify-payment", paymentHandler.VerifyPayment)
		api.POST("/webhooks/payment", webhookHandler.HandleWebhook)
		api.POST("/track-order", trackHandler.TrackOrder)
	}

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Start REST server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Preorder Service started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
