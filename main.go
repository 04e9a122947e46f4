package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hardline-backend/common/auth"
	apperrors "hardline-backend/common/errors"
	"hardline-backend/common/logger"
	commonmw "hardline-backend/common/middleware"
	"hardline-backend/config"
	"hardline-backend/controllers"
	"hardline-backend/database"
	"hardline-backend/models"
	awspkg "hardline-backend/pkg/aws"
	"hardline-backend/realtime"
	"hardline-backend/repository"
	"hardline-backend/routes"
	"hardline-backend/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "hardline-backend"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	awsCfg, awsErr := awspkg.LoadAWSConfig(rootCtx)

	var cwWriter io.Writer
	if cfg.CloudWatchEnabled && awsErr == nil {
		cw, err := awspkg.NewCloudWatchLogsClient(rootCtx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs unavailable, logging locally: %v", err)
		} else {
			cwWriter = cw
			defer cw.Close() //nolint:errcheck
		}
	}

	zapLogger, err := logger.Initialize(cfg.AppEnv, cwWriter)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if awsErr != nil {
		zapLogger.Warn("AWS config unavailable, SNS/SQS and metrics disabled", zap.Error(awsErr))
	}

	db, err := database.ConnectPostgres(rootCtx, cfg.DSN(), database.DefaultPoolConfig(), zapLogger,
		&models.Profile{}, &models.Order{}, &models.OrderItem{}, &models.Notification{}, &models.ChatMessage{},
	)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	var metrics *awspkg.MetricsClient
	if awsErr == nil {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	hub := realtime.NewHub(64, zapLogger)
	events := newEventPublisher(rootCtx, cfg, awsCfg, awsErr, hub, zapLogger)

	// Repositories
	orderRepo := repository.NewGormOrderRepository(db)
	profileRepo := repository.NewGormProfileRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)
	chatRepo := repository.NewGormChatRepository(db)
	cartRepo := repository.NewCartRepository(redisClient, cfg.CartTTL)

	// Services
	stripeService := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	notificationService := services.NewNotificationService(notificationRepo, zapLogger)
	cartService := services.NewCartService(cartRepo,
		repository.NewRedisIdempotencyStore(redisClient, repository.CartIdempotencyPrefix), zapLogger)
	checkoutService := services.NewCheckoutService(stripeService, cfg.StripeCurrency, metrics, zapLogger)
	webhookService := services.NewWebhookService(orderRepo, profileRepo, notificationService, events,
		repository.NewRedisIdempotencyStore(redisClient, repository.WebhookIdempotencyPrefix), metrics, zapLogger)
	backoff := services.DefaultBackoff()
	backoff.Attempts = cfg.ReconcileAttempts
	backoff.BaseDelay = cfg.ReconcileBaseDelay
	backoff.MaxDelay = cfg.ReconcileMaxDelay
	backoff.MaxWait = cfg.ReconcileMaxWait
	reconcileService := services.NewReconcileService(orderRepo, cartService, backoff, metrics, zapLogger)
	orderService := services.NewOrderService(orderRepo, profileRepo, notificationService, events, cfg.StrictTransitions, metrics, zapLogger)
	chatService := services.NewChatService(chatRepo, orderRepo, notificationService, events, zapLogger)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		commonmw.RequestLogger(zapLogger, "/health"),
		commonmw.SecurityHeaders(),
		commonmw.CORSMiddleware(cfg.AllowedOrigins),
		commonmw.RateLimitMiddleware(rootCtx, cfg.RateLimitPerMinute, cfg.RateLimitBurst, "/api/stripe/webhook", "/health"),
		commonmw.MetricsMiddleware(metrics, serviceName),
		apperrors.ErrorMiddleware(),
	)

	origins := controllers.NewOriginPolicy(cfg.FrontendURL, cfg.AllowedOrigins)
	routes.RegisterRoutes(r, routes.Controllers{
		Cart:          controllers.NewCartController(cartService, checkoutService, origins, zapLogger),
		Checkout:      controllers.NewCheckoutController(checkoutService, reconcileService, origins, zapLogger),
		Webhook:       controllers.NewWebhookController(stripeService, webhookService, zapLogger),
		Orders:        controllers.NewOrderController(orderService, zapLogger),
		Notifications: controllers.NewNotificationController(notificationService, zapLogger),
		Chat:          controllers.NewChatController(chatService, zapLogger),
		Streams:       controllers.NewStreamController(hub, chatService, zapLogger),
	}, auth.NewTokenParser(cfg.JWTSecret), cfg.RequestTimeout)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Server started", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	<-quit
	zapLogger.Info("Shutting down server...")

	// Ends the SQS bridge and lets open event streams finish.
	stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}

// newEventPublisher fans realtime events out through SNS when a topic and
// queue are configured, with an SQS bridge feeding this instance's hub.
// Otherwise events go straight to the hub.
func newEventPublisher(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, awsErr error, hub *realtime.Hub, logger *zap.Logger) realtime.Publisher {
	if !cfg.EventsBridgeEnabled() || awsErr != nil {
		logger.Info("Realtime events delivered in-process")
		return realtime.NewLocalPublisher(hub)
	}

	bridge := realtime.NewSQSBridge(awspkg.NewSQSConsumer(awsCfg, cfg.OrderEventsQueueURL, logger), hub, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			logger.Error("Realtime SQS bridge stopped", zap.Error(err))
		}
	}()

	logger.Info("Realtime events fanned out through SNS",
		zap.String("topic_arn", cfg.OrderEventsTopicARN),
		zap.String("queue_url", cfg.OrderEventsQueueURL),
	)
	return realtime.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.OrderEventsTopicARN)
}
