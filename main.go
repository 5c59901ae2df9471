package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yashrajoria/tomeshelf/common/auth"
	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/common/logger"
	"github.com/yashrajoria/tomeshelf/common/middleware"
	"github.com/yashrajoria/tomeshelf/config"
	"github.com/yashrajoria/tomeshelf/controllers"
	"github.com/yashrajoria/tomeshelf/database"
	awspkg "github.com/yashrajoria/tomeshelf/pkg/aws"
	"github.com/yashrajoria/tomeshelf/repository"
	"github.com/yashrajoria/tomeshelf/routes"
	"github.com/yashrajoria/tomeshelf/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "tomeshelf-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	zl := logger.Initialize(cfg.AppEnv)
	defer func() { _ = zl.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- AWS setup ---
	var awsCfg sdkaws.Config
	awsReady := false
	if cfg.AWSUseSecrets || cfg.CloudWatchEnabled || cfg.OrderSNSTopicARN != "" {
		awsCfg, err = awspkg.LoadAWSConfig(ctx)
		if err != nil {
			if cfg.AWSUseSecrets {
				zl.Fatal("Failed to load AWS config", zap.Error(err))
			}
			zl.Warn("AWS config unavailable, SNS and CloudWatch disabled", zap.Error(err))
		} else {
			awsReady = true
		}
	}

	if cfg.AWSUseSecrets {
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			zl.Fatal("Failed to load secrets", zap.Error(err))
		}
		if err := cfg.Validate(); err != nil {
			zl.Fatal("Config validation failed", zap.Error(err))
		}
	}

	if awsReady && cfg.CloudWatchEnabled {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			zl.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		} else {
			zl = logger.InitializeWithWriter(cfg.AppEnv, cwLogs)
		}
	}

	metrics := awspkg.Disabled()
	if awsReady && cfg.CloudWatchEnabled {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
	}

	var sns awspkg.SNSPublisher
	if awsReady && cfg.OrderSNSTopicARN != "" {
		sns = awspkg.NewSNSClient(awsCfg)
	}

	// --- Database ---
	mongoClient, db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		zl.Fatal("DB connection failed", zap.Error(err))
	}

	cartRepo := repository.NewMongoCartRepository(db)
	orderRepo := repository.NewMongoOrderRepository(db)
	if err := cartRepo.EnsureIndexes(ctx); err != nil {
		zl.Fatal("Cart index creation failed", zap.Error(err))
	}
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		zl.Fatal("Order index creation failed", zap.Error(err))
	}
	bookRepo := repository.NewMongoBookRepository(db)
	userRepo := repository.NewMongoUserRepository(db)

	var tx database.Transactor = database.SequentialTransactor{}
	if cfg.MongoTransactions {
		tx = database.NewMongoTransactor(mongoClient)
		zl.Info("MongoDB transactions enabled")
	}

	// --- Redis (optional) ---
	var redisClient *redis.Client
	var idem repository.IdempotencyStore
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zl.Warn("Redis unavailable, Idempotency-Key support disabled", zap.Error(err))
		} else {
			idem = repository.NewRedisIdempotencyStore(redisClient, "")
		}
	}

	// --- Dependency injection ---
	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, zl)
	events := services.NewOrderEventPublisher(sns, cfg.OrderSNSTopicARN, zl)

	cartService := services.NewCartService(cartRepo, bookRepo, metrics, zl)
	orderService := services.NewOrderService(orderRepo, bookRepo, userRepo, events, metrics, zl)
	checkoutService := services.NewCheckoutService(orderService, cartService, userRepo, gateway, tx, idem, services.CheckoutConfig{
		Currency:       cfg.StripeCurrency,
		SuccessURL:     cfg.PaymentSuccessURL,
		CancelURL:      cfg.PaymentCancelURL,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}, metrics, zl)

	controllers.RegisterValidation()
	handlers := routes.Handlers{
		Cart:     controllers.NewCartController(cartService, zl),
		Orders:   controllers.NewOrderController(orderService, zl),
		Checkout: controllers.NewCheckoutController(checkoutService, zl),
	}

	// --- HTTP router ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter(rate.Limit(20), 40, 10*time.Minute)
	go limiter.Cleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(zl))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(limiter))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())

	checks := map[string]routes.HealthCheck{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	routes.Register(r, handlers, middleware.AuthMiddleware(verifier, userRepo, cfg.TrustGatewayHeaders), checks)

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("TomeShelf API started", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Initiating graceful shutdown...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zl.Error("Redis close error", zap.Error(err))
		}
	}
	if err := database.Close(mongoClient); err != nil {
		zl.Error("Database close error", zap.Error(err))
	}

	zl.Info("TomeShelf API stopped gracefully")
}
