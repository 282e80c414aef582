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

	"github.com/gin-gonic/gin"
	"github.com/jewelrybyluna/storefront/services/common/auth"
	apperrors "github.com/jewelrybyluna/storefront/services/common/errors"
	"github.com/jewelrybyluna/storefront/services/common/logger"
	commonmw "github.com/jewelrybyluna/storefront/services/common/middleware"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/clients"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/config"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/controllers"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/database"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/events"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/middleware"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/routes"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.JWTSecret == "" {
		zapLogger.Fatal("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := initTracing()
		if err != nil {
			zapLogger.Fatal("failed to start tracing", zap.Error(err))
		}
		defer shutdown()
		zapLogger.Info("tracing enabled (stdout exporter)")
	}

	// Redis is optional: without it there is no warm start and no checkout replay.
	var (
		snapshots   services.SnapshotStore
		idempotency services.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		repo := database.NewCartRepository(redisClient, cfg.SnapshotTTL, cfg.IdempotencyTTL)
		snapshots, idempotency = repo, repo
		zapLogger.Info("connected to redis")
	}

	publisher, err := events.New(ctx, events.Options{
		Sink:         cfg.EventSink,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
		TopicARN:     cfg.CheckoutTopicARN,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to set up event sink", zap.Error(err))
	}
	defer publisher.Close()

	gateway := clients.NewGatewayClient(cfg.UpstreamURL, cfg.UpstreamTimeout)
	coupons := services.NewCouponCatalog(services.DefaultCoupons)
	payments := services.NewPaymentCatalog(services.DefaultPaymentOptions)
	pricing := services.NewPricingEngine(cfg.ShippingCharge, coupons)

	registry := services.NewRegistry(services.Dependencies{
		NewCartAPI: func(s auth.Session) services.CartAPI {
			return clients.NewCartClient(gateway, s)
		},
		NewOrderAPI: func(s auth.Session) services.OrderAPI {
			return clients.NewOrderClient(gateway, s)
		},
		Pricing:          pricing,
		Payments:         payments,
		Opener:           services.NewDeviceAwareOpener(commonmw.ClientHintClassifier{}, commonmw.ClientWindowOpener),
		Snapshots:        snapshots,
		Idempotency:      idempotency,
		Events:           publisher,
		QuantityDebounce: cfg.QuantityDebounce,
		ToastDuration:    cfg.ToastDuration,
		LoginPath:        cfg.LoginPath,
		Logger:           zapLogger,
	}, cfg.SessionIdleTTL)
	defer registry.Close()
	go registry.Run(ctx)

	limiter := commonmw.NewRateLimiter(commonmw.PerMinute(cfg.RateLimitPerMinute), cfg.RateLimitPerMinute, 10*time.Minute)
	go limiter.Run(ctx)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(zapLogger))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(commonmw.RateLimitMiddleware(limiter))
	r.Use(commonmw.DeviceHint())
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, routes.Controllers{
		Cart:          controllers.NewCartController(registry, pricing),
		Checkout:      controllers.NewCheckoutController(registry, pricing, coupons, payments),
		Notifications: controllers.NewNotificationController(registry),
	}, middleware.AuthMiddleware([]byte(cfg.JWTSecret), cfg.LoginPath))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("storefront-bff listening", zap.String("port", cfg.Port), zap.String("upstream", cfg.UpstreamURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("shutdown error", zap.Error(err))
	}
}

func initTracing() (func(), error) {
	exporter, err := stdouttrace.New()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("storefront-bff"),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}
