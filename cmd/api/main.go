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

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/techcycle/api/internal/di"
	"github.com/techcycle/api/internal/handlers"
	"github.com/techcycle/api/internal/platform/config"
	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/platform/jobs"
	"github.com/techcycle/api/internal/platform/observability"
	"github.com/techcycle/api/internal/platform/requestctx"
	firestoreRepo "github.com/techcycle/api/internal/repositories/firestore"
	"github.com/techcycle/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = requestctx.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("configuration incomplete", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	publisher, pubsubClient, err := buildOrderEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}
	if publisher == nil {
		logger.Info("order event publishing disabled; no events project configured")
	}

	containerOpts := []di.Option{di.WithLogger(logger)}
	if publisher != nil {
		containerOpts = append(containerOpts, di.WithOrderEventPublisher(publisher))
	}
	container, err := di.NewContainer(cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build dependency container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	authHandlers := handlers.NewAuthHandlers(container.Authenticator, container.Services.Users)
	productHandlers := handlers.NewProductHandlers(container.Authenticator, container.Services.Catalog, container.Services.Reviews)
	categoryHandlers := handlers.NewCategoryHandlers(container.Authenticator, container.Services.Catalog)
	cartHandlers := handlers.NewCartHandlers(container.Authenticator, container.Services.Carts)
	orderHandlers := handlers.NewOrderHandlers(container.Authenticator, container.Services.Orders)
	reviewHandlers := handlers.NewReviewHandlers(container.Authenticator, container.Services.Reviews)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			iter := firestoreClient.Collections(ctx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}
	if limiter := handlers.NewRateLimiter(
		cfg.RateLimits.DefaultPerMinute,
		time.Now,
		handlers.WithAuthenticatedBudget(cfg.RateLimits.AuthenticatedPerMinute),
	); limiter != nil {
		middlewares = append(middlewares, limiter.Middleware())
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("techcycle api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildOrderEventPublisher wires the Pub/Sub topic for order lifecycle events.
// Returns a nil publisher when no events project is configured.
func buildOrderEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, *pubsub.Client, error) {
	if cfg.Events.ProjectID == "" {
		return nil, nil, nil
	}
	if cfg.Events.EmulatorHost != "" {
		if err := os.Setenv("PUBSUB_EMULATOR_HOST", cfg.Events.EmulatorHost); err != nil {
			return nil, nil, fmt.Errorf("set pubsub emulator host: %w", err)
		}
	}

	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}

	publisher, err := jobs.NewPubSubOrderEventPublisher(client.Topic(cfg.Events.OrderTopic))
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("order event publisher: %w", err)
	}
	return publisher, client, nil
}
