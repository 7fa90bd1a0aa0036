package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/payments"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/platform/config"
	"github.com/techcycle/api/internal/platform/requestctx"
	"github.com/techcycle/api/internal/repositories"
	"github.com/techcycle/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled in NewContainer.
type Services struct {
	Users   services.UserService
	Catalog services.CatalogService
	Carts   services.CartService
	Orders  services.OrderService
	Reviews services.ReviewService
}

// Container wires repositories, services and shared platform pieces for
// runtime use. Handlers receive everything they need from here; nothing is
// reached through package-level state.
type Container struct {
	Config        config.Config
	Repositories  repositories.Registry
	Tokens        *auth.TokenService
	Authenticator *auth.Authenticator
	Services      Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	logger   *zap.Logger
	clock    func() time.Time
	events   services.OrderEventPublisher
	payments services.PaymentProcessor
}

// WithLogger attaches the logger used for service-level event logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// WithOrderEventPublisher wires the publisher that emits order lifecycle
// events. Leaving it unset disables event publishing.
func WithOrderEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = publisher
	}
}

// WithPaymentProcessor overrides the payment processor. When unset the
// container builds a payments.Manager from the configured PSP credentials.
func WithPaymentProcessor(processor services.PaymentProcessor) Option {
	return func(o *containerOptions) {
		o.payments = processor
	}
}

// NewContainer constructs the runtime dependency graph on top of the given
// repository registry.
func NewContainer(cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("di: repositories registry is required")
	}

	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	tokens, err := auth.NewTokenService(auth.TokenServiceDeps{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build token service: %w", err)
	}
	authenticator := auth.NewAuthenticator(tokens)

	processor := options.payments
	if processor == nil {
		processor, err = buildPaymentManager(cfg, options)
		if err != nil {
			return nil, err
		}
	}

	svc, err := buildServices(cfg, reg, processor, tokens, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:        cfg,
		Repositories:  reg,
		Tokens:        tokens,
		Authenticator: authenticator,
		Services:      svc,
	}, nil
}

// Close releases repository-held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildPaymentManager(cfg config.Config, options containerOptions) (*payments.Manager, error) {
	providers := make(map[domain.PaymentMethod]payments.Provider)
	if cfg.PSP.StripeAPIKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Clock:  options.clock,
			Logger: eventLogger(options.logger.Named("payments")),
		})
		if err != nil {
			return nil, fmt.Errorf("di: build stripe provider: %w", err)
		}
		providers[domain.PaymentMethodCard] = stripeProvider
	}
	manager, err := payments.NewManager(providers, options.clock)
	if err != nil {
		return nil, fmt.Errorf("di: build payment manager: %w", err)
	}
	return manager, nil
}

func buildServices(cfg config.Config, reg repositories.Registry, processor services.PaymentProcessor, tokens services.TokenIssuer, options containerOptions) (Services, error) {
	var svc Services

	users, err := services.NewUserService(services.UserServiceDeps{
		Users:    reg.Users(),
		Products: reg.Products(),
		Tokens:   tokens,
		Clock:    options.clock,
		Logger:   eventLogger(options.logger.Named("users")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build user service: %w", err)
	}
	svc.Users = users

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   reg.Products(),
		Categories: reg.Categories(),
		Clock:      options.clock,
		Currency:   cfg.Currency,
		Logger:     eventLogger(options.logger.Named("catalog")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build catalog service: %w", err)
	}
	svc.Catalog = catalog

	carts, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Clock:    options.clock,
		TTL:      cfg.Cart.TTL,
		Currency: cfg.Currency,
		Logger:   eventLogger(options.logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build cart service: %w", err)
	}
	svc.Carts = carts

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   reg.Orders(),
		Payments: processor,
		Events:   options.events,
		Currency: cfg.Currency,
		Clock:    options.clock,
		Logger:   eventLogger(options.logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build order service: %w", err)
	}
	svc.Orders = orders

	reviews, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:  reg.Reviews(),
		Products: reg.Products(),
		Orders:   reg.Orders(),
		Users:    reg.Users(),
		Clock:    options.clock,
		Logger:   eventLogger(options.logger.Named("reviews")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build review service: %w", err)
	}
	svc.Reviews = reviews

	return svc, nil
}

// eventLogger bridges service event logging onto zap, preferring the
// request-scoped logger when one is present on the context.
func eventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() && fallback != nil {
			logger = fallback
		}
		zFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zFields = append(zFields, zap.Any(key, value))
		}
		logger.Info(event, zFields...)
	}
}
