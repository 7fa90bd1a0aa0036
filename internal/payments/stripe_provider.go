package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/techcycle/api/internal/services"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	Intents  stripePaymentIntentAPI
}

// StripeProvider charges cards by creating and confirming PaymentIntents.
type StripeProvider struct {
	intents stripePaymentIntentAPI
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents: intents,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// Charge creates a confirmed PaymentIntent for the amount. The charge token is
// the Stripe payment method reference collected client-side.
func (p *StripeProvider) Charge(ctx context.Context, charge services.PaymentCharge) (services.PaymentResult, error) {
	if p == nil || p.intents == nil {
		return services.PaymentResult{}, ErrProviderUnavailable
	}
	if charge.Amount <= 0 {
		return services.PaymentResult{}, fmt.Errorf("%w: non-positive amount", ErrChargeDeclined)
	}
	token := strings.TrimSpace(charge.Token)
	if token == "" {
		return services.PaymentResult{}, fmt.Errorf("%w: missing payment token", ErrChargeDeclined)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(charge.Amount),
		Currency:      stripe.String(strings.ToLower(strings.TrimSpace(charge.Currency))),
		PaymentMethod: stripe.String(token),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(strings.TrimSpace(charge.Description)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String(string(stripe.PaymentIntentAutomaticPaymentMethodsAllowRedirectsNever)),
		},
	}
	params.Context = ctx
	if uid := strings.TrimSpace(charge.UserID); uid != "" {
		params.AddMetadata("userId", uid)
	}

	intent, err := p.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			p.logger(ctx, "stripe.card_declined", map[string]any{
				"code":   string(stripeErr.Code),
				"userId": charge.UserID,
			})
			return services.PaymentResult{}, fmt.Errorf("%w: %s", ErrChargeDeclined, stripeErr.Code)
		}
		return services.PaymentResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	result := services.PaymentResult{TransactionID: intent.ID}
	if intent.Status == stripe.PaymentIntentStatusSucceeded {
		result.Paid = true
		result.PaidAt = p.clock()
	}
	p.logger(ctx, "stripe.intent_created", map[string]any{
		"intentId": intent.ID,
		"status":   string(intent.Status),
		"amount":   charge.Amount,
	})
	return result, nil
}

var _ Provider = (*StripeProvider)(nil)
