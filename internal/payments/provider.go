package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/services"
)

// ErrProviderUnavailable indicates the payment backend could not be reached.
var ErrProviderUnavailable = errors.New("payments: provider unavailable")

// ErrChargeDeclined indicates the provider rejected the charge.
var ErrChargeDeclined = errors.New("payments: charge declined")

// ErrUnsupportedMethod indicates no provider handles the payment method.
var ErrUnsupportedMethod = errors.New("payments: unsupported method")

// Provider charges a single payment method family.
type Provider interface {
	Charge(ctx context.Context, charge services.PaymentCharge) (services.PaymentResult, error)
}

// Manager routes charges to the provider registered for the payment method.
// Methods without a provider settle offline and report an unpaid result.
type Manager struct {
	providers map[domain.PaymentMethod]Provider
	clock     func() time.Time
}

// NewManager constructs a Manager over per-method providers.
func NewManager(providers map[domain.PaymentMethod]Provider, clock func() time.Time) (*Manager, error) {
	if clock == nil {
		clock = time.Now
	}
	registered := make(map[domain.PaymentMethod]Provider, len(providers))
	for method, provider := range providers {
		if provider == nil {
			return nil, fmt.Errorf("payments: nil provider for method %q", method)
		}
		if !method.Valid() {
			return nil, fmt.Errorf("payments: unknown method %q", method)
		}
		registered[method] = provider
	}
	return &Manager{providers: registered, clock: clock}, nil
}

// Charge dispatches to the provider for the charge's method. PayPal, bank
// transfer and cash-on-delivery orders are settled out of band, so without a
// registered provider they produce an unpaid reference for later reconciliation.
func (m *Manager) Charge(ctx context.Context, charge services.PaymentCharge) (services.PaymentResult, error) {
	if m == nil {
		return services.PaymentResult{}, ErrProviderUnavailable
	}
	if !charge.Method.Valid() {
		return services.PaymentResult{}, ErrUnsupportedMethod
	}
	if provider, ok := m.providers[charge.Method]; ok {
		return provider.Charge(ctx, charge)
	}
	switch charge.Method {
	case domain.PaymentMethodPayPal, domain.PaymentMethodBankTransfer, domain.PaymentMethodCashOnDelivery:
		return services.PaymentResult{
			TransactionID: offlineReference(charge),
			Paid:          false,
		}, nil
	default:
		return services.PaymentResult{}, ErrUnsupportedMethod
	}
}

func offlineReference(charge services.PaymentCharge) string {
	method := strings.ToUpper(strings.ReplaceAll(string(charge.Method), "_", "-"))
	return method + "-" + strings.TrimSpace(charge.Description)
}

var _ services.PaymentProcessor = (*Manager)(nil)
