package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: order repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderUnavailable indicates the backend could not fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderForbidden indicates the requester does not own the order and is not an admin.
var ErrOrderForbidden = errors.New("order service: forbidden")

// ErrOrderNoItems indicates checkout was attempted with no line items.
var ErrOrderNoItems = errors.New("order service: no line items")

// ErrOrderInsufficientStock indicates a line exceeds the available stock.
var ErrOrderInsufficientStock = errors.New("order service: insufficient stock")

// ErrOrderInvalidTransition indicates the requested status change is not permitted.
var ErrOrderInvalidTransition = errors.New("order service: invalid transition")

// ErrOrderPaymentFailed indicates the payment provider declined the charge.
var ErrOrderPaymentFailed = errors.New("order service: payment failed")

// Order lifecycle event names published on each transition.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
	OrderEventCancelled     = "order.cancelled"
)

// OrderServiceDeps wires repositories, payments and events for order operations.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    PaymentProcessor
	Events      OrderEventPublisher
	Currency    string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	payments PaymentProcessor
	events   OrderEventPublisher
	currency string
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "EUR"
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		payments: deps.Payments,
		events:   deps.Events,
		currency: currency,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    newID,
		logger:   logger,
	}, nil
}

// CreateOrder places an order from the client-supplied line items and pricing
// breakdown. Stock is validated and decremented, the order stored and the
// buyer's cart cleared atomically; a failure on any line leaves everything
// untouched.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return domain.Order{}, err
	}
	if !cmd.PaymentMethod.Valid() {
		return domain.Order{}, ErrOrderInvalidInput
	}
	if len(cmd.Items) == 0 {
		return domain.Order{}, ErrOrderNoItems
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, line := range cmd.Items {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" || line.Quantity <= 0 || line.UnitPrice < 0 {
			return domain.Order{}, ErrOrderInvalidInput
		}
		items = append(items, domain.OrderItem{
			ProductID: productID,
			Name:      strings.TrimSpace(line.Name),
			ImageURL:  strings.TrimSpace(line.ImageURL),
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	if !cmd.Pricing.Consistent() || !cmd.Pricing.MatchesItems(items) {
		return domain.Order{}, fmt.Errorf("%w: pricing breakdown does not add up", ErrOrderInvalidInput)
	}

	now := s.now()
	order := domain.Order{
		ID:              s.newID(),
		OrderNumber:     "ORD-" + s.newID(),
		UserID:          uid,
		Status:          domain.OrderStatusPending,
		Currency:        s.currency,
		Items:           items,
		Totals:          cmd.Pricing,
		ShippingAddress: cmd.ShippingAddress,
		Payment: domain.PaymentInfo{
			Method: cmd.PaymentMethod,
		},
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:     domain.OrderStatusPending,
			Note:       "order placed",
			OccurredAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if cmd.PaymentMethod == domain.PaymentMethodCard && s.payments != nil {
		result, err := s.payments.Charge(ctx, PaymentCharge{
			Amount:      cmd.Pricing.Total,
			Currency:    s.currency,
			Method:      cmd.PaymentMethod,
			Token:       strings.TrimSpace(cmd.PaymentToken),
			Description: order.OrderNumber,
			UserID:      uid,
		})
		if err != nil {
			s.logger(ctx, "order.payment_failed", map[string]any{
				"userId": uid,
				"error":  err.Error(),
			})
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderPaymentFailed, err)
		}
		paidAt := result.PaidAt.UTC()
		order.Payment.TransactionID = result.TransactionID
		order.Payment.Paid = result.Paid
		if result.Paid {
			order.Payment.PaidAt = &paidAt
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderInsufficientStock, stockErr.ProductID)
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	s.publish(ctx, OrderEventCreated, order)
	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      uid,
		"total":       cmd.Pricing.Total,
	})
	return order, nil
}

// GetOrder loads an order, restricted to its owner unless the requester is an admin.
func (s *orderService) GetOrder(ctx context.Context, requester Requester, orderID string) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	if !requester.Admin && order.UserID != strings.TrimSpace(requester.UserID) {
		return domain.Order{}, ErrOrderForbidden
	}
	return order, nil
}

// ListUserOrders pages through the caller's own orders, newest first.
func (s *orderService) ListUserOrders(ctx context.Context, userID string, page domain.Page) (domain.PageResult[domain.Order], error) {
	if s == nil || s.orders == nil {
		return domain.PageResult[domain.Order]{}, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.PageResult[domain.Order]{}, ErrOrderInvalidInput
	}
	result, err := s.orders.List(ctx, repositories.OrderListFilter{UserID: uid, Page: page})
	if err != nil {
		return domain.PageResult[domain.Order]{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return result, nil
}

// ListOrders pages through all orders for admin surfaces.
func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) (domain.PageResult[domain.Order], error) {
	if s == nil || s.orders == nil {
		return domain.PageResult[domain.Order]{}, ErrOrderUnavailable
	}
	if query.Status != "" && !query.Status.Valid() {
		return domain.PageResult[domain.Order]{}, ErrOrderInvalidInput
	}
	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID: strings.TrimSpace(query.UserID),
		Status: query.Status,
		Page:   query.Page,
	})
	if err != nil {
		return domain.PageResult[domain.Order]{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return result, nil
}

// UpdateStatus moves an order along its lifecycle. Only transitions permitted
// by the status machine are accepted; cancellation goes through CancelOrder so
// stock is restored.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" || !cmd.Status.Valid() {
		return domain.Order{}, ErrOrderInvalidInput
	}
	if cmd.Status == domain.OrderStatusCancelled {
		return domain.Order{}, ErrOrderInvalidTransition
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	if !order.Status.CanTransitionTo(cmd.Status) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, cmd.Status)
	}

	previous := order.Status
	now := s.now()
	order.Status = cmd.Status
	order.UpdatedAt = now
	if tracking := strings.TrimSpace(cmd.TrackingNumber); tracking != "" {
		order.TrackingNumber = tracking
	}
	if cmd.Status == domain.OrderStatusDelivered {
		order.DeliveredAt = &now
		if offlineSettledOnDelivery(order.Payment.Method) && !order.Payment.Paid {
			order.Payment.Paid = true
			order.Payment.PaidAt = &now
		}
	}
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:     cmd.Status,
		Note:       strings.TrimSpace(cmd.Note),
		OccurredAt: now,
	})

	if err := s.orders.Update(ctx, order, previous); err != nil {
		if errors.Is(err, repositories.ErrOrderStatusConflict) {
			return domain.Order{}, fmt.Errorf("%w: order changed concurrently", ErrOrderInvalidTransition)
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	s.publish(ctx, OrderEventStatusChanged, order)
	return order, nil
}

// CancelOrder cancels an order while it is still cancellable and restores the
// stock of every line. Only the order's owner may cancel it.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	if order.UserID != strings.TrimSpace(cmd.Requester.UserID) {
		return domain.Order{}, ErrOrderForbidden
	}
	if !order.Status.Cancellable() {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, domain.OrderStatusCancelled)
	}

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.CancelReason = strings.TrimSpace(cmd.Reason)
	order.CancelledAt = &now
	order.UpdatedAt = now
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:     domain.OrderStatusCancelled,
		Note:       order.CancelReason,
		OccurredAt: now,
	})

	if err := s.orders.CancelAndRestock(ctx, order); err != nil {
		if errors.Is(err, repositories.ErrOrderStatusConflict) {
			return domain.Order{}, fmt.Errorf("%w: order changed concurrently", ErrOrderInvalidTransition)
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	s.publish(ctx, OrderEventCancelled, order)
	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": order.ID,
		"userId":  order.UserID,
		"reason":  order.CancelReason,
	})
	return order, nil
}

// Statistics aggregates counts per status and the revenue over paid statuses.
func (s *orderService) Statistics(ctx context.Context) (domain.OrderStatistics, error) {
	if s == nil || s.orders == nil {
		return domain.OrderStatistics{}, ErrOrderUnavailable
	}
	stats, err := s.orders.Statistics(ctx)
	if err != nil {
		return domain.OrderStatistics{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return stats, nil
}

// publish emits a lifecycle event. Publishing is best effort; failures are
// logged and never fail the originating operation.
func (s *orderService) publish(ctx context.Context, event string, order domain.Order) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishOrderEvent(ctx, OrderEventMessage{
		Event:       event,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		OccurredAt:  order.UpdatedAt,
	})
	if err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"event":   event,
			"error":   err.Error(),
		})
	}
}

// offlineSettledOnDelivery reports whether the payment method is collected or
// reconciled at handover, so delivery marks it paid.
func offlineSettledOnDelivery(method domain.PaymentMethod) bool {
	return method == domain.PaymentMethodBankTransfer || method == domain.PaymentMethodCashOnDelivery
}

func validateShippingAddress(address domain.ShippingAddress) error {
	if strings.TrimSpace(address.FullName) == "" ||
		strings.TrimSpace(address.Line1) == "" ||
		strings.TrimSpace(address.City) == "" ||
		strings.TrimSpace(address.PostalCode) == "" ||
		strings.TrimSpace(address.Country) == "" {
		return ErrOrderInvalidInput
	}
	return nil
}
