package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/repositories"
)

func testShippingAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:   "Ada Lovelace",
		Line1:      "1 Analytical Way",
		City:       "Utrecht",
		PostalCode: "3511AB",
		Country:    "NL",
	}
}

func testOrderLines() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: "prod-1", Name: "iPhone 13", UnitPrice: 49900, Quantity: 1},
		{ProductID: "prod-2", Name: "USB-C cable", UnitPrice: 900, Quantity: 2},
	}
}

// testOrderPricing is the breakdown matching testOrderLines: 51700 subtotal,
// 10857 tax, free shipping, no discount.
func testOrderPricing() domain.OrderTotals {
	return domain.OrderTotals{
		Subtotal: 51700,
		Tax:      10857,
		Shipping: 0,
		Discount: 0,
		Total:    62557,
	}
}

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	}
	counter := 0
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string {
			counter++
			return "01HVTESTID" + strings.Repeat("0", 15-len("01HVTESTID")) + string(rune('A'+counter))
		}
	}
	service, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing order service: %v", err)
	}
	return service
}

func TestOrderServiceCreateOrder(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	var created domain.Order
	orders := &stubOrderRepository{
		createFunc: func(ctx context.Context, order domain.Order) error {
			created = order
			return nil
		},
	}
	events := &stubOrderEventPublisher{}

	service := newTestOrderService(t, OrderServiceDeps{
		Orders: orders,
		Events: events,
		Clock:  func() time.Time { return now },
	})

	order, err := service.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           testOrderLines(),
		Pricing:         testOrderPricing(),
		ShippingAddress: testShippingAddress(),
		PaymentMethod:   domain.PaymentMethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("expected ORD- prefix, got %q", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %q", order.Status)
	}
	if order.Totals != testOrderPricing() {
		t.Fatalf("expected submitted breakdown carried over, got %+v", order.Totals)
	}
	if order.Currency != "EUR" {
		t.Fatalf("expected default EUR currency, got %q", order.Currency)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != domain.OrderStatusPending {
		t.Fatalf("expected initial pending history entry, got %+v", order.StatusHistory)
	}
	if created.ID != order.ID {
		t.Fatalf("expected order persisted")
	}
	if len(events.messages) != 1 || events.messages[0].Event != OrderEventCreated {
		t.Fatalf("expected order.created event, got %+v", events.messages)
	}
}

func TestOrderServiceCreateOrderNoItems(t *testing.T) {
	service := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepository{},
	})

	_, err := service.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Pricing:         domain.OrderTotals{},
		ShippingAddress: testShippingAddress(),
		PaymentMethod:   domain.PaymentMethodCard,
	})
	if !errors.Is(err, ErrOrderNoItems) {
		t.Fatalf("expected ErrOrderNoItems, got %v", err)
	}
}

func TestOrderServiceCreateOrderRejectsInconsistentPricing(t *testing.T) {
	service := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepository{},
	})

	cases := map[string]domain.OrderTotals{
		"total does not add up": {Subtotal: 51700, Tax: 10857, Shipping: 0, Discount: 0, Total: 60000},
		"negative discount":     {Subtotal: 51700, Tax: 10857, Shipping: 0, Discount: -500, Total: 63057},
		"subtotal mismatch":     {Subtotal: 50000, Tax: 10500, Shipping: 0, Discount: 0, Total: 60500},
	}
	for name, pricing := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.CreateOrder(context.Background(), CreateOrderCommand{
				UserID:          "user-1",
				Items:           testOrderLines(),
				Pricing:         pricing,
				ShippingAddress: testShippingAddress(),
				PaymentMethod:   domain.PaymentMethodBankTransfer,
			})
			if !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestOrderServiceCreateOrderAcceptsDiscountedBreakdown(t *testing.T) {
	var created domain.Order
	orders := &stubOrderRepository{
		createFunc: func(ctx context.Context, order domain.Order) error {
			created = order
			return nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	pricing := domain.OrderTotals{Subtotal: 1000, Tax: 180, Shipping: 0, Discount: 100, Total: 1080}
	_, err := service.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           []domain.OrderItem{{ProductID: "prod-1", UnitPrice: 500, Quantity: 2}},
		Pricing:         pricing,
		ShippingAddress: testShippingAddress(),
		PaymentMethod:   domain.PaymentMethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Totals.Discount != 100 || created.Totals.Total != 1080 {
		t.Fatalf("expected discount carried into stored totals, got %+v", created.Totals)
	}
}

func TestOrderServiceCreateOrderInsufficientStock(t *testing.T) {
	orders := &stubOrderRepository{
		createFunc: func(ctx context.Context, order domain.Order) error {
			return repositories.NewStockError(repositories.StockErrorInsufficient, "prod-1", 3, 1)
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := service.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           []domain.OrderItem{{ProductID: "prod-1", UnitPrice: 1000, Quantity: 3}},
		Pricing:         domain.OrderTotals{Subtotal: 3000, Tax: 630, Total: 3630},
		ShippingAddress: testShippingAddress(),
		PaymentMethod:   domain.PaymentMethodBankTransfer,
	})
	if !errors.Is(err, ErrOrderInsufficientStock) {
		t.Fatalf("expected ErrOrderInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "prod-1") {
		t.Fatalf("expected offending product id in error, got %v", err)
	}
}

func TestOrderServiceCreateOrderChargesCard(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	var charged PaymentCharge
	payments := &stubPaymentProcessor{
		chargeFunc: func(ctx context.Context, charge PaymentCharge) (PaymentResult, error) {
			charged = charge
			return PaymentResult{TransactionID: "pi_123", Paid: true, PaidAt: now}, nil
		},
	}
	orders := &stubOrderRepository{
		createFunc: func(ctx context.Context, order domain.Order) error { return nil },
	}
	service := newTestOrderService(t, OrderServiceDeps{
		Orders:   orders,
		Payments: payments,
		Clock:    func() time.Time { return now },
	})

	order, err := service.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           []domain.OrderItem{{ProductID: "prod-1", UnitPrice: 2000, Quantity: 1}},
		Pricing:         domain.OrderTotals{Subtotal: 2000, Tax: 420, Total: 2420},
		ShippingAddress: testShippingAddress(),
		PaymentMethod:   domain.PaymentMethodCard,
		PaymentToken:    "tok_visa",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charged.Token != "tok_visa" {
		t.Fatalf("expected token forwarded, got %q", charged.Token)
	}
	if charged.Amount != order.Totals.Total {
		t.Fatalf("expected charge amount %d, got %d", order.Totals.Total, charged.Amount)
	}
	if !order.Payment.Paid || order.Payment.TransactionID != "pi_123" {
		t.Fatalf("expected paid payment info, got %+v", order.Payment)
	}
}

func TestOrderServiceCreateOrderPaymentDeclined(t *testing.T) {
	payments := &stubPaymentProcessor{
		chargeFunc: func(ctx context.Context, charge PaymentCharge) (PaymentResult, error) {
			return PaymentResult{}, errors.New("card declined")
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{
		Orders:   &stubOrderRepository{},
		Payments: payments,
	})

	_, err := service.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           []domain.OrderItem{{ProductID: "prod-1", UnitPrice: 2000, Quantity: 1}},
		Pricing:         domain.OrderTotals{Subtotal: 2000, Tax: 420, Total: 2420},
		ShippingAddress: testShippingAddress(),
		PaymentMethod:   domain.PaymentMethodCard,
	})
	if !errors.Is(err, ErrOrderPaymentFailed) {
		t.Fatalf("expected ErrOrderPaymentFailed, got %v", err)
	}
}

func TestOrderServiceGetOrderEnforcesOwnership(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "owner-1"}, nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	if _, err := service.GetOrder(context.Background(), Requester{UserID: "someone-else"}, "order-1"); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
	if _, err := service.GetOrder(context.Background(), Requester{UserID: "owner-1"}, "order-1"); err != nil {
		t.Fatalf("owner should read own order: %v", err)
	}
	if _, err := service.GetOrder(context.Background(), Requester{UserID: "admin-1", Admin: true}, "order-1"); err != nil {
		t.Fatalf("admin should read any order: %v", err)
	}
}

func TestOrderServiceUpdateStatusHappyPath(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	var updated domain.Order
	var expectedSeen domain.OrderStatus
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{
				ID:     orderID,
				UserID: "user-1",
				Status: domain.OrderStatusPending,
				StatusHistory: []domain.StatusHistoryEntry{
					{Status: domain.OrderStatusPending, OccurredAt: now.Add(-time.Hour)},
				},
			}, nil
		},
		updateFunc: func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error {
			updated = order
			expectedSeen = expectedStatus
			return nil
		},
	}
	events := &stubOrderEventPublisher{}
	service := newTestOrderService(t, OrderServiceDeps{
		Orders: orders,
		Events: events,
		Clock:  func() time.Time { return now },
	})

	order, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusProcessing,
		Note:    "picked up by warehouse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %q", order.Status)
	}
	if expectedSeen != domain.OrderStatusPending {
		t.Fatalf("expected repository guarded against status %q, got %q", domain.OrderStatusPending, expectedSeen)
	}
	if len(order.StatusHistory) != 2 {
		t.Fatalf("expected history appended, got %d entries", len(order.StatusHistory))
	}
	if updated.StatusHistory[1].Note != "picked up by warehouse" {
		t.Fatalf("unexpected note %q", updated.StatusHistory[1].Note)
	}
	if len(events.messages) != 1 || events.messages[0].Event != OrderEventStatusChanged {
		t.Fatalf("expected status change event, got %+v", events.messages)
	}
}

func TestOrderServiceUpdateStatusRejectsIllegalTransition(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusDelivered}, nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusShipped,
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition, got %v", err)
	}
}

func TestOrderServiceUpdateStatusCancelledGoesThroughCancelOrder(t *testing.T) {
	service := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}})

	_, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusCancelled,
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition, got %v", err)
	}
}

func TestOrderServiceUpdateStatusShippedWithoutTracking(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusProcessing}, nil
		},
		updateFunc: func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error {
			return nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	order, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusShipped,
	})
	if err != nil {
		t.Fatalf("shipping without a tracking number should succeed, got %v", err)
	}
	if order.TrackingNumber != "" {
		t.Fatalf("expected no tracking number, got %q", order.TrackingNumber)
	}
}

func TestOrderServiceUpdateStatusRecordsTrackingWhenGiven(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusProcessing}, nil
		},
		updateFunc: func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error {
			return nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	order, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:        "order-1",
		Status:         domain.OrderStatusShipped,
		TrackingNumber: " TRACK-42 ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.TrackingNumber != "TRACK-42" {
		t.Fatalf("expected trimmed tracking number, got %q", order.TrackingNumber)
	}
}

func TestOrderServiceUpdateStatusConcurrentChange(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusPending}, nil
		},
		updateFunc: func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error {
			return repositories.ErrOrderStatusConflict
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusProcessing,
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition on concurrent change, got %v", err)
	}
}

func TestOrderServiceUpdateStatusDeliveredStampsTimestamp(t *testing.T) {
	now := time.Date(2026, 4, 5, 16, 0, 0, 0, time.UTC)
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusShipped, TrackingNumber: "TRACK-1"}, nil
		},
		updateFunc: func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error { return nil },
	}
	service := newTestOrderService(t, OrderServiceDeps{
		Orders: orders,
		Clock:  func() time.Time { return now },
	})

	order, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusDelivered,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.DeliveredAt == nil || !order.DeliveredAt.Equal(now) {
		t.Fatalf("expected delivered timestamp %v, got %v", now, order.DeliveredAt)
	}
}

func TestOrderServiceUpdateStatusDeliveredSettlesOfflinePayments(t *testing.T) {
	now := time.Date(2026, 4, 5, 16, 0, 0, 0, time.UTC)
	for _, method := range []domain.PaymentMethod{
		domain.PaymentMethodBankTransfer,
		domain.PaymentMethodCashOnDelivery,
	} {
		t.Run(string(method), func(t *testing.T) {
			orders := &stubOrderRepository{
				findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
					return domain.Order{
						ID:      orderID,
						Status:  domain.OrderStatusShipped,
						Payment: domain.PaymentInfo{Method: method},
					}, nil
				},
				updateFunc: func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error { return nil },
			}
			service := newTestOrderService(t, OrderServiceDeps{
				Orders: orders,
				Clock:  func() time.Time { return now },
			})

			order, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
				OrderID: "order-1",
				Status:  domain.OrderStatusDelivered,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !order.Payment.Paid || order.Payment.PaidAt == nil || !order.Payment.PaidAt.Equal(now) {
				t.Fatalf("expected payment settled on delivery, got %+v", order.Payment)
			}
		})
	}
}

func TestOrderServiceCancelOrderRestocksAndRecords(t *testing.T) {
	now := time.Date(2026, 4, 3, 11, 0, 0, 0, time.UTC)
	var cancelled domain.Order
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{
				ID:     orderID,
				UserID: "user-1",
				Status: domain.OrderStatusProcessing,
				Items:  []domain.OrderItem{{ProductID: "prod-1", Quantity: 2}},
			}, nil
		},
		cancelAndRestockFunc: func(ctx context.Context, order domain.Order) error {
			cancelled = order
			return nil
		},
	}
	events := &stubOrderEventPublisher{}
	service := newTestOrderService(t, OrderServiceDeps{
		Orders: orders,
		Events: events,
		Clock:  func() time.Time { return now },
	})

	order, err := service.CancelOrder(context.Background(), CancelOrderCommand{
		Requester: Requester{UserID: "user-1"},
		OrderID:   "order-1",
		Reason:    "changed my mind",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %q", order.Status)
	}
	if order.CancelledAt == nil || !order.CancelledAt.Equal(now) {
		t.Fatalf("expected cancellation timestamp")
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Fatalf("unexpected reason %q", cancelled.CancelReason)
	}
	if len(events.messages) != 1 || events.messages[0].Event != OrderEventCancelled {
		t.Fatalf("expected cancellation event, got %+v", events.messages)
	}
}

func TestOrderServiceCancelOrderRejectsShipped(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "user-1", Status: domain.OrderStatusShipped}, nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := service.CancelOrder(context.Background(), CancelOrderCommand{
		Requester: Requester{UserID: "user-1"},
		OrderID:   "order-1",
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition, got %v", err)
	}
}

func TestOrderServiceCancelOrderOwnerOnly(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "user-1", Status: domain.OrderStatusPending}, nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	if _, err := service.CancelOrder(context.Background(), CancelOrderCommand{
		Requester: Requester{UserID: "user-2"},
		OrderID:   "order-1",
	}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}

	// Admins manage the lifecycle through status updates; cancellation stays
	// with the buyer.
	if _, err := service.CancelOrder(context.Background(), CancelOrderCommand{
		Requester: Requester{UserID: "admin-1", Admin: true},
		OrderID:   "order-1",
	}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for non-owner admin, got %v", err)
	}
}

func TestOrderServiceCancelOrderConcurrentChange(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "user-1", Status: domain.OrderStatusPending}, nil
		},
		cancelAndRestockFunc: func(ctx context.Context, order domain.Order) error {
			return repositories.ErrOrderStatusConflict
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := service.CancelOrder(context.Background(), CancelOrderCommand{
		Requester: Requester{UserID: "user-1"},
		OrderID:   "order-1",
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition on concurrent change, got %v", err)
	}
}

func TestOrderServiceStatisticsPassesThrough(t *testing.T) {
	orders := &stubOrderRepository{
		statisticsFunc: func(ctx context.Context) (domain.OrderStatistics, error) {
			return domain.OrderStatistics{
				TotalOrders: 12,
				CountsByStatus: map[domain.OrderStatus]int{
					domain.OrderStatusPending:   2,
					domain.OrderStatusDelivered: 10,
				},
				Revenue: 123456,
			}, nil
		},
	}
	service := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	stats, err := service.Statistics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalOrders != 12 || stats.Revenue != 123456 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
