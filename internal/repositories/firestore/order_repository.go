package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/techcycle/api/internal/domain"
	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/repositories"
)

const (
	orderCollection = "orders"
)

// OrderRepository persists orders within Firestore and runs the stock-guarded
// checkout and cancellation flows as single transactions.
type OrderRepository struct {
	coll     *pfirestore.Collection[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		coll:     pfirestore.NewCollection[orderDocument](provider, orderCollection),
		provider: provider,
	}, nil
}

// Create atomically validates stock for every line, decrements it, inserts the
// order document, and clears the buyer's cart. A failed line aborts the whole
// transaction so no partial effects survive.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if strings.TrimSpace(order.UserID) == "" {
		return errors.New("order repository: user id is required")
	}
	if len(order.Items) == 0 {
		return errors.New("order repository: order has no items")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return wrapOrderError("orders.create", err)
	}

	orderRef := client.Collection(orderCollection).Doc(order.ID)
	cartRef := client.Collection(cartCollection).Doc(order.UserID)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Firestore transactions require all reads before any write.
		type stockChange struct {
			ref   *firestore.DocumentRef
			stock int
		}
		changes := make([]stockChange, 0, len(order.Items))

		for _, item := range order.Items {
			productRef := client.Collection(productCollection).Doc(item.ProductID)
			snapshot, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewStockError(repositories.StockErrorProductNotFound, item.ProductID, item.Quantity, 0)
				}
				return err
			}

			var product productDocument
			if err := snapshot.DataTo(&product); err != nil {
				return err
			}
			if !product.Active {
				return repositories.NewStockError(repositories.StockErrorProductInactive, item.ProductID, item.Quantity, product.Stock)
			}
			if product.Stock < item.Quantity {
				return repositories.NewStockError(repositories.StockErrorInsufficient, item.ProductID, item.Quantity, product.Stock)
			}
			changes = append(changes, stockChange{ref: productRef, stock: product.Stock - item.Quantity})
		}

		now := order.CreatedAt.UTC()
		for _, change := range changes {
			if err := tx.Update(change.ref, []firestore.Update{
				{Path: "stock", Value: change.stock},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		return tx.Delete(cartRef)
	})
	return wrapOrderError("orders.create", err)
}

// CancelAndRestock persists the cancelled order and restores stock for each of
// its lines in one transaction. The stored order is re-read inside the
// transaction and must still be cancellable, so a racing cancel or shipment
// cannot restock twice or cancel a shipped order. Lines whose product no
// longer exists are skipped rather than failing the cancellation.
func (r *OrderRepository) CancelAndRestock(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return wrapOrderError("orders.cancel", err)
	}

	orderRef := client.Collection(orderCollection).Doc(order.ID)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored, err := readOrderInTx(tx, orderRef)
		if err != nil {
			return err
		}
		if !domain.OrderStatus(stored.Status).Cancellable() {
			return repositories.ErrOrderStatusConflict
		}

		type stockChange struct {
			ref   *firestore.DocumentRef
			stock int
		}
		changes := make([]stockChange, 0, len(stored.Items))

		for _, item := range stored.Items {
			productRef := client.Collection(productCollection).Doc(item.ProductID)
			snapshot, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					continue
				}
				return err
			}
			var product productDocument
			if err := snapshot.DataTo(&product); err != nil {
				return err
			}
			changes = append(changes, stockChange{ref: productRef, stock: product.Stock + item.Quantity})
		}

		now := order.UpdatedAt.UTC()
		for _, change := range changes {
			if err := tx.Update(change.ref, []firestore.Update{
				{Path: "stock", Value: change.stock},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}
		return tx.Set(orderRef, newOrderDocument(order))
	})
	return wrapOrderError("orders.cancel", err)
}

// Update overwrites the order document after verifying, inside a transaction,
// that its stored status still equals expectedStatus.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return wrapOrderError("orders.update", err)
	}
	orderRef := client.Collection(orderCollection).Doc(order.ID)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored, err := readOrderInTx(tx, orderRef)
		if err != nil {
			return err
		}
		if domain.OrderStatus(stored.Status) != expectedStatus {
			return repositories.ErrOrderStatusConflict
		}
		return tx.Set(orderRef, newOrderDocument(order))
	})
	return wrapOrderError("orders.update", err)
}

func readOrderInTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (orderDocument, error) {
	snapshot, err := tx.Get(ref)
	if err != nil {
		return orderDocument{}, err
	}
	var doc orderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return orderDocument{}, err
	}
	return doc, nil
}

// FindByID loads an order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.coll == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.coll.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first, optionally narrowed by user and status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.PageResult[domain.Order], error) {
	if r == nil || r.coll == nil {
		return domain.PageResult[domain.Order]{}, errors.New("order repository not initialised")
	}

	page := filter.Page
	if page.Number <= 0 {
		page.Number = 1
	}
	if page.Size <= 0 {
		page.Size = 12
	}

	build := func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		return q
	}

	total, err := r.coll.Count(ctx, build)
	if err != nil {
		return domain.PageResult[domain.Order]{}, err
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return build(q).
			OrderBy("createdAt", firestore.Desc).
			Offset((page.Number - 1) * page.Size).
			Limit(page.Size)
	})
	if err != nil {
		return domain.PageResult[domain.Order]{}, err
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}

	pages := 0
	if total > 0 {
		pages = (total + page.Size - 1) / page.Size
	}
	return domain.PageResult[domain.Order]{
		Items: items,
		Count: len(items),
		Total: total,
		Page:  page.Number,
		Pages: pages,
	}, nil
}

// Statistics aggregates per-status order counts and revenue over paid statuses.
func (r *OrderRepository) Statistics(ctx context.Context) (domain.OrderStatistics, error) {
	if r == nil || r.coll == nil {
		return domain.OrderStatistics{}, errors.New("order repository not initialised")
	}

	stats := domain.OrderStatistics{CountsByStatus: make(map[domain.OrderStatus]int)}
	for _, orderStatus := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	} {
		count, err := r.coll.Count(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("status", "==", string(orderStatus))
		})
		if err != nil {
			return domain.OrderStatistics{}, err
		}
		stats.CountsByStatus[orderStatus] = count
		stats.TotalOrders += count
	}

	revenue, err := r.sumRevenue(ctx)
	if err != nil {
		return domain.OrderStatistics{}, err
	}
	stats.Revenue = revenue
	return stats, nil
}

// sumRevenue totals order grand totals across the statuses that count as paid.
func (r *OrderRepository) sumRevenue(ctx context.Context) (int64, error) {
	ref, err := r.coll.Ref(ctx)
	if err != nil {
		return 0, wrapOrderError("orders.statistics", err)
	}

	query := ref.Query.Where("status", "in", []string{
		string(domain.OrderStatusProcessing),
		string(domain.OrderStatusShipped),
		string(domain.OrderStatusDelivered),
	})
	result, err := query.NewAggregationQuery().WithSum("totals.total", "revenue").Get(ctx)
	if err != nil {
		return 0, wrapOrderError("orders.statistics", err)
	}

	value, ok := result["revenue"].(*firestorepb.Value)
	if !ok {
		return 0, errors.New("order repository: unexpected revenue aggregation result")
	}
	if _, isDouble := value.ValueType.(*firestorepb.Value_DoubleValue); isDouble {
		return int64(value.GetDoubleValue()), nil
	}
	return value.GetIntegerValue(), nil
}

// wrapOrderError keeps typed stock errors intact while classifying everything
// else as a repository error.
func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		return err
	}
	if errors.Is(err, repositories.ErrOrderStatusConflict) {
		return err
	}
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		return err
	}
	return pfirestore.WrapError(op, err)
}

type orderDocument struct {
	UserID          string                   `firestore:"userId"`
	OrderNumber     string                   `firestore:"orderNumber"`
	Status          string                   `firestore:"status"`
	Items           []orderItemDocument      `firestore:"items"`
	ShippingAddress shippingAddressDocument  `firestore:"shippingAddress"`
	Payment         paymentInfoDocument      `firestore:"payment"`
	Totals          orderTotalsDocument      `firestore:"totals"`
	Currency        string                   `firestore:"currency"`
	TrackingNumber  string                   `firestore:"trackingNumber,omitempty"`
	StatusHistory   []statusHistoryDocument  `firestore:"statusHistory"`
	CancelReason    string                   `firestore:"cancelReason,omitempty"`
	DeliveredAt     *time.Time               `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time               `firestore:"cancelledAt,omitempty"`
	CreatedAt       time.Time                `firestore:"createdAt"`
	UpdatedAt       time.Time                `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	ImageURL  string `firestore:"imageUrl,omitempty"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
}

type shippingAddressDocument struct {
	FullName   string `firestore:"fullName"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

type paymentInfoDocument struct {
	Method        string     `firestore:"method"`
	TransactionID string     `firestore:"transactionId,omitempty"`
	Paid          bool       `firestore:"paid"`
	PaidAt        *time.Time `firestore:"paidAt,omitempty"`
}

type orderTotalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Shipping int64 `firestore:"shipping"`
	Tax      int64 `firestore:"tax"`
	Discount int64 `firestore:"discount"`
	Total    int64 `firestore:"total"`
}

type statusHistoryDocument struct {
	Status     string    `firestore:"status"`
	Note       string    `firestore:"note,omitempty"`
	OccurredAt time.Time `firestore:"occurredAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:      strings.TrimSpace(order.UserID),
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		ShippingAddress: shippingAddressDocument{
			FullName:   order.ShippingAddress.FullName,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
			Phone:      order.ShippingAddress.Phone,
		},
		Payment: paymentInfoDocument{
			Method:        string(order.Payment.Method),
			TransactionID: order.Payment.TransactionID,
			Paid:          order.Payment.Paid,
			PaidAt:        utcTimePtr(order.Payment.PaidAt),
		},
		Totals: orderTotalsDocument{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Tax:      order.Totals.Tax,
			Discount: order.Totals.Discount,
			Total:    order.Totals.Total,
		},
		Currency:       strings.ToUpper(strings.TrimSpace(order.Currency)),
		TrackingNumber: order.TrackingNumber,
		CancelReason:   order.CancelReason,
		DeliveredAt:    utcTimePtr(order.DeliveredAt),
		CancelledAt:    utcTimePtr(order.CancelledAt),
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	for _, entry := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusHistoryDocument{
			Status:     string(entry.Status),
			Note:       entry.Note,
			OccurredAt: entry.OccurredAt.UTC(),
		})
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:          id,
		UserID:      d.UserID,
		OrderNumber: d.OrderNumber,
		Status:      domain.OrderStatus(d.Status),
		ShippingAddress: domain.ShippingAddress{
			FullName:   d.ShippingAddress.FullName,
			Line1:      d.ShippingAddress.Line1,
			Line2:      d.ShippingAddress.Line2,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
			Phone:      d.ShippingAddress.Phone,
		},
		Payment: domain.PaymentInfo{
			Method:        domain.PaymentMethod(d.Payment.Method),
			TransactionID: d.Payment.TransactionID,
			Paid:          d.Payment.Paid,
			PaidAt:        d.Payment.PaidAt,
		},
		Totals: domain.OrderTotals{
			Subtotal: d.Totals.Subtotal,
			Shipping: d.Totals.Shipping,
			Tax:      d.Totals.Tax,
			Discount: d.Totals.Discount,
			Total:    d.Totals.Total,
		},
		Currency:       d.Currency,
		TrackingNumber: d.TrackingNumber,
		CancelReason:   d.CancelReason,
		DeliveredAt:    d.DeliveredAt,
		CancelledAt:    d.CancelledAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	for _, entry := range d.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
			Status:     domain.OrderStatus(entry.Status),
			Note:       entry.Note,
			OccurredAt: entry.OccurredAt,
		})
	}
	return order
}

func utcTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
