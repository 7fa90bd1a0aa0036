package domain

import (
	"time"
)

// Page defines standard offset paging inputs for list operations.
type Page struct {
	Number int
	Size   int
}

// PageResult packages list results with the counts clients page by.
type PageResult[T any] struct {
	Items []T
	Count int
	Total int
	Page  int
	Pages int
}

// ProductSort indicates the field used to order product listings.
type ProductSort string

const (
	// ProductSortNewest sorts products by creation time (newest first).
	ProductSortNewest ProductSort = "newest"
	// ProductSortPriceAsc sorts products by unit price, cheapest first.
	ProductSortPriceAsc ProductSort = "price-asc"
	// ProductSortPriceDesc sorts products by unit price, most expensive first.
	ProductSortPriceDesc ProductSort = "price-desc"
	// ProductSortRating sorts products by average review rating (higher first).
	ProductSortRating ProductSort = "rating"
)

// ProductCondition grades the provenance of a unit in the catalog.
type ProductCondition string

const (
	// ConditionNew indicates factory-sealed, never-used stock.
	ConditionNew ProductCondition = "new"
	// ConditionRefurbished indicates a unit restored and tested by the workshop.
	ConditionRefurbished ProductCondition = "refurbished"
	// ConditionUsed indicates a pre-owned unit sold as inspected.
	ConditionUsed ProductCondition = "used"
)

// ProductImage stores a gallery entry for a product.
type ProductImage struct {
	URL   string
	Alt   string
	Order int
}

// ProductRatings aggregates review scores denormalized onto the product.
type ProductRatings struct {
	Average float64
	Count   int
}

// ProductSEO stores search-engine metadata managed by admins.
type ProductSEO struct {
	Title       string
	Description string
	Keywords    []string
}

// Product is the canonical catalog entry shared across layers. Prices are
// stored in the smallest currency unit.
type Product struct {
	ID                 string
	Name               string
	Slug               string
	Description        string
	CategoryID         string
	Brand              string
	Model              string
	Condition          ProductCondition
	Price              int64
	CompareAtPrice     *int64
	Currency           string
	Stock              int
	LowStockThreshold  int
	Specifications     map[string]string
	Images             []ProductImage
	RecyclabilityScore *int
	Ratings            ProductRatings
	Featured           bool
	Active             bool
	SEO                *ProductSEO
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProductFilter captures the supported catalog listing filters.
type ProductFilter struct {
	CategoryID      string
	Condition       ProductCondition
	Brand           string
	MinPrice        *int64
	MaxPrice        *int64
	Search          string
	Featured        *bool
	IncludeInactive bool
	Sort            ProductSort
}

// Category groups products for navigation.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	ImageURL    string
	ParentID    *string
	Order       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem stores a single product entry within a cart. UnitPrice is the
// snapshot captured when the line was first added.
type CartItem struct {
	ProductID string
	Name      string
	ImageURL  string
	UnitPrice int64
	Quantity  int
	AddedAt   time.Time
}

// Cart aggregates the mutable shopping cart state for a user. TotalAmount is
// derived from the items on every write, never accepted from clients.
type Cart struct {
	ID          string
	UserID      string
	Currency    string
	Items       []CartItem
	TotalAmount int64
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subtotal recomputes the cart total from its lines.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order has been placed and awaits fulfilment.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the order is being prepared for shipment.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order has reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before shipment.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod enumerates supported payment instruments at checkout.
type PaymentMethod string

const (
	// PaymentMethodCard is a card charge captured through the PSP.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodPayPal is an external PayPal capture.
	PaymentMethodPayPal PaymentMethod = "paypal"
	// PaymentMethodBankTransfer is an offline bank transfer settled manually.
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	// PaymentMethodCashOnDelivery is collected by the carrier on handover.
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// OrderItem mirrors a cart line at the moment the order was placed and is
// immutable afterwards.
type OrderItem struct {
	ProductID string
	Name      string
	ImageURL  string
	UnitPrice int64
	Quantity  int
}

// ShippingAddress is the postal destination snapshot stored on the order.
type ShippingAddress struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// PaymentInfo records how the order was (or will be) paid.
type PaymentInfo struct {
	Method        PaymentMethod
	TransactionID string
	Paid          bool
	PaidAt        *time.Time
}

// OrderTotals holds the pricing breakdown supplied at checkout, in the
// smallest currency unit.
type OrderTotals struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Discount int64
	Total    int64
}

// StatusHistoryEntry stores one append-only lifecycle transition on an order.
type StatusHistoryEntry struct {
	Status     OrderStatus
	Note       string
	OccurredAt time.Time
}

// Order captures an immutable purchase record. Items and totals never change
// after creation; only status, tracking and history move.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	Currency        string
	Items           []OrderItem
	Totals          OrderTotals
	ShippingAddress ShippingAddress
	Payment         PaymentInfo
	TrackingNumber  string
	StatusHistory   []StatusHistoryEntry
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// OrderStatistics aggregates order counts and recognized revenue for admin
// dashboards. Revenue covers processing, shipped and delivered orders only.
type OrderStatistics struct {
	TotalOrders    int
	CountsByStatus map[OrderStatus]int
	Revenue        int64
}

// Review captures user feedback on a product. One review per user/product pair.
type Review struct {
	ID               string
	ProductID        string
	UserID           string
	UserName         string
	Rating           int
	Title            string
	Comment          string
	VerifiedPurchase bool
	HelpfulVotes     []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasHelpfulVote reports whether the given user marked the review helpful.
func (r Review) HasHelpfulVote(userID string) bool {
	for _, voter := range r.HelpfulVotes {
		if voter == userID {
			return true
		}
	}
	return false
}

// Address represents a saved postal address on a user profile.
type Address struct {
	ID         string
	Label      string
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

// UserRole enumerates access levels recognized by the API.
type UserRole string

const (
	// RoleUser is the default role for registered customers.
	RoleUser UserRole = "user"
	// RoleAdmin unlocks catalog and order administration.
	RoleAdmin UserRole = "admin"
)

// User is the canonical account record. PasswordHash is a bcrypt digest and
// never leaves the repository layer.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         UserRole
	Addresses    []Address
	Wishlist     []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role UserRole) bool {
	return u.Role == role
}
