package services

import (
	"context"
	"time"

	domain "github.com/techcycle/api/internal/domain"
)

// CatalogService exposes the product and category surfaces, public and admin.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductListQuery) (domain.PageResult[domain.Product], error)
	GetProduct(ctx context.Context, idOrSlug string) (domain.Product, error)
	ListFeaturedProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, cmd ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd ProductInput) (domain.Product, error)
	DeactivateProduct(ctx context.Context, productID string) error

	ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	GetCategory(ctx context.Context, idOrSlug string) (domain.Category, error)
	CreateCategory(ctx context.Context, cmd CategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, categoryID string, cmd CategoryInput) (domain.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// ProductListQuery combines catalog filters with paging.
type ProductListQuery struct {
	Filter domain.ProductFilter
	Page   domain.Page
}

// ProductInput carries the admin-writable product fields.
type ProductInput struct {
	Name               string
	Description        string
	CategoryID         string
	Brand              string
	Model              string
	Condition          domain.ProductCondition
	Price              int64
	CompareAtPrice     *int64
	Stock              int
	LowStockThreshold  int
	Specifications     map[string]string
	Images             []domain.ProductImage
	RecyclabilityScore *int
	Featured           bool
	SEO                *domain.ProductSEO
}

// CategoryInput carries the admin-writable category fields.
type CategoryInput struct {
	Name        string
	Description string
	ImageURL    string
	ParentID    *string
	Order       int
	Active      *bool
}

// CartService owns the per-user cart lifecycle.
type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// AddCartItemCommand adds quantity of a product to the user's cart.
type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// UpdateCartItemCommand sets the quantity of an existing cart line. A quantity
// of zero or less removes the line.
type UpdateCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// OrderService owns order placement and the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, requester Requester, orderID string) (domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, page domain.Page) (domain.PageResult[domain.Order], error)
	ListOrders(ctx context.Context, query OrderListQuery) (domain.PageResult[domain.Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
	Statistics(ctx context.Context) (domain.OrderStatistics, error)
}

// Requester identifies the caller for ownership checks.
type Requester struct {
	UserID string
	Admin  bool
}

// CreateOrderCommand places an order from the line items and pricing breakdown
// supplied by the client at checkout.
type CreateOrderCommand struct {
	UserID          string
	Items           []domain.OrderItem
	Pricing         domain.OrderTotals
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
	PaymentToken    string
}

// OrderListQuery narrows the admin order listing.
type OrderListQuery struct {
	UserID string
	Status domain.OrderStatus
	Page   domain.Page
}

// UpdateOrderStatusCommand moves an order along its lifecycle.
type UpdateOrderStatusCommand struct {
	OrderID        string
	Status         domain.OrderStatus
	TrackingNumber string
	Note           string
}

// CancelOrderCommand cancels an order on behalf of its owner or an admin.
type CancelOrderCommand struct {
	Requester Requester
	OrderID   string
	Reason    string
}

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	Event       string    `json:"event"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// OrderEventPublisher emits order lifecycle events to interested consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// ReviewService owns product reviews and the denormalized rating aggregates.
type ReviewService interface {
	CreateReview(ctx context.Context, cmd ReviewInput) (domain.Review, error)
	UpdateReview(ctx context.Context, requester Requester, reviewID string, cmd ReviewInput) (domain.Review, error)
	DeleteReview(ctx context.Context, requester Requester, reviewID string) error
	ToggleHelpful(ctx context.Context, userID, reviewID string) (domain.Review, error)
	ListProductReviews(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error)
	ListUserReviews(ctx context.Context, userID string) ([]domain.Review, error)
}

// ReviewInput carries the writable review fields.
type ReviewInput struct {
	ProductID string
	UserID    string
	Rating    int
	Title     string
	Comment   string
}

// UserService owns accounts, authentication, profiles, addresses and wishlists.
type UserService interface {
	Register(ctx context.Context, cmd RegisterCommand) (AuthResult, error)
	Login(ctx context.Context, cmd LoginCommand) (AuthResult, error)
	GetProfile(ctx context.Context, userID string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID string, cmd UpdateProfileCommand) (domain.User, error)
	ChangePassword(ctx context.Context, userID string, cmd ChangePasswordCommand) error
	AddAddress(ctx context.Context, userID string, address domain.Address) (domain.User, error)
	UpdateAddress(ctx context.Context, userID string, address domain.Address) (domain.User, error)
	RemoveAddress(ctx context.Context, userID, addressID string) (domain.User, error)
	AddToWishlist(ctx context.Context, userID, productID string) (domain.User, error)
	RemoveFromWishlist(ctx context.Context, userID, productID string) (domain.User, error)
}

// RegisterCommand creates a new account.
type RegisterCommand struct {
	Email    string
	Name     string
	Password string
}

// LoginCommand authenticates an existing account.
type LoginCommand struct {
	Email    string
	Password string
}

// UpdateProfileCommand carries the writable profile fields.
type UpdateProfileCommand struct {
	Name *string
}

// ChangePasswordCommand rotates the account credential after verifying the
// current one.
type ChangePasswordCommand struct {
	CurrentPassword string
	NewPassword     string
}

// AuthResult carries the authenticated user and their access token.
type AuthResult struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

// PaymentCharge describes a charge request against the payment provider.
type PaymentCharge struct {
	Amount      int64
	Currency    string
	Method      domain.PaymentMethod
	Token       string
	Description string
	UserID      string
}

// PaymentResult reports the provider-side outcome of a charge.
type PaymentResult struct {
	TransactionID string
	Paid          bool
	PaidAt        time.Time
}

// PaymentProcessor charges the buyer at order placement.
type PaymentProcessor interface {
	Charge(ctx context.Context, charge PaymentCharge) (PaymentResult, error)
}
