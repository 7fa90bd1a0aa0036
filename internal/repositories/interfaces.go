package repositories

import (
	"context"
	"time"

	domain "github.com/techcycle/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Carts() CartRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	Users() UserRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository persists catalog products and their denormalized ratings.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.PageResult[domain.Product], error)
	ListFeatured(ctx context.Context, limit int) ([]domain.Product, error)
	SetActive(ctx context.Context, productID string, active bool, updatedAt time.Time) error
	UpdateRatings(ctx context.Context, productID string, ratings domain.ProductRatings, updatedAt time.Time) error
}

// CategoryRepository persists catalog categories.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Category, error)
}

// CartRepository owns per-user cart persistence. The cart document ID is the user ID.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}

// OrderRepository persists orders and runs the stock-guarded checkout and
// cancellation flows transactionally.
type OrderRepository interface {
	// Create atomically validates and decrements stock for every line, inserts
	// the order, and clears the user's cart. No partial effects survive a failure.
	Create(ctx context.Context, order domain.Order) error
	// CancelAndRestock atomically persists the cancelled order and restores
	// stock for each of its lines. The stored order must still be in a
	// cancellable status; otherwise ErrOrderStatusConflict is returned.
	CancelAndRestock(ctx context.Context, order domain.Order) error
	// Update overwrites the order after verifying the stored status still
	// equals expectedStatus; ErrOrderStatusConflict otherwise.
	Update(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.PageResult[domain.Order], error)
	Statistics(ctx context.Context) (domain.OrderStatistics, error)
}

// ReviewRepository stores product reviews, one per user/product pair.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Update(ctx context.Context, review domain.Review) error
	Delete(ctx context.Context, reviewID string) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error)
	ListByUser(ctx context.Context, userID string) ([]domain.Review, error)
}

// UserRepository stores account records. Insert fails with a conflict when the
// email is already registered.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
}

// Filter DTOs shared across repositories ------------------------------------

// ProductListFilter combines catalog filters with offset paging.
type ProductListFilter struct {
	Filter domain.ProductFilter
	Page   domain.Page
}

// OrderListFilter narrows order listings for user and admin surfaces.
type OrderListFilter struct {
	UserID string
	Status domain.OrderStatus
	Page   domain.Page
}
