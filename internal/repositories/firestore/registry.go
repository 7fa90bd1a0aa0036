package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/repositories"
)

// Registry bundles the Firestore repositories behind the repositories.Registry
// contract for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	products   *ProductRepository
	categories *CategoryRepository
	carts      *CartRepository
	orders     *OrderRepository
	reviews    *ReviewRepository
	users      *UserRepository
}

// NewRegistry constructs every Firestore repository on top of a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		products:   products,
		categories: categories,
		carts:      carts,
		orders:     orders,
		reviews:    reviews,
		users:      users,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Carts() repositories.CartRepository          { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Reviews() repositories.ReviewRepository      { return r.reviews }
func (r *Registry) Users() repositories.UserRepository          { return r.users }

// RunInTx sequences fn against the registry. Multi-document atomicity lives in
// the repositories that need it (order checkout and cancellation run their own
// Firestore transactions), so grouping here is a plain invocation.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return errors.New("registry not initialised")
	}
	if fn == nil {
		return errors.New("registry: transaction func is required")
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
