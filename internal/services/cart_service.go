package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: cart repository is required")
	errCartProductsRequired   = errors.New("cart service: product repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartItemNotFound indicates the referenced line is not in the cart.
var ErrCartItemNotFound = errors.New("cart service: item not found")

// ErrCartProductNotFound indicates the referenced product does not exist or is inactive.
var ErrCartProductNotFound = errors.New("cart service: product not found")

// ErrCartInsufficientStock indicates the requested quantity exceeds available stock.
var ErrCartInsufficientStock = errors.New("cart service: insufficient stock")

// maxCartLineQuantity caps a single cart line. Requests above the cap are
// clamped to it rather than rejected; the stock ceiling still applies to the
// clamped quantity.
const maxCartLineQuantity = 99

// CartServiceDeps wires the repositories and policies for cart operations.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	TTL      time.Duration
	Currency string
	Logger   func(context.Context, string, map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	now      func() time.Time
	ttl      time.Duration
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errCartProductsRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "EUR"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		now:      func() time.Time { return deps.Clock().UTC() },
		ttl:      ttl,
		currency: currency,
		logger:   logger,
	}, nil
}

// GetCart loads the user's cart. A missing or expired cart yields an empty one.
func (s *cartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s == nil || s.carts == nil {
		return domain.Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyCart(uid), nil
		}
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	if s.expired(cart) {
		return s.emptyCart(uid), nil
	}
	return cart, nil
}

// AddItem appends a product to the cart or increments an existing line. The
// unit price is snapshotted from the catalog on first add and kept as-is on
// subsequent adds. Quantities are clamped to maxCartLineQuantity per line.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.Cart, error) {
	if s == nil || s.carts == nil {
		return domain.Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" || cmd.Quantity <= 0 {
		return domain.Cart{}, ErrCartInvalidInput
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{}, ErrCartProductNotFound
		}
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	if !product.Active {
		return domain.Cart{}, ErrCartProductNotFound
	}

	cart, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	now := s.now()
	idx := findCartItem(cart.Items, productID)
	quantity := cmd.Quantity
	if idx >= 0 {
		quantity += cart.Items[idx].Quantity
	}
	if quantity > maxCartLineQuantity {
		quantity = maxCartLineQuantity
	}
	if quantity > product.Stock {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartInsufficientStock, productID)
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = quantity
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  primaryImageURL(product.Images),
			UnitPrice: product.Price,
			Quantity:  quantity,
			AddedAt:   now,
		})
	}

	saved, err := s.persist(ctx, cart, now)
	if err != nil {
		return domain.Cart{}, err
	}
	s.logger(ctx, "cart.item_added", map[string]any{
		"userId":    uid,
		"productId": productID,
		"quantity":  quantity,
	})
	return saved, nil
}

// UpdateItemQuantity sets the quantity of an existing line, clamped to
// maxCartLineQuantity. Zero or negative quantities remove the line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (domain.Cart, error) {
	if s == nil || s.carts == nil {
		return domain.Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := findCartItem(cart.Items, productID)
	if idx < 0 {
		return domain.Cart{}, ErrCartItemNotFound
	}

	now := s.now()
	if cmd.Quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return s.persist(ctx, cart, now)
	}

	quantity := cmd.Quantity
	if quantity > maxCartLineQuantity {
		quantity = maxCartLineQuantity
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{}, ErrCartProductNotFound
		}
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	if quantity > product.Stock {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartInsufficientStock, productID)
	}
	cart.Items[idx].Quantity = quantity
	return s.persist(ctx, cart, now)
}

// RemoveItem drops a line from the cart. Removal is idempotent: a line that is
// not present leaves the cart untouched and succeeds.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if s == nil || s.carts == nil {
		return domain.Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	pid := strings.TrimSpace(productID)
	if uid == "" || pid == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	idx := findCartItem(cart.Items, pid)
	if idx < 0 {
		return cart, nil
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.persist(ctx, cart, s.now())
}

// ClearCart deletes the user's cart outright.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.carts == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.carts.Delete(ctx, uid); err != nil {
		return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	return nil
}

func (s *cartService) loadOrEmpty(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyCart(userID), nil
		}
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	if s.expired(cart) {
		return s.emptyCart(userID), nil
	}
	return cart, nil
}

func (s *cartService) persist(ctx context.Context, cart domain.Cart, now time.Time) (domain.Cart, error) {
	cart.TotalAmount = cart.Subtotal()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.ttl)
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	return saved, nil
}

func (s *cartService) emptyCart(userID string) domain.Cart {
	now := s.now()
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) expired(cart domain.Cart) bool {
	return !cart.ExpiresAt.IsZero() && cart.ExpiresAt.Before(s.now())
}

func findCartItem(items []domain.CartItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func primaryImageURL(images []domain.ProductImage) string {
	if len(images) == 0 {
		return ""
	}
	best := images[0]
	for _, image := range images[1:] {
		if image.Order < best.Order {
			best = image
		}
	}
	return best.URL
}
