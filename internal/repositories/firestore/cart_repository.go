package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/repositories"
)

const (
	cartCollection = "carts"
)

// CartRepository persists per-user carts within Firestore. The cart document
// ID is the owning user's ID, one active cart per user.
type CartRepository struct {
	coll     *pfirestore.Collection[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		coll:     pfirestore.NewCollection[cartDocument](provider, cartCollection),
		provider: provider,
	}, nil
}

// Get loads the user's cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.coll == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	doc, err := r.coll.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Save writes the cart document keyed by user ID and echoes the stored state.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.coll == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	if err := r.coll.Set(ctx, userID, newCartDocument(cart)); err != nil {
		return domain.Cart{}, err
	}
	cart.ID = userID
	return cart, nil
}

// Delete removes the user's cart. A missing cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.coll == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	err := r.coll.Delete(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
		return err
	}
	return nil
}

type cartDocument struct {
	UserID      string             `firestore:"userId"`
	Currency    string             `firestore:"currency"`
	Items       []cartItemDocument `firestore:"items,omitempty"`
	TotalAmount int64              `firestore:"totalAmount"`
	ExpiresAt   time.Time          `firestore:"expiresAt"`
	CreatedAt   time.Time          `firestore:"createdAt"`
	UpdatedAt   time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string    `firestore:"productId"`
	Name      string    `firestore:"name"`
	ImageURL  string    `firestore:"imageUrl,omitempty"`
	UnitPrice int64     `firestore:"unitPrice"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		UserID:      strings.TrimSpace(cart.UserID),
		Currency:    strings.ToUpper(strings.TrimSpace(cart.Currency)),
		TotalAmount: cart.TotalAmount,
		ExpiresAt:   cart.ExpiresAt.UTC(),
		CreatedAt:   cart.CreatedAt.UTC(),
		UpdatedAt:   cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		})
	}
	return doc
}

func (d cartDocument) toDomain(id string) domain.Cart {
	cart := domain.Cart{
		ID:          id,
		UserID:      d.UserID,
		Currency:    d.Currency,
		TotalAmount: d.TotalAmount,
		ExpiresAt:   d.ExpiresAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, item := range d.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
