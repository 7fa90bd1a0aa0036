package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/techcycle/api/internal/domain"
	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/repositories"
)

const (
	userCollection = "users"

	// userEmailCollection holds one index document per registered email so
	// uniqueness can be enforced transactionally.
	userEmailCollection = "user_emails"
)

// UserRepository persists account records within Firestore.
type UserRepository struct {
	coll     *pfirestore.Collection[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		coll:     pfirestore.NewCollection[userDocument](provider, userCollection),
		provider: provider,
	}, nil
}

// Insert creates the user and claims their email in one transaction. A
// conflict error is returned when the email is already registered.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if r == nil || r.provider == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user repository: user id is required")
	}
	email := normalizeEmail(user.Email)
	if email == "" {
		return errors.New("user repository: email is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return pfirestore.WrapError("users.insert", err)
	}

	userRef := client.Collection(userCollection).Doc(user.ID)
	emailRef := client.Collection(userEmailCollection).Doc(email)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(emailRef)
		switch {
		case err == nil:
			return pfirestore.ConflictError("users.insert", errors.New("email already registered"))
		case status.Code(err) != codes.NotFound:
			return err
		}
		if err := tx.Create(emailRef, map[string]any{"userId": user.ID}); err != nil {
			return err
		}
		return tx.Create(userRef, newUserDocument(user))
	})
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) {
			return err
		}
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

// Update overwrites the user document. The email index is not touched; email
// changes are not supported.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	if r == nil || r.coll == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user repository: user id is required")
	}
	return r.coll.Set(ctx, user.ID, newUserDocument(user))
}

// FindByID loads a user by document ID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.coll == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	doc, err := r.coll.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.User{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByEmail loads a user by their normalized email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.coll == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, errors.New("user repository: email is required")
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", email).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, pfirestore.NotFoundError("users.findByEmail", errors.New("user not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type userDocument struct {
	Email        string            `firestore:"email"`
	Name         string            `firestore:"name"`
	PasswordHash string            `firestore:"passwordHash"`
	Role         string            `firestore:"role"`
	Addresses    []addressDocument `firestore:"addresses,omitempty"`
	Wishlist     []string          `firestore:"wishlist,omitempty"`
	Active       bool              `firestore:"active"`
	CreatedAt    time.Time         `firestore:"createdAt"`
	UpdatedAt    time.Time         `firestore:"updatedAt"`
	LastLoginAt  *time.Time        `firestore:"lastLoginAt,omitempty"`
}

type addressDocument struct {
	ID         string `firestore:"id"`
	Label      string `firestore:"label,omitempty"`
	FullName   string `firestore:"fullName"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
	IsDefault  bool   `firestore:"isDefault"`
}

func newUserDocument(user domain.User) userDocument {
	doc := userDocument{
		Email:        normalizeEmail(user.Email),
		Name:         strings.TrimSpace(user.Name),
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		Wishlist:     append([]string(nil), user.Wishlist...),
		Active:       user.Active,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
		LastLoginAt:  utcTimePtr(user.LastLoginAt),
	}
	for _, address := range user.Addresses {
		doc.Addresses = append(doc.Addresses, addressDocument{
			ID:         address.ID,
			Label:      address.Label,
			FullName:   address.FullName,
			Line1:      address.Line1,
			Line2:      address.Line2,
			City:       address.City,
			State:      address.State,
			PostalCode: address.PostalCode,
			Country:    address.Country,
			Phone:      address.Phone,
			IsDefault:  address.IsDefault,
		})
	}
	return doc
}

func (d userDocument) toDomain(id string) domain.User {
	user := domain.User{
		ID:           id,
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Role:         domain.UserRole(d.Role),
		Wishlist:     append([]string(nil), d.Wishlist...),
		Active:       d.Active,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastLoginAt:  d.LastLoginAt,
	}
	for _, address := range d.Addresses {
		user.Addresses = append(user.Addresses, domain.Address{
			ID:         address.ID,
			Label:      address.Label,
			FullName:   address.FullName,
			Line1:      address.Line1,
			Line2:      address.Line2,
			City:       address.City,
			State:      address.State,
			PostalCode: address.PostalCode,
			Country:    address.Country,
			Phone:      address.Phone,
			IsDefault:  address.IsDefault,
		})
	}
	return user
}

var _ repositories.UserRepository = (*UserRepository)(nil)
