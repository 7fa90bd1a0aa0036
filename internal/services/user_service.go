package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/repositories"
)

var (
	errUserRepositoryRequired = errors.New("user service: user repository is required")
	errUserTokensRequired     = errors.New("user service: token issuer is required")
	errUserClockRequired      = errors.New("user service: clock is required")
)

// ErrUserInvalidInput indicates the caller supplied invalid input.
var ErrUserInvalidInput = errors.New("user service: invalid input")

// ErrUserUnavailable indicates the backend could not fulfil the request.
var ErrUserUnavailable = errors.New("user service: unavailable")

// ErrUserNotFound indicates the account does not exist.
var ErrUserNotFound = errors.New("user service: not found")

// ErrUserEmailTaken indicates the email is already registered.
var ErrUserEmailTaken = errors.New("user service: email taken")

// ErrUserInvalidCredentials indicates the email/password pair did not match.
var ErrUserInvalidCredentials = errors.New("user service: invalid credentials")

// ErrUserAddressNotFound indicates the referenced address is not on the profile.
var ErrUserAddressNotFound = errors.New("user service: address not found")

const minPasswordLength = 8

// TokenIssuer mints access tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(uid, email, name, role string) (string, time.Time, error)
}

// UserServiceDeps wires the repositories and token issuer for account operations.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Products    repositories.ProductRepository
	Tokens      TokenIssuer
	Clock       func() time.Time
	IDGenerator func() string
	BcryptCost  int
	Logger      func(context.Context, string, map[string]any)
}

type userService struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
	tokens   TokenIssuer
	now      func() time.Time
	newID    func() string
	cost     int
	logger   func(context.Context, string, map[string]any)
}

// NewUserService constructs a UserService enforcing dependency validation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errUserRepositoryRequired
	}
	if deps.Tokens == nil {
		return nil, errUserTokensRequired
	}
	if deps.Clock == nil {
		return nil, errUserClockRequired
	}

	cost := deps.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:    deps.Users,
		products: deps.Products,
		tokens:   deps.Tokens,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    newID,
		cost:     cost,
		logger:   logger,
	}, nil
}

// Register creates an account with a bcrypt password digest and returns a
// freshly minted access token.
func (s *userService) Register(ctx context.Context, cmd RegisterCommand) (AuthResult, error) {
	if s == nil || s.users == nil {
		return AuthResult{}, ErrUserUnavailable
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	name := strings.TrimSpace(cmd.Name)
	if name == "" || !validEmail(email) || len(cmd.Password) < minPasswordLength {
		return AuthResult{}, ErrUserInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.cost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}

	now := s.now()
	user := domain.User{
		ID:           s.newID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if isRepoConflict(err) {
			return AuthResult{}, ErrUserEmailTaken
		}
		return AuthResult{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}

	s.logger(ctx, "user.registered", map[string]any{"userId": user.ID})
	return s.issueToken(user)
}

// Login verifies the password against the stored digest and mints a token.
func (s *userService) Login(ctx context.Context, cmd LoginCommand) (AuthResult, error) {
	if s == nil || s.users == nil {
		return AuthResult{}, ErrUserUnavailable
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" || cmd.Password == "" {
		return AuthResult{}, ErrUserInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isRepoNotFound(err) {
			return AuthResult{}, ErrUserInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}
	if !user.Active {
		return AuthResult{}, ErrUserInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)); err != nil {
		return AuthResult{}, ErrUserInvalidCredentials
	}

	now := s.now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger(ctx, "user.last_login_update_failed", map[string]any{
			"userId": user.ID,
			"error":  err.Error(),
		})
	}
	return s.issueToken(user)
}

// GetProfile loads the account record.
func (s *userService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	return s.load(ctx, userID)
}

// UpdateProfile changes the writable profile fields.
func (s *userService) UpdateProfile(ctx context.Context, userID string, cmd UpdateProfileCommand) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if cmd.Name == nil {
		return user, nil
	}
	name := strings.TrimSpace(*cmd.Name)
	if name == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	user.Name = name
	return s.save(ctx, user)
}

// ChangePassword verifies the current credential before storing a new digest.
func (s *userService) ChangePassword(ctx context.Context, userID string, cmd ChangePasswordCommand) error {
	if s == nil || s.users == nil {
		return ErrUserUnavailable
	}
	if len(cmd.NewPassword) < minPasswordLength {
		return ErrUserInvalidInput
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.CurrentPassword)); err != nil {
		return ErrUserInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}
	user.PasswordHash = string(hash)
	if _, err := s.save(ctx, user); err != nil {
		return err
	}
	s.logger(ctx, "user.password_changed", map[string]any{"userId": user.ID})
	return nil
}

// AddAddress appends a postal address to the profile. The first address, or an
// address flagged as default, becomes the default.
func (s *userService) AddAddress(ctx context.Context, userID string, address domain.Address) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	if err := validateAddress(address); err != nil {
		return domain.User{}, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	address.ID = s.newID()
	if len(user.Addresses) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		for i := range user.Addresses {
			user.Addresses[i].IsDefault = false
		}
	}
	user.Addresses = append(user.Addresses, address)
	return s.save(ctx, user)
}

// UpdateAddress rewrites an existing address on the profile.
func (s *userService) UpdateAddress(ctx context.Context, userID string, address domain.Address) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	if strings.TrimSpace(address.ID) == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	if err := validateAddress(address); err != nil {
		return domain.User{}, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	idx := -1
	for i, existing := range user.Addresses {
		if existing.ID == address.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.User{}, ErrUserAddressNotFound
	}

	if address.IsDefault {
		for i := range user.Addresses {
			user.Addresses[i].IsDefault = false
		}
	}
	user.Addresses[idx] = address
	if !hasDefaultAddress(user.Addresses) {
		user.Addresses[idx].IsDefault = true
	}
	return s.save(ctx, user)
}

// RemoveAddress drops an address; the default flag moves to the first
// remaining address when the default was removed.
func (s *userService) RemoveAddress(ctx context.Context, userID, addressID string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	idx := -1
	for i, existing := range user.Addresses {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.User{}, ErrUserAddressNotFound
	}

	removedDefault := user.Addresses[idx].IsDefault
	user.Addresses = append(user.Addresses[:idx], user.Addresses[idx+1:]...)
	if removedDefault && len(user.Addresses) > 0 {
		user.Addresses[0].IsDefault = true
	}
	return s.save(ctx, user)
}

// AddToWishlist records a product on the wishlist, deduplicated.
func (s *userService) AddToWishlist(ctx context.Context, userID, productID string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	if s.products != nil {
		if _, err := s.products.FindByID(ctx, pid); err != nil {
			if isRepoNotFound(err) {
				return domain.User{}, ErrUserInvalidInput
			}
			return domain.User{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
		}
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	for _, existing := range user.Wishlist {
		if existing == pid {
			return user, nil
		}
	}
	user.Wishlist = append(user.Wishlist, pid)
	return s.save(ctx, user)
}

// RemoveFromWishlist drops a product from the wishlist; absent entries are a no-op.
func (s *userService) RemoveFromWishlist(ctx context.Context, userID, productID string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrUserUnavailable
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	filtered := user.Wishlist[:0]
	for _, existing := range user.Wishlist {
		if existing != pid {
			filtered = append(filtered, existing)
		}
	}
	user.Wishlist = filtered
	return s.save(ctx, user)
}

func (s *userService) load(ctx context.Context, userID string) (domain.User, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}
	return user, nil
}

func (s *userService) save(ctx context.Context, user domain.User) (domain.User, error) {
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}
	return user, nil
}

func (s *userService) issueToken(user domain.User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}
	return AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

func validateAddress(address domain.Address) error {
	if strings.TrimSpace(address.FullName) == "" ||
		strings.TrimSpace(address.Line1) == "" ||
		strings.TrimSpace(address.City) == "" ||
		strings.TrimSpace(address.PostalCode) == "" ||
		strings.TrimSpace(address.Country) == "" {
		return ErrUserInvalidInput
	}
	return nil
}

func hasDefaultAddress(addresses []domain.Address) bool {
	for _, address := range addresses {
		if address.IsDefault {
			return true
		}
	}
	return false
}
