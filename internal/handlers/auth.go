package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/platform/httpx"
	"github.com/techcycle/api/internal/services"
)

// AuthHandlers exposes account registration, login and profile endpoints.
type AuthHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(authn *auth.Authenticator, users services.UserService) *AuthHandlers {
	return &AuthHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /auth endpoints. Register and login are public; the
// rest require a session.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)

	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth())
		}
		private.Get("/me", h.me)
		private.Put("/profile", h.updateProfile)
		private.Put("/password", h.changePassword)
		private.Post("/addresses", h.addAddress)
		private.Put("/addresses/{addressID}", h.updateAddress)
		private.Delete("/addresses/{addressID}", h.removeAddress)
		private.Post("/wishlist/{productID}", h.addToWishlist)
		private.Delete("/wishlist/{productID}", h.removeFromWishlist)
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name *string `json:"name"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type addressRequest struct {
	Label      string `json:"label"`
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"isDefault"`
}

type authResponse struct {
	User      userPayload `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
}

type userPayload struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Role        string           `json:"role"`
	Addresses   []addressPayload `json:"addresses"`
	Wishlist    []string         `json:"wishlist"`
	CreatedAt   string           `json:"createdAt"`
	LastLoginAt string           `json:"lastLoginAt,omitempty"`
}

type addressPayload struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	IsDefault  bool   `json:"isDefault"`
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req registerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.users.Register(ctx, services.RegisterCommand{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildAuthResponse(result))
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.users.Login(ctx, services.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAuthResponse(result))
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}

func (h *AuthHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(ctx, identity.UID, services.UpdateProfileCommand{Name: req.Name})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}

func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	err := h.users.ChangePassword(ctx, identity.UID, services.ChangePasswordCommand{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "password updated")
}

func (h *AuthHandlers) addAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	var req addressRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.users.AddAddress(ctx, identity.UID, req.toDomain(""))
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildUserPayload(user))
}

func (h *AuthHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	var req addressRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.users.UpdateAddress(ctx, identity.UID, req.toDomain(addressID))
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}

func (h *AuthHandlers) removeAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	user, err := h.users.RemoveAddress(ctx, identity.UID, addressID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}

func (h *AuthHandlers) addToWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	user, err := h.users.AddToWishlist(ctx, identity.UID, productID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}

func (h *AuthHandlers) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	user, err := h.users.RemoveFromWishlist(ctx, identity.UID, productID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUserPayload(user))
}

func (req addressRequest) toDomain(id string) domain.Address {
	return domain.Address{
		ID:         id,
		Label:      strings.TrimSpace(req.Label),
		FullName:   strings.TrimSpace(req.FullName),
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      strings.TrimSpace(req.Line2),
		City:       strings.TrimSpace(req.City),
		State:      strings.TrimSpace(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		Phone:      strings.TrimSpace(req.Phone),
		IsDefault:  req.IsDefault,
	}
}

func buildAuthResponse(result services.AuthResult) authResponse {
	return authResponse{
		User:      buildUserPayload(result.User),
		Token:     result.Token,
		ExpiresAt: formatTime(result.ExpiresAt),
	}
}

func buildUserPayload(user domain.User) userPayload {
	addresses := make([]addressPayload, 0, len(user.Addresses))
	for _, address := range user.Addresses {
		addresses = append(addresses, buildAddressPayload(address))
	}
	wishlist := user.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}
	return userPayload{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        string(user.Role),
		Addresses:   addresses,
		Wishlist:    wishlist,
		CreatedAt:   formatTime(user.CreatedAt),
		LastLoginAt: formatTimePtr(user.LastLoginAt),
	}
}

func buildAddressPayload(address domain.Address) addressPayload {
	return addressPayload{
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
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email already registered", http.StatusConflict))
	case errors.Is(err, services.ErrUserInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid email or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process account request", http.StatusInternalServerError))
	}
}
