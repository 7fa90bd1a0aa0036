package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/services"
)

const testJWTSecret = "handler-test-secret"

var errContrived = errors.New("contrived failure")

func newTestAuthenticator(t *testing.T) (*auth.Authenticator, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenServiceDeps{
		Secret: testJWTSecret,
		Issuer: "techcycle-test",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing token service: %v", err)
	}
	return auth.NewAuthenticator(tokens), tokens
}

func bearerToken(t *testing.T, tokens *auth.TokenService, uid, role string) string {
	t.Helper()
	token, _, err := tokens.Issue(uid, uid+"@example.com", "Test User", role)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, router chi.Router, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error decoding response body %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) testEnvelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if len(env.Data) == 0 {
		t.Fatalf("response envelope carries no data: %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("unexpected error decoding data payload: %v", err)
	}
	return env
}

type stubCartService struct {
	getCartFunc            func(ctx context.Context, userID string) (domain.Cart, error)
	addItemFunc            func(ctx context.Context, cmd services.AddCartItemCommand) (domain.Cart, error)
	updateItemQuantityFunc func(ctx context.Context, cmd services.UpdateCartItemCommand) (domain.Cart, error)
	removeItemFunc         func(ctx context.Context, userID, productID string) (domain.Cart, error)
	clearCartFunc          func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getCartFunc == nil {
		return domain.Cart{}, errors.New("unexpected GetCart call")
	}
	return s.getCartFunc(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (domain.Cart, error) {
	if s.addItemFunc == nil {
		return domain.Cart{}, errors.New("unexpected AddItem call")
	}
	return s.addItemFunc(ctx, cmd)
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateCartItemCommand) (domain.Cart, error) {
	if s.updateItemQuantityFunc == nil {
		return domain.Cart{}, errors.New("unexpected UpdateItemQuantity call")
	}
	return s.updateItemQuantityFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if s.removeItemFunc == nil {
		return domain.Cart{}, errors.New("unexpected RemoveItem call")
	}
	return s.removeItemFunc(ctx, userID, productID)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearCartFunc == nil {
		return errors.New("unexpected ClearCart call")
	}
	return s.clearCartFunc(ctx, userID)
}

type stubOrderService struct {
	createOrderFunc    func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error)
	getOrderFunc       func(ctx context.Context, requester services.Requester, orderID string) (domain.Order, error)
	listUserOrdersFunc func(ctx context.Context, userID string, page domain.Page) (domain.PageResult[domain.Order], error)
	listOrdersFunc     func(ctx context.Context, query services.OrderListQuery) (domain.PageResult[domain.Order], error)
	updateStatusFunc   func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error)
	cancelOrderFunc    func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error)
	statisticsFunc     func(ctx context.Context) (domain.OrderStatistics, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createOrderFunc == nil {
		return domain.Order{}, errors.New("unexpected CreateOrder call")
	}
	return s.createOrderFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, requester services.Requester, orderID string) (domain.Order, error) {
	if s.getOrderFunc == nil {
		return domain.Order{}, errors.New("unexpected GetOrder call")
	}
	return s.getOrderFunc(ctx, requester, orderID)
}

func (s *stubOrderService) ListUserOrders(ctx context.Context, userID string, page domain.Page) (domain.PageResult[domain.Order], error) {
	if s.listUserOrdersFunc == nil {
		return domain.PageResult[domain.Order]{}, errors.New("unexpected ListUserOrders call")
	}
	return s.listUserOrdersFunc(ctx, userID, page)
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.OrderListQuery) (domain.PageResult[domain.Order], error) {
	if s.listOrdersFunc == nil {
		return domain.PageResult[domain.Order]{}, errors.New("unexpected ListOrders call")
	}
	return s.listOrdersFunc(ctx, query)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
	if s.updateStatusFunc == nil {
		return domain.Order{}, errors.New("unexpected UpdateStatus call")
	}
	return s.updateStatusFunc(ctx, cmd)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelOrderFunc == nil {
		return domain.Order{}, errors.New("unexpected CancelOrder call")
	}
	return s.cancelOrderFunc(ctx, cmd)
}

func (s *stubOrderService) Statistics(ctx context.Context) (domain.OrderStatistics, error) {
	if s.statisticsFunc == nil {
		return domain.OrderStatistics{}, errors.New("unexpected Statistics call")
	}
	return s.statisticsFunc(ctx)
}

type stubCatalogService struct {
	listProductsFunc         func(ctx context.Context, query services.ProductListQuery) (domain.PageResult[domain.Product], error)
	getProductFunc           func(ctx context.Context, idOrSlug string) (domain.Product, error)
	listFeaturedProductsFunc func(ctx context.Context) ([]domain.Product, error)
	createProductFunc        func(ctx context.Context, cmd services.ProductInput) (domain.Product, error)
	updateProductFunc        func(ctx context.Context, productID string, cmd services.ProductInput) (domain.Product, error)
	deactivateProductFunc    func(ctx context.Context, productID string) error
	listCategoriesFunc       func(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	getCategoryFunc          func(ctx context.Context, idOrSlug string) (domain.Category, error)
	createCategoryFunc       func(ctx context.Context, cmd services.CategoryInput) (domain.Category, error)
	updateCategoryFunc       func(ctx context.Context, categoryID string, cmd services.CategoryInput) (domain.Category, error)
	deleteCategoryFunc       func(ctx context.Context, categoryID string) error
}

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductListQuery) (domain.PageResult[domain.Product], error) {
	if s.listProductsFunc == nil {
		return domain.PageResult[domain.Product]{}, errors.New("unexpected ListProducts call")
	}
	return s.listProductsFunc(ctx, query)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, idOrSlug string) (domain.Product, error) {
	if s.getProductFunc == nil {
		return domain.Product{}, errors.New("unexpected GetProduct call")
	}
	return s.getProductFunc(ctx, idOrSlug)
}

func (s *stubCatalogService) ListFeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	if s.listFeaturedProductsFunc == nil {
		return nil, errors.New("unexpected ListFeaturedProducts call")
	}
	return s.listFeaturedProductsFunc(ctx)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.ProductInput) (domain.Product, error) {
	if s.createProductFunc == nil {
		return domain.Product{}, errors.New("unexpected CreateProduct call")
	}
	return s.createProductFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, productID string, cmd services.ProductInput) (domain.Product, error) {
	if s.updateProductFunc == nil {
		return domain.Product{}, errors.New("unexpected UpdateProduct call")
	}
	return s.updateProductFunc(ctx, productID, cmd)
}

func (s *stubCatalogService) DeactivateProduct(ctx context.Context, productID string) error {
	if s.deactivateProductFunc == nil {
		return errors.New("unexpected DeactivateProduct call")
	}
	return s.deactivateProductFunc(ctx, productID)
}

func (s *stubCatalogService) ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	if s.listCategoriesFunc == nil {
		return nil, errors.New("unexpected ListCategories call")
	}
	return s.listCategoriesFunc(ctx, includeInactive)
}

func (s *stubCatalogService) GetCategory(ctx context.Context, idOrSlug string) (domain.Category, error) {
	if s.getCategoryFunc == nil {
		return domain.Category{}, errors.New("unexpected GetCategory call")
	}
	return s.getCategoryFunc(ctx, idOrSlug)
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, cmd services.CategoryInput) (domain.Category, error) {
	if s.createCategoryFunc == nil {
		return domain.Category{}, errors.New("unexpected CreateCategory call")
	}
	return s.createCategoryFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateCategory(ctx context.Context, categoryID string, cmd services.CategoryInput) (domain.Category, error) {
	if s.updateCategoryFunc == nil {
		return domain.Category{}, errors.New("unexpected UpdateCategory call")
	}
	return s.updateCategoryFunc(ctx, categoryID, cmd)
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s.deleteCategoryFunc == nil {
		return errors.New("unexpected DeleteCategory call")
	}
	return s.deleteCategoryFunc(ctx, categoryID)
}

type stubReviewService struct {
	createReviewFunc       func(ctx context.Context, cmd services.ReviewInput) (domain.Review, error)
	updateReviewFunc       func(ctx context.Context, requester services.Requester, reviewID string, cmd services.ReviewInput) (domain.Review, error)
	deleteReviewFunc       func(ctx context.Context, requester services.Requester, reviewID string) error
	toggleHelpfulFunc      func(ctx context.Context, userID, reviewID string) (domain.Review, error)
	listProductReviewsFunc func(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error)
	listUserReviewsFunc    func(ctx context.Context, userID string) ([]domain.Review, error)
}

func (s *stubReviewService) CreateReview(ctx context.Context, cmd services.ReviewInput) (domain.Review, error) {
	if s.createReviewFunc == nil {
		return domain.Review{}, errors.New("unexpected CreateReview call")
	}
	return s.createReviewFunc(ctx, cmd)
}

func (s *stubReviewService) UpdateReview(ctx context.Context, requester services.Requester, reviewID string, cmd services.ReviewInput) (domain.Review, error) {
	if s.updateReviewFunc == nil {
		return domain.Review{}, errors.New("unexpected UpdateReview call")
	}
	return s.updateReviewFunc(ctx, requester, reviewID, cmd)
}

func (s *stubReviewService) DeleteReview(ctx context.Context, requester services.Requester, reviewID string) error {
	if s.deleteReviewFunc == nil {
		return errors.New("unexpected DeleteReview call")
	}
	return s.deleteReviewFunc(ctx, requester, reviewID)
}

func (s *stubReviewService) ToggleHelpful(ctx context.Context, userID, reviewID string) (domain.Review, error) {
	if s.toggleHelpfulFunc == nil {
		return domain.Review{}, errors.New("unexpected ToggleHelpful call")
	}
	return s.toggleHelpfulFunc(ctx, userID, reviewID)
}

func (s *stubReviewService) ListProductReviews(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error) {
	if s.listProductReviewsFunc == nil {
		return domain.PageResult[domain.Review]{}, errors.New("unexpected ListProductReviews call")
	}
	return s.listProductReviewsFunc(ctx, productID, page)
}

func (s *stubReviewService) ListUserReviews(ctx context.Context, userID string) ([]domain.Review, error) {
	if s.listUserReviewsFunc == nil {
		return nil, errors.New("unexpected ListUserReviews call")
	}
	return s.listUserReviewsFunc(ctx, userID)
}

type stubUserService struct {
	registerFunc           func(ctx context.Context, cmd services.RegisterCommand) (services.AuthResult, error)
	loginFunc              func(ctx context.Context, cmd services.LoginCommand) (services.AuthResult, error)
	getProfileFunc         func(ctx context.Context, userID string) (domain.User, error)
	updateProfileFunc      func(ctx context.Context, userID string, cmd services.UpdateProfileCommand) (domain.User, error)
	changePasswordFunc     func(ctx context.Context, userID string, cmd services.ChangePasswordCommand) error
	addAddressFunc         func(ctx context.Context, userID string, address domain.Address) (domain.User, error)
	updateAddressFunc      func(ctx context.Context, userID string, address domain.Address) (domain.User, error)
	removeAddressFunc      func(ctx context.Context, userID, addressID string) (domain.User, error)
	addToWishlistFunc      func(ctx context.Context, userID, productID string) (domain.User, error)
	removeFromWishlistFunc func(ctx context.Context, userID, productID string) (domain.User, error)
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterCommand) (services.AuthResult, error) {
	if s.registerFunc == nil {
		return services.AuthResult{}, errors.New("unexpected Register call")
	}
	return s.registerFunc(ctx, cmd)
}

func (s *stubUserService) Login(ctx context.Context, cmd services.LoginCommand) (services.AuthResult, error) {
	if s.loginFunc == nil {
		return services.AuthResult{}, errors.New("unexpected Login call")
	}
	return s.loginFunc(ctx, cmd)
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if s.getProfileFunc == nil {
		return domain.User{}, errors.New("unexpected GetProfile call")
	}
	return s.getProfileFunc(ctx, userID)
}

func (s *stubUserService) UpdateProfile(ctx context.Context, userID string, cmd services.UpdateProfileCommand) (domain.User, error) {
	if s.updateProfileFunc == nil {
		return domain.User{}, errors.New("unexpected UpdateProfile call")
	}
	return s.updateProfileFunc(ctx, userID, cmd)
}

func (s *stubUserService) ChangePassword(ctx context.Context, userID string, cmd services.ChangePasswordCommand) error {
	if s.changePasswordFunc == nil {
		return errors.New("unexpected ChangePassword call")
	}
	return s.changePasswordFunc(ctx, userID, cmd)
}

func (s *stubUserService) AddAddress(ctx context.Context, userID string, address domain.Address) (domain.User, error) {
	if s.addAddressFunc == nil {
		return domain.User{}, errors.New("unexpected AddAddress call")
	}
	return s.addAddressFunc(ctx, userID, address)
}

func (s *stubUserService) UpdateAddress(ctx context.Context, userID string, address domain.Address) (domain.User, error) {
	if s.updateAddressFunc == nil {
		return domain.User{}, errors.New("unexpected UpdateAddress call")
	}
	return s.updateAddressFunc(ctx, userID, address)
}

func (s *stubUserService) RemoveAddress(ctx context.Context, userID, addressID string) (domain.User, error) {
	if s.removeAddressFunc == nil {
		return domain.User{}, errors.New("unexpected RemoveAddress call")
	}
	return s.removeAddressFunc(ctx, userID, addressID)
}

func (s *stubUserService) AddToWishlist(ctx context.Context, userID, productID string) (domain.User, error) {
	if s.addToWishlistFunc == nil {
		return domain.User{}, errors.New("unexpected AddToWishlist call")
	}
	return s.addToWishlistFunc(ctx, userID, productID)
}

func (s *stubUserService) RemoveFromWishlist(ctx context.Context, userID, productID string) (domain.User, error) {
	if s.removeFromWishlistFunc == nil {
		return domain.User{}, errors.New("unexpected RemoveFromWishlist call")
	}
	return s.removeFromWishlistFunc(ctx, userID, productID)
}

var (
	_ services.CartService    = (*stubCartService)(nil)
	_ services.OrderService   = (*stubOrderService)(nil)
	_ services.CatalogService = (*stubCatalogService)(nil)
	_ services.ReviewService  = (*stubReviewService)(nil)
	_ services.UserService    = (*stubUserService)(nil)
)
