package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/repositories"
)

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string       { return "repository error stub" }
func (e *repositoryErrorStub) IsNotFound() bool    { return e.notFound }
func (e *repositoryErrorStub) IsConflict() bool    { return e.conflict }
func (e *repositoryErrorStub) IsUnavailable() bool { return e.unavailable }

type stubProductRepository struct {
	insertFunc        func(ctx context.Context, product domain.Product) error
	updateFunc        func(ctx context.Context, product domain.Product) error
	findByIDFunc      func(ctx context.Context, productID string) (domain.Product, error)
	findBySlugFunc    func(ctx context.Context, slug string) (domain.Product, error)
	listFunc          func(ctx context.Context, filter repositories.ProductListFilter) (domain.PageResult[domain.Product], error)
	listFeaturedFunc  func(ctx context.Context, limit int) ([]domain.Product, error)
	setActiveFunc     func(ctx context.Context, productID string, active bool, updatedAt time.Time) error
	updateRatingsFunc func(ctx context.Context, productID string, ratings domain.ProductRatings, updatedAt time.Time) error
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFunc == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFunc(ctx, product)
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	if s.updateFunc == nil {
		return errors.New("unexpected Update call")
	}
	return s.updateFunc(ctx, product)
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFunc == nil {
		return domain.Product{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, productID)
}

func (s *stubProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if s.findBySlugFunc == nil {
		return domain.Product{}, &repositoryErrorStub{notFound: true}
	}
	return s.findBySlugFunc(ctx, slug)
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.PageResult[domain.Product], error) {
	if s.listFunc == nil {
		return domain.PageResult[domain.Product]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubProductRepository) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	if s.listFeaturedFunc == nil {
		return nil, nil
	}
	return s.listFeaturedFunc(ctx, limit)
}

func (s *stubProductRepository) SetActive(ctx context.Context, productID string, active bool, updatedAt time.Time) error {
	if s.setActiveFunc == nil {
		return errors.New("unexpected SetActive call")
	}
	return s.setActiveFunc(ctx, productID, active, updatedAt)
}

func (s *stubProductRepository) UpdateRatings(ctx context.Context, productID string, ratings domain.ProductRatings, updatedAt time.Time) error {
	if s.updateRatingsFunc == nil {
		return nil
	}
	return s.updateRatingsFunc(ctx, productID, ratings, updatedAt)
}

type stubCategoryRepository struct {
	insertFunc     func(ctx context.Context, category domain.Category) error
	updateFunc     func(ctx context.Context, category domain.Category) error
	deleteFunc     func(ctx context.Context, categoryID string) error
	findByIDFunc   func(ctx context.Context, categoryID string) (domain.Category, error)
	findBySlugFunc func(ctx context.Context, slug string) (domain.Category, error)
	listFunc       func(ctx context.Context, includeInactive bool) ([]domain.Category, error)
}

func (s *stubCategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if s.insertFunc == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFunc(ctx, category)
}

func (s *stubCategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if s.updateFunc == nil {
		return errors.New("unexpected Update call")
	}
	return s.updateFunc(ctx, category)
}

func (s *stubCategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if s.deleteFunc == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFunc(ctx, categoryID)
}

func (s *stubCategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if s.findByIDFunc == nil {
		return domain.Category{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, categoryID)
}

func (s *stubCategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if s.findBySlugFunc == nil {
		return domain.Category{}, &repositoryErrorStub{notFound: true}
	}
	return s.findBySlugFunc(ctx, slug)
}

func (s *stubCategoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, includeInactive)
}

type stubCartRepository struct {
	getFunc    func(ctx context.Context, userID string) (domain.Cart, error)
	saveFunc   func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	deleteFunc func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc == nil {
		return domain.Cart{}, &repositoryErrorStub{notFound: true}
	}
	return s.getFunc(ctx, userID)
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveFunc == nil {
		return cart, nil
	}
	return s.saveFunc(ctx, cart)
}

func (s *stubCartRepository) Delete(ctx context.Context, userID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, userID)
}

type stubOrderRepository struct {
	createFunc           func(ctx context.Context, order domain.Order) error
	cancelAndRestockFunc func(ctx context.Context, order domain.Order) error
	updateFunc           func(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error
	findByIDFunc         func(ctx context.Context, orderID string) (domain.Order, error)
	listFunc             func(ctx context.Context, filter repositories.OrderListFilter) (domain.PageResult[domain.Order], error)
	statisticsFunc       func(ctx context.Context) (domain.OrderStatistics, error)
}

func (s *stubOrderRepository) Create(ctx context.Context, order domain.Order) error {
	if s.createFunc == nil {
		return errors.New("unexpected Create call")
	}
	return s.createFunc(ctx, order)
}

func (s *stubOrderRepository) CancelAndRestock(ctx context.Context, order domain.Order) error {
	if s.cancelAndRestockFunc == nil {
		return errors.New("unexpected CancelAndRestock call")
	}
	return s.cancelAndRestockFunc(ctx, order)
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) error {
	if s.updateFunc == nil {
		return errors.New("unexpected Update call")
	}
	return s.updateFunc(ctx, order, expectedStatus)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, orderID)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.PageResult[domain.Order], error) {
	if s.listFunc == nil {
		return domain.PageResult[domain.Order]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderRepository) Statistics(ctx context.Context) (domain.OrderStatistics, error) {
	if s.statisticsFunc == nil {
		return domain.OrderStatistics{}, nil
	}
	return s.statisticsFunc(ctx)
}

type stubReviewRepository struct {
	insertFunc               func(ctx context.Context, review domain.Review) error
	updateFunc               func(ctx context.Context, review domain.Review) error
	deleteFunc               func(ctx context.Context, reviewID string) error
	findByIDFunc             func(ctx context.Context, reviewID string) (domain.Review, error)
	findByProductAndUserFunc func(ctx context.Context, productID, userID string) (domain.Review, error)
	listByProductFunc        func(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error)
	listByUserFunc           func(ctx context.Context, userID string) ([]domain.Review, error)
}

func (s *stubReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	if s.insertFunc == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFunc(ctx, review)
}

func (s *stubReviewRepository) Update(ctx context.Context, review domain.Review) error {
	if s.updateFunc == nil {
		return errors.New("unexpected Update call")
	}
	return s.updateFunc(ctx, review)
}

func (s *stubReviewRepository) Delete(ctx context.Context, reviewID string) error {
	if s.deleteFunc == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFunc(ctx, reviewID)
}

func (s *stubReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	if s.findByIDFunc == nil {
		return domain.Review{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, reviewID)
}

func (s *stubReviewRepository) FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error) {
	if s.findByProductAndUserFunc == nil {
		return domain.Review{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByProductAndUserFunc(ctx, productID, userID)
}

func (s *stubReviewRepository) ListByProduct(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error) {
	if s.listByProductFunc == nil {
		return domain.PageResult[domain.Review]{}, nil
	}
	return s.listByProductFunc(ctx, productID, page)
}

func (s *stubReviewRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	if s.listByUserFunc == nil {
		return nil, nil
	}
	return s.listByUserFunc(ctx, userID)
}

type stubUserRepository struct {
	insertFunc      func(ctx context.Context, user domain.User) error
	updateFunc      func(ctx context.Context, user domain.User) error
	findByIDFunc    func(ctx context.Context, userID string) (domain.User, error)
	findByEmailFunc func(ctx context.Context, email string) (domain.User, error)
}

func (s *stubUserRepository) Insert(ctx context.Context, user domain.User) error {
	if s.insertFunc == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFunc(ctx, user)
}

func (s *stubUserRepository) Update(ctx context.Context, user domain.User) error {
	if s.updateFunc == nil {
		return nil
	}
	return s.updateFunc(ctx, user)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByIDFunc == nil {
		return domain.User{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, userID)
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if s.findByEmailFunc == nil {
		return domain.User{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByEmailFunc(ctx, email)
}

type stubPaymentProcessor struct {
	chargeFunc func(ctx context.Context, charge PaymentCharge) (PaymentResult, error)
}

func (s *stubPaymentProcessor) Charge(ctx context.Context, charge PaymentCharge) (PaymentResult, error) {
	if s.chargeFunc == nil {
		return PaymentResult{}, errors.New("unexpected Charge call")
	}
	return s.chargeFunc(ctx, charge)
}

type stubOrderEventPublisher struct {
	publishFunc func(ctx context.Context, message OrderEventMessage) (string, error)
	messages    []OrderEventMessage
}

func (s *stubOrderEventPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	s.messages = append(s.messages, message)
	if s.publishFunc == nil {
		return "msg-1", nil
	}
	return s.publishFunc(ctx, message)
}

type stubTokenIssuer struct {
	issueFunc func(uid, email, name, role string) (string, time.Time, error)
}

func (s *stubTokenIssuer) Issue(uid, email, name, role string) (string, time.Time, error) {
	if s.issueFunc == nil {
		return "token-" + uid, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), nil
	}
	return s.issueFunc(uid, email, name, role)
}
