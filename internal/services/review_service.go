package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/repositories"
)

var (
	errReviewRepositoryRequired = errors.New("review service: review repository is required")
	errReviewProductsRequired   = errors.New("review service: product repository is required")
	errReviewClockRequired      = errors.New("review service: clock is required")
)

// ErrReviewInvalidInput indicates the caller supplied invalid input.
var ErrReviewInvalidInput = errors.New("review service: invalid input")

// ErrReviewUnavailable indicates the backend could not fulfil the request.
var ErrReviewUnavailable = errors.New("review service: unavailable")

// ErrReviewNotFound indicates the requested review does not exist.
var ErrReviewNotFound = errors.New("review service: not found")

// ErrReviewForbidden indicates the requester does not own the review and is not an admin.
var ErrReviewForbidden = errors.New("review service: forbidden")

// ErrReviewProductNotFound indicates the reviewed product does not exist.
var ErrReviewProductNotFound = errors.New("review service: product not found")

// ErrReviewDuplicate indicates the user already reviewed this product.
var ErrReviewDuplicate = errors.New("review service: already reviewed")

// ReviewServiceDeps wires the repositories for review operations.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Products    repositories.ProductRepository
	Orders      repositories.OrderRepository
	Users       repositories.UserRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	users    repositories.UserRepository
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewReviewService constructs a ReviewService enforcing dependency validation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errReviewRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errReviewProductsRequired
	}
	if deps.Clock == nil {
		return nil, errReviewClockRequired
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews:  deps.Reviews,
		products: deps.Products,
		orders:   deps.Orders,
		users:    deps.Users,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    newID,
		logger:   logger,
	}, nil
}

// CreateReview stores a new review, one per user and product, and folds the
// rating into the product's aggregate.
func (s *reviewService) CreateReview(ctx context.Context, cmd ReviewInput) (domain.Review, error) {
	if s == nil || s.reviews == nil {
		return domain.Review{}, ErrReviewUnavailable
	}
	productID := strings.TrimSpace(cmd.ProductID)
	userID := strings.TrimSpace(cmd.UserID)
	if productID == "" || userID == "" || cmd.Rating < 1 || cmd.Rating > 5 {
		return domain.Review{}, ErrReviewInvalidInput
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Review{}, ErrReviewProductNotFound
		}
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}

	if _, err := s.reviews.FindByProductAndUser(ctx, productID, userID); err == nil {
		return domain.Review{}, ErrReviewDuplicate
	} else if !isRepoNotFound(err) {
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}

	now := s.now()
	review := domain.Review{
		ID:               s.newID(),
		ProductID:        productID,
		UserID:           userID,
		UserName:         s.lookupUserName(ctx, userID),
		Rating:           cmd.Rating,
		Title:            strings.TrimSpace(cmd.Title),
		Comment:          strings.TrimSpace(cmd.Comment),
		VerifiedPurchase: s.hasDeliveredOrder(ctx, userID, productID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.reviews.Insert(ctx, review); err != nil {
		if isRepoConflict(err) {
			return domain.Review{}, ErrReviewDuplicate
		}
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}

	ratings := foldRating(product.Ratings, 0, review.Rating)
	if err := s.products.UpdateRatings(ctx, productID, ratings, now); err != nil {
		s.logger(ctx, "review.ratings_update_failed", map[string]any{
			"productId": productID,
			"error":     err.Error(),
		})
	}
	return review, nil
}

// UpdateReview rewrites an existing review owned by the requester and adjusts
// the product aggregate by the rating delta.
func (s *reviewService) UpdateReview(ctx context.Context, requester Requester, reviewID string, cmd ReviewInput) (domain.Review, error) {
	if s == nil || s.reviews == nil {
		return domain.Review{}, ErrReviewUnavailable
	}
	id := strings.TrimSpace(reviewID)
	if id == "" || cmd.Rating < 1 || cmd.Rating > 5 {
		return domain.Review{}, ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Review{}, ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	if !requester.Admin && review.UserID != strings.TrimSpace(requester.UserID) {
		return domain.Review{}, ErrReviewForbidden
	}

	previousRating := review.Rating
	review.Rating = cmd.Rating
	review.Title = strings.TrimSpace(cmd.Title)
	review.Comment = strings.TrimSpace(cmd.Comment)
	review.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}

	if previousRating != review.Rating {
		if product, err := s.products.FindByID(ctx, review.ProductID); err == nil {
			ratings := foldRating(product.Ratings, previousRating, review.Rating)
			if err := s.products.UpdateRatings(ctx, review.ProductID, ratings, review.UpdatedAt); err != nil {
				s.logger(ctx, "review.ratings_update_failed", map[string]any{
					"productId": review.ProductID,
					"error":     err.Error(),
				})
			}
		}
	}
	return review, nil
}

// DeleteReview removes a review owned by the requester (or any, for admins)
// and subtracts its rating from the product aggregate.
func (s *reviewService) DeleteReview(ctx context.Context, requester Requester, reviewID string) error {
	if s == nil || s.reviews == nil {
		return ErrReviewUnavailable
	}
	id := strings.TrimSpace(reviewID)
	if id == "" {
		return ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	if !requester.Admin && review.UserID != strings.TrimSpace(requester.UserID) {
		return ErrReviewForbidden
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}

	if product, err := s.products.FindByID(ctx, review.ProductID); err == nil {
		ratings := foldRating(product.Ratings, review.Rating, 0)
		if err := s.products.UpdateRatings(ctx, review.ProductID, ratings, s.now()); err != nil {
			s.logger(ctx, "review.ratings_update_failed", map[string]any{
				"productId": review.ProductID,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

// ToggleHelpful flips the caller's helpful vote on a review. Authors cannot
// vote on their own reviews.
func (s *reviewService) ToggleHelpful(ctx context.Context, userID, reviewID string) (domain.Review, error) {
	if s == nil || s.reviews == nil {
		return domain.Review{}, ErrReviewUnavailable
	}
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(reviewID)
	if uid == "" || id == "" {
		return domain.Review{}, ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Review{}, ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	if review.UserID == uid {
		return domain.Review{}, ErrReviewForbidden
	}

	if review.HasHelpfulVote(uid) {
		voters := make([]string, 0, len(review.HelpfulVotes)-1)
		for _, voter := range review.HelpfulVotes {
			if voter != uid {
				voters = append(voters, voter)
			}
		}
		review.HelpfulVotes = voters
	} else {
		review.HelpfulVotes = append(review.HelpfulVotes, uid)
	}
	review.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	return review, nil
}

// ListProductReviews pages through a product's reviews, newest first.
func (s *reviewService) ListProductReviews(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error) {
	if s == nil || s.reviews == nil {
		return domain.PageResult[domain.Review]{}, ErrReviewUnavailable
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return domain.PageResult[domain.Review]{}, ErrReviewInvalidInput
	}
	result, err := s.reviews.ListByProduct(ctx, pid, page)
	if err != nil {
		return domain.PageResult[domain.Review]{}, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	return result, nil
}

// ListUserReviews returns all reviews authored by a user.
func (s *reviewService) ListUserReviews(ctx context.Context, userID string) ([]domain.Review, error) {
	if s == nil || s.reviews == nil {
		return nil, ErrReviewUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrReviewInvalidInput
	}
	reviews, err := s.reviews.ListByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	return reviews, nil
}

// hasDeliveredOrder reports whether the user received the product in a
// delivered order. Lookup failures degrade to an unverified badge.
func (s *reviewService) hasDeliveredOrder(ctx context.Context, userID, productID string) bool {
	if s.orders == nil {
		return false
	}
	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID: userID,
		Status: domain.OrderStatusDelivered,
		Page:   domain.Page{Number: 1, Size: 100},
	})
	if err != nil {
		return false
	}
	for _, order := range result.Items {
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *reviewService) lookupUserName(ctx context.Context, userID string) string {
	if s.users == nil {
		return ""
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

// foldRating adjusts a denormalized aggregate: previous==0 adds a rating,
// next==0 removes one, otherwise the rating changed in place.
func foldRating(current domain.ProductRatings, previous, next int) domain.ProductRatings {
	sum := current.Average*float64(current.Count) - float64(previous) + float64(next)
	count := current.Count
	if previous == 0 {
		count++
	}
	if next == 0 {
		count--
	}
	if count <= 0 {
		return domain.ProductRatings{}
	}
	average := sum / float64(count)
	return domain.ProductRatings{
		Average: math.Round(average*10) / 10,
		Count:   count,
	}
}
