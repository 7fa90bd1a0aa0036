package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/techcycle/api/internal/domain"
	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/repositories"
)

const (
	reviewCollection = "reviews"
)

// ReviewRepository persists product reviews within Firestore.
type ReviewRepository struct {
	coll *pfirestore.Collection[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		coll: pfirestore.NewCollection[reviewDocument](provider, reviewCollection),
	}, nil
}

// Insert creates the review document, failing on ID collisions.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	if r == nil || r.coll == nil {
		return errors.New("review repository not initialised")
	}
	if strings.TrimSpace(review.ID) == "" {
		return errors.New("review repository: review id is required")
	}
	return r.coll.Create(ctx, review.ID, newReviewDocument(review))
}

// Update overwrites the review document.
func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) error {
	if r == nil || r.coll == nil {
		return errors.New("review repository not initialised")
	}
	if strings.TrimSpace(review.ID) == "" {
		return errors.New("review repository: review id is required")
	}
	return r.coll.Set(ctx, review.ID, newReviewDocument(review))
}

// Delete removes the review document.
func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	if r == nil || r.coll == nil {
		return errors.New("review repository not initialised")
	}
	return r.coll.Delete(ctx, strings.TrimSpace(reviewID))
}

// FindByID loads a review by document ID.
func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	if r == nil || r.coll == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	doc, err := r.coll.Get(ctx, strings.TrimSpace(reviewID))
	if err != nil {
		return domain.Review{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByProductAndUser loads the single review a user wrote for a product.
func (r *ReviewRepository) FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error) {
	if r == nil || r.coll == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", strings.TrimSpace(productID)).
			Where("userId", "==", strings.TrimSpace(userID)).
			Limit(1)
	})
	if err != nil {
		return domain.Review{}, err
	}
	if len(docs) == 0 {
		return domain.Review{}, pfirestore.NotFoundError("reviews.findByProductAndUser", errors.New("review not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// ListByProduct pages through a product's reviews, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error) {
	if r == nil || r.coll == nil {
		return domain.PageResult[domain.Review]{}, errors.New("review repository not initialised")
	}

	if page.Number <= 0 {
		page.Number = 1
	}
	if page.Size <= 0 {
		page.Size = 12
	}

	build := func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", strings.TrimSpace(productID))
	}

	total, err := r.coll.Count(ctx, build)
	if err != nil {
		return domain.PageResult[domain.Review]{}, err
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return build(q).
			OrderBy("createdAt", firestore.Desc).
			Offset((page.Number - 1) * page.Size).
			Limit(page.Size)
	})
	if err != nil {
		return domain.PageResult[domain.Review]{}, err
	}

	items := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}

	pages := 0
	if total > 0 {
		pages = (total + page.Size - 1) / page.Size
	}
	return domain.PageResult[domain.Review]{
		Items: items,
		Count: len(items),
		Total: total,
		Page:  page.Number,
		Pages: pages,
	}, nil
}

// ListByUser returns every review authored by a user, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	if r == nil || r.coll == nil {
		return nil, errors.New("review repository not initialised")
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", strings.TrimSpace(userID)).
			OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	reviews := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, doc.Data.toDomain(doc.ID))
	}
	return reviews, nil
}

type reviewDocument struct {
	ProductID        string    `firestore:"productId"`
	UserID           string    `firestore:"userId"`
	UserName         string    `firestore:"userName"`
	Rating           int       `firestore:"rating"`
	Title            string    `firestore:"title,omitempty"`
	Comment          string    `firestore:"comment,omitempty"`
	VerifiedPurchase bool      `firestore:"verifiedPurchase"`
	HelpfulVotes     []string  `firestore:"helpfulVotes,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func newReviewDocument(review domain.Review) reviewDocument {
	return reviewDocument{
		ProductID:        strings.TrimSpace(review.ProductID),
		UserID:           strings.TrimSpace(review.UserID),
		UserName:         strings.TrimSpace(review.UserName),
		Rating:           review.Rating,
		Title:            strings.TrimSpace(review.Title),
		Comment:          strings.TrimSpace(review.Comment),
		VerifiedPurchase: review.VerifiedPurchase,
		HelpfulVotes:     append([]string(nil), review.HelpfulVotes...),
		CreatedAt:        review.CreatedAt.UTC(),
		UpdatedAt:        review.UpdatedAt.UTC(),
	}
}

func (d reviewDocument) toDomain(id string) domain.Review {
	return domain.Review{
		ID:               id,
		ProductID:        d.ProductID,
		UserID:           d.UserID,
		UserName:         d.UserName,
		Rating:           d.Rating,
		Title:            d.Title,
		Comment:          d.Comment,
		VerifiedPurchase: d.VerifiedPurchase,
		HelpfulVotes:     d.HelpfulVotes,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
