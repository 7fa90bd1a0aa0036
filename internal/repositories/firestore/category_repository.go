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
	categoryCollection = "categories"
)

// CategoryRepository persists catalog categories within Firestore.
type CategoryRepository struct {
	coll *pfirestore.Collection[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		coll: pfirestore.NewCollection[categoryDocument](provider, categoryCollection),
	}, nil
}

// Insert creates the category document, failing on ID collisions.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if r == nil || r.coll == nil {
		return errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category repository: category id is required")
	}
	return r.coll.Create(ctx, category.ID, newCategoryDocument(category))
}

// Update overwrites the category document.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if r == nil || r.coll == nil {
		return errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category repository: category id is required")
	}
	return r.coll.Set(ctx, category.ID, newCategoryDocument(category))
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.coll == nil {
		return errors.New("category repository not initialised")
	}
	return r.coll.Delete(ctx, strings.TrimSpace(categoryID))
}

// FindByID loads a category by document ID.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.coll == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	doc, err := r.coll.Get(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return domain.Category{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindBySlug loads a category by its unique slug.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if r == nil || r.coll == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Category{}, errors.New("category repository: slug is required")
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, pfirestore.NotFoundError("categories.findBySlug", errors.New("category not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns categories in display order.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	if r == nil || r.coll == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if !includeInactive {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("order", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, doc.Data.toDomain(doc.ID))
	}
	return categories, nil
}

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	Description string    `firestore:"description,omitempty"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	ParentID    *string   `firestore:"parentId,omitempty"`
	Order       int       `firestore:"order"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newCategoryDocument(category domain.Category) categoryDocument {
	return categoryDocument{
		Name:        strings.TrimSpace(category.Name),
		Slug:        strings.TrimSpace(category.Slug),
		Description: strings.TrimSpace(category.Description),
		ImageURL:    strings.TrimSpace(category.ImageURL),
		ParentID:    category.ParentID,
		Order:       category.Order,
		Active:      category.Active,
		CreatedAt:   category.CreatedAt.UTC(),
		UpdatedAt:   category.UpdatedAt.UTC(),
	}
}

func (d categoryDocument) toDomain(id string) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		ParentID:    d.ParentID,
		Order:       d.Order,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
