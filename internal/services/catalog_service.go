package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/textutil"
	"github.com/techcycle/api/internal/repositories"
)

var (
	errCatalogProductsRequired   = errors.New("catalog service: product repository is required")
	errCatalogCategoriesRequired = errors.New("catalog service: category repository is required")
	errCatalogClockRequired      = errors.New("catalog service: clock is required")
)

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrCatalogNotFound indicates the requested product or category does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogUnavailable indicates the backend could not fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// ErrCatalogSlugTaken indicates the generated slug collides with an existing one.
var ErrCatalogSlugTaken = errors.New("catalog service: slug taken")

// ErrCatalogCategoryInUse indicates the category still has products attached.
var ErrCatalogCategoryInUse = errors.New("catalog service: category in use")

const featuredLimit = 8

// CatalogServiceDeps wires the repositories for catalog operations.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Categories  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Currency    string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	now        func() time.Time
	newID      func() string
	currency   string
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errCatalogProductsRequired
	}
	if deps.Categories == nil {
		return nil, errCatalogCategoriesRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "EUR"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		now:        func() time.Time { return deps.Clock().UTC() },
		newID:      newID,
		currency:   currency,
		logger:     logger,
	}, nil
}

// ListProducts pages through the catalog honouring filters and sort order.
func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) (domain.PageResult[domain.Product], error) {
	if s == nil || s.products == nil {
		return domain.PageResult[domain.Product]{}, ErrCatalogUnavailable
	}
	if query.Filter.MinPrice != nil && query.Filter.MaxPrice != nil && *query.Filter.MinPrice > *query.Filter.MaxPrice {
		return domain.PageResult[domain.Product]{}, ErrCatalogInvalidInput
	}

	result, err := s.products.List(ctx, repositories.ProductListFilter{
		Filter: query.Filter,
		Page:   query.Page,
	})
	if err != nil {
		return domain.PageResult[domain.Product]{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return result, nil
}

// GetProduct resolves a product by ID first, then by slug.
func (s *catalogService) GetProduct(ctx context.Context, idOrSlug string) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.FindByID(ctx, key)
	if err == nil {
		return product, nil
	}
	if !isRepoNotFound(err) {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	product, err = s.products.FindBySlug(ctx, key)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Product{}, ErrCatalogNotFound
		}
		return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return product, nil
}

// ListFeaturedProducts returns the featured shelf, capped at eight entries.
func (s *catalogService) ListFeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	if s == nil || s.products == nil {
		return nil, ErrCatalogUnavailable
	}
	products, err := s.products.ListFeatured(ctx, featuredLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return products, nil
}

// CreateProduct validates the input, derives a unique slug and stores the product.
func (s *catalogService) CreateProduct(ctx context.Context, cmd ProductInput) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	if err := s.validateProductInput(cmd); err != nil {
		return domain.Product{}, err
	}
	if _, err := s.requireCategory(ctx, cmd.CategoryID); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product := domain.Product{
		ID:                 s.newID(),
		Name:               strings.TrimSpace(cmd.Name),
		Description:        strings.TrimSpace(cmd.Description),
		CategoryID:         strings.TrimSpace(cmd.CategoryID),
		Brand:              strings.TrimSpace(cmd.Brand),
		Model:              strings.TrimSpace(cmd.Model),
		Condition:          cmd.Condition,
		Price:              cmd.Price,
		CompareAtPrice:     cmd.CompareAtPrice,
		Currency:           s.currency,
		Stock:              cmd.Stock,
		LowStockThreshold:  cmd.LowStockThreshold,
		Specifications:     textutil.NormalizeSpecs(cmd.Specifications),
		Images:             cmd.Images,
		RecyclabilityScore: cmd.RecyclabilityScore,
		Featured:           cmd.Featured,
		Active:             true,
		SEO:                cmd.SEO,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	slug, err := s.uniqueProductSlug(ctx, product.Name, "")
	if err != nil {
		return domain.Product{}, err
	}
	product.Slug = slug

	if err := s.products.Insert(ctx, product); err != nil {
		if isRepoConflict(err) {
			return domain.Product{}, ErrCatalogSlugTaken
		}
		return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	s.logger(ctx, "catalog.product_created", map[string]any{
		"productId": product.ID,
		"slug":      product.Slug,
	})
	return product, nil
}

// UpdateProduct overwrites the writable fields of an existing product. Renames
// regenerate the slug.
func (s *catalogService) UpdateProduct(ctx context.Context, productID string, cmd ProductInput) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}
	if err := s.validateProductInput(cmd); err != nil {
		return domain.Product{}, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Product{}, ErrCatalogNotFound
		}
		return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if _, err := s.requireCategory(ctx, cmd.CategoryID); err != nil {
		return domain.Product{}, err
	}

	name := strings.TrimSpace(cmd.Name)
	if !strings.EqualFold(name, product.Name) {
		slug, err := s.uniqueProductSlug(ctx, name, product.ID)
		if err != nil {
			return domain.Product{}, err
		}
		product.Slug = slug
	}

	product.Name = name
	product.Description = strings.TrimSpace(cmd.Description)
	product.CategoryID = strings.TrimSpace(cmd.CategoryID)
	product.Brand = strings.TrimSpace(cmd.Brand)
	product.Model = strings.TrimSpace(cmd.Model)
	product.Condition = cmd.Condition
	product.Price = cmd.Price
	product.CompareAtPrice = cmd.CompareAtPrice
	product.Stock = cmd.Stock
	product.LowStockThreshold = cmd.LowStockThreshold
	product.Specifications = textutil.NormalizeSpecs(cmd.Specifications)
	product.Images = cmd.Images
	product.RecyclabilityScore = cmd.RecyclabilityScore
	product.Featured = cmd.Featured
	product.SEO = cmd.SEO
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return product, nil
}

// DeactivateProduct soft-deletes a product so existing orders keep referring to it.
func (s *catalogService) DeactivateProduct(ctx context.Context, productID string) error {
	if s == nil || s.products == nil {
		return ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return ErrCatalogInvalidInput
	}
	if err := s.products.SetActive(ctx, id, false, s.now()); err != nil {
		if isRepoNotFound(err) {
			return ErrCatalogNotFound
		}
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	s.logger(ctx, "catalog.product_deactivated", map[string]any{"productId": id})
	return nil
}

// ListCategories returns categories in display order.
func (s *catalogService) ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	if s == nil || s.categories == nil {
		return nil, ErrCatalogUnavailable
	}
	categories, err := s.categories.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return categories, nil
}

// GetCategory resolves a category by ID first, then by slug.
func (s *catalogService) GetCategory(ctx context.Context, idOrSlug string) (domain.Category, error) {
	if s == nil || s.categories == nil {
		return domain.Category{}, ErrCatalogUnavailable
	}
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return domain.Category{}, ErrCatalogInvalidInput
	}

	category, err := s.categories.FindByID(ctx, key)
	if err == nil {
		return category, nil
	}
	if !isRepoNotFound(err) {
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	category, err = s.categories.FindBySlug(ctx, key)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Category{}, ErrCatalogNotFound
		}
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return category, nil
}

// CreateCategory validates the input, derives a unique slug and stores the category.
func (s *catalogService) CreateCategory(ctx context.Context, cmd CategoryInput) (domain.Category, error) {
	if s == nil || s.categories == nil {
		return domain.Category{}, ErrCatalogUnavailable
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Category{}, ErrCatalogInvalidInput
	}
	if cmd.ParentID != nil {
		if _, err := s.requireCategory(ctx, *cmd.ParentID); err != nil {
			return domain.Category{}, err
		}
	}

	slug := textutil.Slugify(name)
	if slug == "" {
		return domain.Category{}, ErrCatalogInvalidInput
	}
	if _, err := s.categories.FindBySlug(ctx, slug); err == nil {
		return domain.Category{}, ErrCatalogSlugTaken
	} else if !isRepoNotFound(err) {
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	now := s.now()
	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}
	category := domain.Category{
		ID:          s.newID(),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(cmd.Description),
		ImageURL:    strings.TrimSpace(cmd.ImageURL),
		ParentID:    cmd.ParentID,
		Order:       cmd.Order,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Insert(ctx, category); err != nil {
		if isRepoConflict(err) {
			return domain.Category{}, ErrCatalogSlugTaken
		}
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return category, nil
}

// UpdateCategory overwrites the writable fields of an existing category.
func (s *catalogService) UpdateCategory(ctx context.Context, categoryID string, cmd CategoryInput) (domain.Category, error) {
	if s == nil || s.categories == nil {
		return domain.Category{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(categoryID)
	name := strings.TrimSpace(cmd.Name)
	if id == "" || name == "" {
		return domain.Category{}, ErrCatalogInvalidInput
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Category{}, ErrCatalogNotFound
		}
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	if !strings.EqualFold(name, category.Name) {
		slug := textutil.Slugify(name)
		if existing, err := s.categories.FindBySlug(ctx, slug); err == nil && existing.ID != category.ID {
			return domain.Category{}, ErrCatalogSlugTaken
		} else if err != nil && !isRepoNotFound(err) {
			return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		category.Slug = slug
	}

	category.Name = name
	category.Description = strings.TrimSpace(cmd.Description)
	category.ImageURL = strings.TrimSpace(cmd.ImageURL)
	category.ParentID = cmd.ParentID
	category.Order = cmd.Order
	if cmd.Active != nil {
		category.Active = *cmd.Active
	}
	category.UpdatedAt = s.now()

	if err := s.categories.Update(ctx, category); err != nil {
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return category, nil
}

// DeleteCategory removes a category. Categories still referenced by products
// are deactivated instead of deleted so catalog links stay resolvable.
func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s == nil || s.categories == nil {
		return ErrCatalogUnavailable
	}
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return ErrCatalogInvalidInput
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return ErrCatalogNotFound
		}
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	attached, err := s.products.List(ctx, repositories.ProductListFilter{
		Filter: domain.ProductFilter{CategoryID: id, IncludeInactive: true},
		Page:   domain.Page{Number: 1, Size: 1},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if attached.Total > 0 {
		category.Active = false
		category.UpdatedAt = s.now()
		if err := s.categories.Update(ctx, category); err != nil {
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		s.logger(ctx, "catalog.category_deactivated", map[string]any{
			"categoryId": id,
			"products":   attached.Total,
		})
		return ErrCatalogCategoryInUse
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return ErrCatalogNotFound
		}
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return nil
}

func (s *catalogService) validateProductInput(cmd ProductInput) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return ErrCatalogInvalidInput
	}
	if strings.TrimSpace(cmd.CategoryID) == "" {
		return ErrCatalogInvalidInput
	}
	if !cmd.Condition.Valid() {
		return ErrCatalogInvalidInput
	}
	if cmd.Price <= 0 {
		return ErrCatalogInvalidInput
	}
	if cmd.Stock < 0 {
		return ErrCatalogInvalidInput
	}
	if cmd.CompareAtPrice != nil && *cmd.CompareAtPrice <= cmd.Price {
		return ErrCatalogInvalidInput
	}
	if cmd.RecyclabilityScore != nil && (*cmd.RecyclabilityScore < 0 || *cmd.RecyclabilityScore > 100) {
		return ErrCatalogInvalidInput
	}
	return nil
}

func (s *catalogService) requireCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	category, err := s.categories.FindByID(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Category{}, ErrCatalogInvalidInput
		}
		return domain.Category{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return category, nil
}

// uniqueProductSlug slugifies the name and suffixes it with a ULID fragment
// when the plain slug is already taken by another product.
func (s *catalogService) uniqueProductSlug(ctx context.Context, name, ownID string) (string, error) {
	slug := textutil.Slugify(name)
	if slug == "" {
		return "", ErrCatalogInvalidInput
	}
	existing, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		if isRepoNotFound(err) {
			return slug, nil
		}
		return "", fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if existing.ID == ownID {
		return slug, nil
	}
	suffix := strings.ToLower(s.newID())
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return slug + "-" + suffix, nil
}
