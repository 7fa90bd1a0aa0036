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
	productCollection = "products"

	featuredProductCap = 8
)

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	coll     *pfirestore.Collection[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		coll:     pfirestore.NewCollection[productDocument](provider, productCollection),
		provider: provider,
	}, nil
}

// Insert creates the product document, failing on ID collisions.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.coll == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	return r.coll.Create(ctx, product.ID, newProductDocument(product))
}

// Update overwrites the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.coll == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	return r.coll.Set(ctx, product.ID, newProductDocument(product))
}

// FindByID loads a product by its document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.coll == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.coll.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindBySlug loads a product by its unique slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.coll == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Product{}, errors.New("product repository: slug is required")
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.NotFoundError("products.findBySlug", errors.New("product not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List applies catalog filters, sorting and offset paging in one query plus a
// matching aggregation count.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.PageResult[domain.Product], error) {
	if r == nil || r.coll == nil {
		return domain.PageResult[domain.Product]{}, errors.New("product repository not initialised")
	}

	page := filter.Page
	if page.Number <= 0 {
		page.Number = 1
	}
	if page.Size <= 0 {
		page.Size = 12
	}

	build := func(q firestore.Query) firestore.Query {
		return buildProductQuery(q, filter.Filter)
	}

	total, err := r.coll.Count(ctx, build)
	if err != nil {
		return domain.PageResult[domain.Product]{}, err
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		q = buildProductQuery(q, filter.Filter)
		q = orderProductQuery(q, filter.Filter)
		return q.Offset((page.Number - 1) * page.Size).Limit(page.Size)
	})
	if err != nil {
		return domain.PageResult[domain.Product]{}, err
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}

	pages := 0
	if total > 0 {
		pages = (total + page.Size - 1) / page.Size
	}
	return domain.PageResult[domain.Product]{
		Items: items,
		Count: len(items),
		Total: total,
		Page:  page.Number,
		Pages: pages,
	}, nil
}

// ListFeatured returns active featured products, newest first, capped at eight.
func (r *ProductRepository) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	if r == nil || r.coll == nil {
		return nil, errors.New("product repository not initialised")
	}
	if limit <= 0 || limit > featuredProductCap {
		limit = featuredProductCap
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("featured", "==", true).
			Where("active", "==", true).
			OrderBy("createdAt", firestore.Desc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return items, nil
}

// SetActive flips the active flag without touching the rest of the document.
func (r *ProductRepository) SetActive(ctx context.Context, productID string, active bool, updatedAt time.Time) error {
	if r == nil || r.coll == nil {
		return errors.New("product repository not initialised")
	}
	return r.coll.Update(ctx, strings.TrimSpace(productID), []firestore.Update{
		{Path: "active", Value: active},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
}

// UpdateRatings rewrites the denormalized ratings aggregate.
func (r *ProductRepository) UpdateRatings(ctx context.Context, productID string, ratings domain.ProductRatings, updatedAt time.Time) error {
	if r == nil || r.coll == nil {
		return errors.New("product repository not initialised")
	}
	return r.coll.Update(ctx, strings.TrimSpace(productID), []firestore.Update{
		{Path: "ratings.average", Value: ratings.Average},
		{Path: "ratings.count", Value: ratings.Count},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
}

func buildProductQuery(q firestore.Query, filter domain.ProductFilter) firestore.Query {
	if !filter.IncludeInactive {
		q = q.Where("active", "==", true)
	}
	if category := strings.TrimSpace(filter.CategoryID); category != "" {
		q = q.Where("categoryId", "==", category)
	}
	if filter.Condition != "" {
		q = q.Where("condition", "==", string(filter.Condition))
	}
	if brand := strings.TrimSpace(filter.Brand); brand != "" {
		q = q.Where("brand", "==", brand)
	}
	if filter.Featured != nil {
		q = q.Where("featured", "==", *filter.Featured)
	}
	if filter.MinPrice != nil {
		q = q.Where("price", ">=", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price", "<=", *filter.MaxPrice)
	}
	if term := searchTerm(filter.Search); term != "" {
		q = q.Where("keywords", "array-contains", term)
	}
	return q
}

func orderProductQuery(q firestore.Query, filter domain.ProductFilter) firestore.Query {
	// Firestore requires range-filtered fields to be ordered first.
	hasPriceRange := filter.MinPrice != nil || filter.MaxPrice != nil

	switch filter.Sort {
	case domain.ProductSortPriceAsc:
		return q.OrderBy("price", firestore.Asc)
	case domain.ProductSortPriceDesc:
		return q.OrderBy("price", firestore.Desc)
	case domain.ProductSortRating:
		if hasPriceRange {
			q = q.OrderBy("price", firestore.Asc)
		}
		return q.OrderBy("ratings.average", firestore.Desc)
	default:
		if hasPriceRange {
			q = q.OrderBy("price", firestore.Asc)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}
}

// searchTerm reduces a free-text query to its first significant token for
// keyword matching.
func searchTerm(search string) string {
	for _, field := range strings.Fields(strings.ToLower(search)) {
		if len(field) >= 2 {
			return field
		}
	}
	return ""
}

// productKeywords tokenizes the searchable fields for array-contains lookups.
func productKeywords(product domain.Product) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, source := range []string{product.Name, product.Brand, product.Model} {
		for _, token := range strings.Fields(strings.ToLower(source)) {
			token = strings.Trim(token, ".,()\"'")
			if len(token) < 2 {
				continue
			}
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			keywords = append(keywords, token)
		}
	}
	return keywords
}

type productDocument struct {
	Name               string                  `firestore:"name"`
	Slug               string                  `firestore:"slug"`
	Description        string                  `firestore:"description,omitempty"`
	CategoryID         string                  `firestore:"categoryId"`
	Brand              string                  `firestore:"brand,omitempty"`
	Model              string                  `firestore:"model,omitempty"`
	Condition          string                  `firestore:"condition"`
	Price              int64                   `firestore:"price"`
	CompareAtPrice     *int64                  `firestore:"compareAtPrice,omitempty"`
	Currency           string                  `firestore:"currency"`
	Stock              int                     `firestore:"stock"`
	LowStockThreshold  int                     `firestore:"lowStockThreshold,omitempty"`
	Specifications     map[string]string       `firestore:"specifications,omitempty"`
	Images             []productImageDocument  `firestore:"images,omitempty"`
	RecyclabilityScore *int                    `firestore:"recyclabilityScore,omitempty"`
	Ratings            productRatingsDocument  `firestore:"ratings"`
	Featured           bool                    `firestore:"featured"`
	Active             bool                    `firestore:"active"`
	SEO                *productSEODocument     `firestore:"seo,omitempty"`
	Keywords           []string                `firestore:"keywords,omitempty"`
	CreatedAt          time.Time               `firestore:"createdAt"`
	UpdatedAt          time.Time               `firestore:"updatedAt"`
}

type productImageDocument struct {
	URL   string `firestore:"url"`
	Alt   string `firestore:"alt,omitempty"`
	Order int    `firestore:"order"`
}

type productRatingsDocument struct {
	Average float64 `firestore:"average"`
	Count   int     `firestore:"count"`
}

type productSEODocument struct {
	Title       string   `firestore:"title,omitempty"`
	Description string   `firestore:"description,omitempty"`
	Keywords    []string `firestore:"keywords,omitempty"`
}

func newProductDocument(product domain.Product) productDocument {
	doc := productDocument{
		Name:               strings.TrimSpace(product.Name),
		Slug:               strings.TrimSpace(product.Slug),
		Description:        strings.TrimSpace(product.Description),
		CategoryID:         strings.TrimSpace(product.CategoryID),
		Brand:              strings.TrimSpace(product.Brand),
		Model:              strings.TrimSpace(product.Model),
		Condition:          string(product.Condition),
		Price:              product.Price,
		CompareAtPrice:     product.CompareAtPrice,
		Currency:           strings.ToUpper(strings.TrimSpace(product.Currency)),
		Stock:              product.Stock,
		LowStockThreshold:  product.LowStockThreshold,
		Specifications:     product.Specifications,
		RecyclabilityScore: product.RecyclabilityScore,
		Ratings: productRatingsDocument{
			Average: product.Ratings.Average,
			Count:   product.Ratings.Count,
		},
		Featured:  product.Featured,
		Active:    product.Active,
		Keywords:  productKeywords(product),
		CreatedAt: product.CreatedAt.UTC(),
		UpdatedAt: product.UpdatedAt.UTC(),
	}
	for _, image := range product.Images {
		doc.Images = append(doc.Images, productImageDocument{URL: image.URL, Alt: image.Alt, Order: image.Order})
	}
	if product.SEO != nil {
		doc.SEO = &productSEODocument{
			Title:       product.SEO.Title,
			Description: product.SEO.Description,
			Keywords:    append([]string(nil), product.SEO.Keywords...),
		}
	}
	return doc
}

func (d productDocument) toDomain(id string) domain.Product {
	product := domain.Product{
		ID:                 id,
		Name:               d.Name,
		Slug:               d.Slug,
		Description:        d.Description,
		CategoryID:         d.CategoryID,
		Brand:              d.Brand,
		Model:              d.Model,
		Condition:          domain.ProductCondition(d.Condition),
		Price:              d.Price,
		CompareAtPrice:     d.CompareAtPrice,
		Currency:           d.Currency,
		Stock:              d.Stock,
		LowStockThreshold:  d.LowStockThreshold,
		Specifications:     d.Specifications,
		RecyclabilityScore: d.RecyclabilityScore,
		Ratings: domain.ProductRatings{
			Average: d.Ratings.Average,
			Count:   d.Ratings.Count,
		},
		Featured:  d.Featured,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, image := range d.Images {
		product.Images = append(product.Images, domain.ProductImage{URL: image.URL, Alt: image.Alt, Order: image.Order})
	}
	if d.SEO != nil {
		product.SEO = &domain.ProductSEO{
			Title:       d.SEO.Title,
			Description: d.SEO.Description,
			Keywords:    append([]string(nil), d.SEO.Keywords...),
		}
	}
	return product
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
