package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/platform/httpx"
	"github.com/techcycle/api/internal/platform/pagination"
	"github.com/techcycle/api/internal/services"
)

const defaultProductPageSize = 12

// ProductHandlers exposes catalog product endpoints, public and admin.
type ProductHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	reviews services.ReviewService
}

// NewProductHandlers constructs a new ProductHandlers instance.
func NewProductHandlers(authn *auth.Authenticator, catalog services.CatalogService, reviews services.ReviewService) *ProductHandlers {
	return &ProductHandlers{
		authn:   authn,
		catalog: catalog,
		reviews: reviews,
	}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/featured", h.listFeatured)
	r.Get("/slug/{slug}", h.getProduct)
	r.Get("/{productID}", h.getProduct)
	r.Get("/{productID}/reviews", h.listProductReviews)

	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth(auth.RoleUser, auth.RoleAdmin))
		}
		private.Post("/{productID}/reviews", h.createProductReview)
	})

	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
		}
		admin.Post("/", h.createProduct)
		admin.Put("/{productID}", h.updateProduct)
		admin.Delete("/{productID}", h.deactivateProduct)
	})
}

type productInputRequest struct {
	Name               string                `json:"name"`
	Description        string                `json:"description"`
	CategoryID         string                `json:"categoryId"`
	Brand              string                `json:"brand"`
	Model              string                `json:"model"`
	Condition          string                `json:"condition"`
	Price              int64                 `json:"price"`
	CompareAtPrice     *int64                `json:"compareAtPrice"`
	Stock              int                   `json:"stock"`
	LowStockThreshold  int                   `json:"lowStockThreshold"`
	Specifications     map[string]string     `json:"specifications"`
	Images             []productImageRequest `json:"images"`
	RecyclabilityScore *int                  `json:"recyclabilityScore"`
	Featured           bool                  `json:"featured"`
	SEO                *productSEORequest    `json:"seo"`
}

type productImageRequest struct {
	URL   string `json:"url"`
	Alt   string `json:"alt"`
	Order int    `json:"order"`
}

type productSEORequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

type productListResponse struct {
	Items []productPayload `json:"items"`
	Meta  pageMetaPayload  `json:"meta"`
}

type productPayload struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Slug               string                `json:"slug"`
	Description        string                `json:"description,omitempty"`
	CategoryID         string                `json:"categoryId"`
	Brand              string                `json:"brand,omitempty"`
	Model              string                `json:"model,omitempty"`
	Condition          string                `json:"condition"`
	Price              int64                 `json:"price"`
	CompareAtPrice     *int64                `json:"compareAtPrice,omitempty"`
	Currency           string                `json:"currency"`
	Stock              int                   `json:"stock"`
	LowStock           bool                  `json:"lowStock"`
	Specifications     map[string]string     `json:"specifications,omitempty"`
	Images             []productImagePayload `json:"images"`
	RecyclabilityScore *int                  `json:"recyclabilityScore,omitempty"`
	Ratings            productRatingsPayload `json:"ratings"`
	Featured           bool                  `json:"featured"`
	Active             bool                  `json:"active"`
	SEO                *productSEOPayload    `json:"seo,omitempty"`
	CreatedAt          string                `json:"createdAt"`
	UpdatedAt          string                `json:"updatedAt,omitempty"`
}

type productImagePayload struct {
	URL   string `json:"url"`
	Alt   string `json:"alt,omitempty"`
	Order int    `json:"order"`
}

type productRatingsPayload struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type productSEOPayload struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	filter, ok := parseProductFilter(w, r)
	if !ok {
		return
	}
	page, ok := pageFromRequest(w, r, pagination.Options{DefaultLimit: defaultProductPageSize})
	if !ok {
		return
	}

	result, err := h.catalog.ListProducts(ctx, services.ProductListQuery{Filter: filter, Page: page})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(result.Items))
	for _, product := range result.Items {
		items = append(items, buildProductPayload(product))
	}
	httpx.WriteJSON(w, http.StatusOK, productListResponse{Items: items, Meta: buildPageMeta(result)})
}

func (h *ProductHandlers) listFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	products, err := h.catalog.ListFeaturedProducts(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "productID"))
	if key == "" {
		key = strings.TrimSpace(chi.URLParam(r, "slug"))
	}
	if key == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, key)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req productInputRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req.toInput())
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildProductPayload(product))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	var req productInputRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, productID, req.toInput())
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeactivateProduct(ctx, productID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "product deactivated")
}

func (h *ProductHandlers) listProductReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	page, ok := pageFromRequest(w, r, pagination.Options{DefaultLimit: defaultProductPageSize})
	if !ok {
		return
	}

	result, err := h.reviews.ListProductReviews(ctx, productID, page)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	items := make([]reviewPayload, 0, len(result.Items))
	for _, review := range result.Items {
		items = append(items, buildReviewPayload(review))
	}
	httpx.WriteJSON(w, http.StatusOK, reviewListResponse{Items: items, Meta: buildPageMeta(result)})
}

func (h *ProductHandlers) createProductReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	var req reviewInputRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	review, err := h.reviews.CreateReview(ctx, services.ReviewInput{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		UserID:    identity.UID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildReviewPayload(review))
}

func parseProductFilter(w http.ResponseWriter, r *http.Request) (domain.ProductFilter, bool) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := domain.ProductFilter{
		CategoryID: strings.TrimSpace(query.Get("category")),
		Condition:  domain.ProductCondition(strings.ToLower(strings.TrimSpace(query.Get("condition")))),
		Brand:      strings.TrimSpace(query.Get("brand")),
		Search:     strings.TrimSpace(query.Get("search")),
		Sort:       domain.ProductSort(strings.ToLower(strings.TrimSpace(query.Get("sort")))),
	}

	if raw := strings.TrimSpace(query.Get("minPrice")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "minPrice must be a non-negative integer", http.StatusBadRequest))
			return domain.ProductFilter{}, false
		}
		filter.MinPrice = &value
	}
	if raw := strings.TrimSpace(query.Get("maxPrice")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "maxPrice must be a non-negative integer", http.StatusBadRequest))
			return domain.ProductFilter{}, false
		}
		filter.MaxPrice = &value
	}
	if raw := strings.TrimSpace(query.Get("featured")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "featured must be a boolean", http.StatusBadRequest))
			return domain.ProductFilter{}, false
		}
		filter.Featured = &value
	}
	return filter, true
}

func (req productInputRequest) toInput() services.ProductInput {
	images := make([]domain.ProductImage, 0, len(req.Images))
	for _, image := range req.Images {
		images = append(images, domain.ProductImage{
			URL:   strings.TrimSpace(image.URL),
			Alt:   strings.TrimSpace(image.Alt),
			Order: image.Order,
		})
	}
	input := services.ProductInput{
		Name:               req.Name,
		Description:        req.Description,
		CategoryID:         req.CategoryID,
		Brand:              req.Brand,
		Model:              req.Model,
		Condition:          domain.ProductCondition(strings.ToLower(strings.TrimSpace(req.Condition))),
		Price:              req.Price,
		CompareAtPrice:     req.CompareAtPrice,
		Stock:              req.Stock,
		LowStockThreshold:  req.LowStockThreshold,
		Specifications:     req.Specifications,
		Images:             images,
		RecyclabilityScore: req.RecyclabilityScore,
		Featured:           req.Featured,
	}
	if req.SEO != nil {
		input.SEO = &domain.ProductSEO{
			Title:       strings.TrimSpace(req.SEO.Title),
			Description: strings.TrimSpace(req.SEO.Description),
			Keywords:    req.SEO.Keywords,
		}
	}
	return input
}

func buildProductPayload(product domain.Product) productPayload {
	images := make([]productImagePayload, 0, len(product.Images))
	for _, image := range product.Images {
		images = append(images, productImagePayload{
			URL:   image.URL,
			Alt:   image.Alt,
			Order: image.Order,
		})
	}
	payload := productPayload{
		ID:                 product.ID,
		Name:               product.Name,
		Slug:               product.Slug,
		Description:        product.Description,
		CategoryID:         product.CategoryID,
		Brand:              product.Brand,
		Model:              product.Model,
		Condition:          string(product.Condition),
		Price:              product.Price,
		CompareAtPrice:     product.CompareAtPrice,
		Currency:           product.Currency,
		Stock:              product.Stock,
		LowStock:           product.LowStockThreshold > 0 && product.Stock <= product.LowStockThreshold,
		Specifications:     product.Specifications,
		Images:             images,
		RecyclabilityScore: product.RecyclabilityScore,
		Ratings: productRatingsPayload{
			Average: product.Ratings.Average,
			Count:   product.Ratings.Count,
		},
		Featured:  product.Featured,
		Active:    product.Active,
		CreatedAt: formatTime(product.CreatedAt),
		UpdatedAt: formatTime(product.UpdatedAt),
	}
	if product.SEO != nil {
		payload.SEO = &productSEOPayload{
			Title:       product.SEO.Title,
			Description: product.SEO.Description,
			Keywords:    product.SEO.Keywords,
		}
	}
	return payload
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "catalog entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogSlugTaken):
		httpx.WriteError(ctx, w, httpx.NewError("slug_taken", "an entry with this name already exists", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogCategoryInUse):
		httpx.WriteError(ctx, w, httpx.NewError("category_in_use", "category still has products and was deactivated instead", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
