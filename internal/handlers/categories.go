package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/platform/httpx"
	"github.com/techcycle/api/internal/services"
)

// CategoryHandlers exposes category endpoints, public and admin.
type CategoryHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCategoryHandlers constructs a new CategoryHandlers instance.
func NewCategoryHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CategoryHandlers {
	return &CategoryHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /categories endpoints.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Get("/{categoryID}", h.getCategory)

	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
		}
		admin.Post("/", h.createCategory)
		admin.Put("/{categoryID}", h.updateCategory)
		admin.Delete("/{categoryID}", h.deleteCategory)
	})
}

type categoryInputRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	ParentID    *string `json:"parentId"`
	Order       int     `json:"order"`
	Active      *bool   `json:"active"`
}

type categoryPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
	Order       int     `json:"order"`
	Active      bool    `json:"active"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

func (h *CategoryHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	includeInactive := false
	if raw := strings.TrimSpace(r.URL.Query().Get("includeInactive")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "includeInactive must be a boolean", http.StatusBadRequest))
			return
		}
		includeInactive = value
	}

	categories, err := h.catalog.ListCategories(ctx, includeInactive)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		items = append(items, buildCategoryPayload(category))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CategoryHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if key == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	category, err := h.catalog.GetCategory(ctx, key)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req categoryInputRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(ctx, req.toInput())
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *CategoryHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	var req categoryInputRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, categoryID, req.toInput())
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteCategory(ctx, categoryID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "category deleted")
}

func (req categoryInputRequest) toInput() services.CategoryInput {
	return services.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		ParentID:    req.ParentID,
		Order:       req.Order,
		Active:      req.Active,
	}
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ImageURL:    category.ImageURL,
		ParentID:    category.ParentID,
		Order:       category.Order,
		Active:      category.Active,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
}
