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

// ReviewHandlers exposes endpoints addressing reviews by their own id. Product
// scoped listing and creation live under /products.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:   authn,
		reviews: reviews,
	}
}

// Routes registers the /reviews endpoints. All of them require a session.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleUser, auth.RoleAdmin))
	}
	r.Get("/", h.listOwnReviews)
	r.Put("/{reviewID}", h.updateReview)
	r.Delete("/{reviewID}", h.deleteReview)
	r.Post("/{reviewID}/helpful", h.toggleHelpful)
}

type reviewInputRequest struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

type reviewListResponse struct {
	Items []reviewPayload `json:"items"`
	Meta  pageMetaPayload `json:"meta"`
}

type reviewPayload struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	UserID           string `json:"userId"`
	UserName         string `json:"userName,omitempty"`
	Rating           int    `json:"rating"`
	Title            string `json:"title,omitempty"`
	Comment          string `json:"comment,omitempty"`
	VerifiedPurchase bool   `json:"verifiedPurchase"`
	HelpfulCount     int    `json:"helpfulCount"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

func (h *ReviewHandlers) listOwnReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	reviews, err := h.reviews.ListUserReviews(ctx, identity.UID)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	items := make([]reviewPayload, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, buildReviewPayload(review))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ReviewHandlers) updateReview(w http.ResponseWriter, r *http.Request) {
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

	review, err := h.reviews.UpdateReview(ctx, requesterFromIdentity(identity), strings.TrimSpace(chi.URLParam(r, "reviewID")), services.ReviewInput{
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReviewPayload(review))
}

func (h *ReviewHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.reviews.DeleteReview(ctx, requesterFromIdentity(identity), strings.TrimSpace(chi.URLParam(r, "reviewID"))); err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "review deleted")
}

func (h *ReviewHandlers) toggleHelpful(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := identityFromRequest(w, r)
	if !ok {
		return
	}

	review, err := h.reviews.ToggleHelpful(ctx, identity.UID, strings.TrimSpace(chi.URLParam(r, "reviewID")))
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReviewPayload(review))
}

func buildReviewPayload(review domain.Review) reviewPayload {
	return reviewPayload{
		ID:               review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		UserName:         review.UserName,
		Rating:           review.Rating,
		Title:            review.Title,
		Comment:          review.Comment,
		VerifiedPurchase: review.VerifiedPurchase,
		HelpfulCount:     len(review.HelpfulVotes),
		CreatedAt:        formatTime(review.CreatedAt),
		UpdatedAt:        formatTime(review.UpdatedAt),
	}
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to modify this review", http.StatusForbidden))
	case errors.Is(err, services.ErrReviewDuplicate):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "product already reviewed", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("review_error", "failed to process review request", http.StatusInternalServerError))
	}
}
