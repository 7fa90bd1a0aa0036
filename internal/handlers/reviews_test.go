package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/services"
)

func newReviewRouter(t *testing.T, reviews services.ReviewService) (chi.Router, *auth.TokenService) {
	t.Helper()
	authn, tokens := newTestAuthenticator(t)
	handlers := NewReviewHandlers(authn, reviews)
	return NewRouter(WithReviewRoutes(handlers.Routes)), tokens
}

func TestListOwnReviewsRequiresAuth(t *testing.T) {
	router, _ := newReviewRouter(t, &stubReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	rec := doRequest(t, router, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestListOwnReviews(t *testing.T) {
	reviews := &stubReviewService{
		listUserReviewsFunc: func(_ context.Context, userID string) ([]domain.Review, error) {
			return []domain.Review{{
				ID:        "rev-1",
				ProductID: "prod-1",
				UserID:    userID,
				Rating:    4,
			}}, nil
		},
	}
	router, tokens := newReviewRouter(t, reviews)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	req.Header.Set("Authorization", bearerToken(t, tokens, "user-7", auth.RoleUser))
	rec := doRequest(t, router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Items []reviewPayload `json:"items"`
	}
	decodeData(t, rec, &payload)
	if len(payload.Items) != 1 || payload.Items[0].UserID != "user-7" {
		t.Fatalf("unexpected reviews payload: %#v", payload.Items)
	}
}

func TestUpdateReviewForbiddenForOtherUser(t *testing.T) {
	reviews := &stubReviewService{
		updateReviewFunc: func(context.Context, services.Requester, string, services.ReviewInput) (domain.Review, error) {
			return domain.Review{}, services.ErrReviewForbidden
		},
	}
	router, tokens := newReviewRouter(t, reviews)

	body := `{"rating":1,"title":"Edited","comment":"Not mine"}`
	req := httptest.NewRequest(http.MethodPut, "/api/reviews/rev-1", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, tokens, "user-8", auth.RoleUser))
	rec := doRequest(t, router, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestDeleteReview(t *testing.T) {
	var gotID string
	reviews := &stubReviewService{
		deleteReviewFunc: func(_ context.Context, requester services.Requester, reviewID string) error {
			gotID = reviewID
			return nil
		},
	}
	router, tokens := newReviewRouter(t, reviews)

	req := httptest.NewRequest(http.MethodDelete, "/api/reviews/rev-1", nil)
	req.Header.Set("Authorization", bearerToken(t, tokens, "user-7", auth.RoleUser))
	rec := doRequest(t, router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotID != "rev-1" {
		t.Fatalf("expected deletion of rev-1, got %q", gotID)
	}
}

func TestToggleHelpfulVote(t *testing.T) {
	var gotUser, gotReview string
	reviews := &stubReviewService{
		toggleHelpfulFunc: func(_ context.Context, userID, reviewID string) (domain.Review, error) {
			gotUser, gotReview = userID, reviewID
			return domain.Review{
				ID:           reviewID,
				ProductID:    "prod-1",
				UserID:       "user-1",
				Rating:       5,
				HelpfulVotes: []string{userID},
			}, nil
		},
	}
	router, tokens := newReviewRouter(t, reviews)

	req := httptest.NewRequest(http.MethodPost, "/api/reviews/rev-1/helpful", nil)
	req.Header.Set("Authorization", bearerToken(t, tokens, "user-7", auth.RoleUser))
	rec := doRequest(t, router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotUser != "user-7" || gotReview != "rev-1" {
		t.Fatalf("unexpected toggle arguments: user=%q review=%q", gotUser, gotReview)
	}
	var payload reviewPayload
	decodeData(t, rec, &payload)
	if payload.HelpfulCount != 1 {
		t.Fatalf("unexpected helpful count: %d", payload.HelpfulCount)
	}
}

func TestToggleHelpfulOwnReviewForbidden(t *testing.T) {
	reviews := &stubReviewService{
		toggleHelpfulFunc: func(context.Context, string, string) (domain.Review, error) {
			return domain.Review{}, services.ErrReviewForbidden
		},
	}
	router, tokens := newReviewRouter(t, reviews)

	req := httptest.NewRequest(http.MethodPost, "/api/reviews/rev-1/helpful", nil)
	req.Header.Set("Authorization", bearerToken(t, tokens, "user-1", auth.RoleUser))
	rec := doRequest(t, router, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}
