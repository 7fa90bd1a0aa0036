package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/platform/httpx"
	"github.com/techcycle/api/internal/platform/pagination"
	"github.com/techcycle/api/internal/services"
)

const maxRequestBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and unmarshals the request body into dst, writing the
// failure envelope itself. Returns false when the request was already answered.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

// pageFromRequest parses page/limit query parameters, writing the failure
// envelope itself. Returns false when the request was already answered.
func pageFromRequest(w http.ResponseWriter, r *http.Request, opts pagination.Options) (domain.Page, bool) {
	params, err := pagination.FromRequest(r, opts)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return domain.Page{}, false
	}
	return domain.Page{Number: params.Page, Size: params.Limit}, true
}

// identityFromRequest pulls the authenticated principal injected by the auth
// middleware. Returns false (after answering 401) when it is missing.
func identityFromRequest(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func requesterFromIdentity(identity *auth.Identity) services.Requester {
	return services.Requester{
		UserID: strings.TrimSpace(identity.UID),
		Admin:  identity.IsAdmin(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

type pageMetaPayload struct {
	Count int `json:"count"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

func buildPageMeta[T any](result domain.PageResult[T]) pageMetaPayload {
	return pageMetaPayload{
		Count: result.Count,
		Total: result.Total,
		Page:  result.Page,
		Pages: result.Pages,
	}
}
