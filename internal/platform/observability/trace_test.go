package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/techcycle/api/internal/platform/requestctx"
)

func TestTraceMiddlewarePropagatesCloudTraceHeader(t *testing.T) {
	var seen requestctx.TraceInfo
	var ok bool
	handler := TraceMiddleware("tc-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = requestctx.Trace(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !ok {
		t.Fatal("expected trace info on request context")
	}
	if seen.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %q", seen.TraceID)
	}
	if seen.ProjectID != "tc-prod" {
		t.Fatalf("unexpected project id %q", seen.ProjectID)
	}
	if got := rec.Header().Get(cloudTraceHeader); got == "" {
		t.Fatal("expected trace header echoed on the response")
	}
}

func TestTraceMiddlewareRunsWithoutHeader(t *testing.T) {
	var ok bool
	handler := TraceMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatal("expected trace metadata on request context even without an incoming header")
	}
}

func TestParseCloudTraceContext(t *testing.T) {
	cases := map[string]struct {
		header  string
		ok      bool
		sampled bool
	}{
		"hex span sampled":   {"105445aa7843bc8bf206b12000100000/0000000000000001;o=1", true, true},
		"decimal span":       {"105445aa7843bc8bf206b12000100000/123456789;o=0", true, false},
		"missing span":       {"105445aa7843bc8bf206b12000100000", false, false},
		"short trace id":     {"abc123/1;o=1", false, false},
		"empty header":       {"", false, false},
		"option not sampled": {"105445aa7843bc8bf206b12000100000/1", true, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			info, spanCtx, ok := parseCloudTraceContext(tc.header)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			if info.Sampled != tc.sampled || spanCtx.IsSampled() != tc.sampled {
				t.Fatalf("expected sampled=%v, got info=%v span=%v", tc.sampled, info.Sampled, spanCtx.IsSampled())
			}
			if !spanCtx.IsRemote() {
				t.Fatal("expected remote span context")
			}
		})
	}
}
