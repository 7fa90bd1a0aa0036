package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/techcycle/api/internal/platform/auth"
	"github.com/techcycle/api/internal/platform/httpx"
)

const rateLimiterIdleEviction = 10 * time.Minute

// RateLimiter throttles requests per client, keyed by the authenticated user
// when present and the remote address otherwise. Requests carrying a session
// may be granted a larger per-minute budget.
type RateLimiter struct {
	perMinute     int
	authPerMinute int
	clock         func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterOption customises RateLimiter construction.
type RateLimiterOption func(*RateLimiter)

// WithAuthenticatedBudget grants a separate per-minute allowance to requests
// presenting credentials.
func WithAuthenticatedBudget(perMinute int) RateLimiterOption {
	return func(l *RateLimiter) {
		if perMinute > 0 {
			l.authPerMinute = perMinute
		}
	}
}

// NewRateLimiter builds a limiter allowing perMinute requests with a burst of
// the same size. A non-positive perMinute disables throttling.
func NewRateLimiter(perMinute int, clock func() time.Time, opts ...RateLimiterOption) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	l := &RateLimiter{
		perMinute:     perMinute,
		authPerMinute: perMinute,
		clock:         clock,
		clients:       make(map[string]*clientLimiter),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Middleware enforces the rate limit, answering 429 with the standard envelope
// when a client exceeds its allowance.
func (l *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, authenticated := clientKey(r)
			if !l.allow(key, authenticated) {
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) allow(key string, authenticated bool) bool {
	now := l.clock()

	budget := l.perMinute
	if authenticated {
		budget = l.authPerMinute
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[key]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(budget)/60.0), budget),
		}
		l.clients[key] = entry
		l.evictIdleLocked(now)
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evictIdleLocked(now time.Time) {
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > rateLimiterIdleEviction {
			delete(l.clients, key)
		}
	}
}

// clientKey identifies the throttling bucket for a request. Authenticated
// identities from context win; otherwise a presented bearer token marks the
// request as credentialed and the remote address is the bucket.
func clientKey(r *http.Request) (string, bool) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if uid := strings.TrimSpace(identity.UID); uid != "" {
			return "uid:" + uid, true
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "anonymous"
	}
	authenticated := strings.HasPrefix(strings.TrimSpace(r.Header.Get("Authorization")), "Bearer ")
	return "ip:" + host, authenticated
}
