package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"payslip/internal/transport/http/api"
	"payslip/internal/transport/http/shared"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per key. limit tokens refill evenly over window.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	every     rate.Limit
	keyFn     RateLimitKeyFunc
	clients   map[string]*limiterEntry
	lastSweep time.Time
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CostlyRouteRateLimit applies a tighter per-actor budget to the write and batch routes.
func CostlyRouteRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	costly := newRateLimiter(max(baseLimit/4, 1), window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isCostlyRoute(r) && !costly.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	every := rate.Inf
	if limit > 0 && window > 0 {
		every = rate.Every(window / time.Duration(limit))
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		every:   every,
		keyFn:   keyFn,
		clients: map[string]*limiterEntry{},
	}
}

func (rl *rateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.window*2 {
		for k, entry := range rl.clients {
			if now.Sub(entry.lastSeen) > rl.window*2 {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = "ip:" + shared.ClientIP(r)
	}
	now := time.Now()
	limiter := rl.limiterFor(key, now)
	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	resetIn := 0
	if tokens < 1 {
		resetIn = int(math.Ceil((1 - tokens) / float64(rl.every)))
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(int(tokens), 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
		slog.Warn("rate limit exceeded",
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", rl.limit,
			"windowSec", int(rl.window.Seconds()),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func isCostlyRoute(r *http.Request) bool {
	if r == nil || r.Method != http.MethodPost {
		return false
	}
	switch normalizedAPIPath(r.URL.Path) {
	case "/payroll/payslips", "/payroll/calculate/batch":
		return true
	}
	return false
}

func normalizedAPIPath(path string) string {
	cleaned := strings.TrimSuffix(strings.TrimSpace(path), "/")
	cleaned = strings.TrimPrefix(cleaned, "/api/v1")
	if cleaned == "" {
		return "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		return "/" + cleaned
	}
	return cleaned
}
