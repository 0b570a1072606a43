package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"sheetconsole/internal/transport/http/api"
)

const loginPeekBytes = 64 * 1024

type rateKeyFunc func(r *http.Request) string

type rateBucket struct {
	count int
	reset time.Time
}

// rateLimiter counts requests per key in fixed windows.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	keyFn   rateKeyFunc
	clients map[string]*rateBucket
	sweepAt time.Time
}

// RateLimit throttles every request by signed-in user, or by client address
// for anonymous callers.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.enforce(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit adds tighter budgets on top of RateLimit: logins
// get a quarter of baseLimit per address and per username, spreadsheet
// mutations get half of it per actor.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	loginLimit := max(baseLimit/4, 1)
	login := []*rateLimiter{
		newRateLimiter(loginLimit, window, clientIPKey),
		newRateLimiter(loginLimit, window, loginUsernameKey),
	}
	writes := []*rateLimiter{
		newRateLimiter(max(baseLimit/2, 1), window, actorOrIPKey),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var limiters []*rateLimiter
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				limiters = login
			case sensitiveScopeActor:
				limiters = writes
			}
			for _, rl := range limiters {
				if !rl.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newRateLimiter(limit int, window time.Duration, keyFn rateKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		clients: map[string]*rateBucket{},
	}
}

// hit counts one request against key and reports the bucket state after it.
// Expired buckets are dropped once per window.
func (rl *rateLimiter) hit(key string, now time.Time) (count int, reset time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.sweepAt) {
		for k, b := range rl.clients {
			if now.After(b.reset) {
				delete(rl.clients, k)
			}
		}
		rl.sweepAt = now.Add(rl.window)
	}

	b, ok := rl.clients[key]
	if !ok || now.After(b.reset) {
		b = &rateBucket{reset: now.Add(rl.window)}
		rl.clients[key] = b
	}
	b.count++
	return b.count, b.reset
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	now := time.Now()
	count, reset := rl.hit(key, now)
	resetIn := ceilSeconds(reset.Sub(now))

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(rl.limit-count, 0)))
	h.Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if count <= rl.limit {
		return true
	}

	h.Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded",
		"key", key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", rl.limit,
		"window", rl.window.String(),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

// clientIPKey prefers the first X-Forwarded-For hop, as the console runs
// behind a proxy in production.
func clientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

// loginUsernameKey keys login attempts by the submitted username so one
// account cannot be guessed at from many addresses. The body is restored for
// the handler.
func loginUsernameKey(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return clientIPKey(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, loginPeekBytes))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return clientIPKey(r)
	}
	var payload struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return clientIPKey(r)
	}
	if name := strings.TrimSpace(payload.Username); name != "" {
		return "username:" + strings.ToLower(name)
	}
	return clientIPKey(r)
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

// sheetWritePrefixes are the route groups whose mutations write the
// spreadsheet.
var sheetWritePrefixes = []string{"/users", "/departments", "/holidays", "/leave-transfers"}

func sensitiveRateScope(r *http.Request) sensitiveScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	if path == "/auth/login" {
		return sensitiveScopeAuth
	}
	for _, prefix := range sheetWritePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return sensitiveScopeActor
		}
	}
	return sensitiveScopeNone
}
