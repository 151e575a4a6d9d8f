package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per window.
	Max int
	// Window is the length of one window.
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// Limited selects the requests that count against the limit. Defaults to
	// every request except GET, HEAD and OPTIONS, so page views and probes
	// are never throttled while form posts and quotes are.
	Limited func(*http.Request) bool
}

// counter tracks request counts in the current and previous window.
type counter struct {
	prev      float64
	curr      float64
	currStart time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Limited == nil {
		cfg.Limited = isWrite
	}
	return &rateLimiter{
		cfg:      cfg,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// allow reports whether key may make another request at now, together with
// the remaining budget and the end of the current window.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.cfg.Window
	c, found := rl.counters[key]
	if !found {
		c = &counter{currStart: now.Truncate(window)}
		rl.counters[key] = c
	}

	switch elapsed := now.Sub(c.currStart); {
	case elapsed >= 2*window:
		c.prev, c.curr = 0, 0
		c.currStart = now.Truncate(window)
	case elapsed >= window:
		c.prev, c.curr = c.curr, 0
		c.currStart = c.currStart.Add(window)
	}

	// Weight the previous window by how much of it the sliding window still
	// covers.
	overlap := 1 - now.Sub(c.currStart).Seconds()/window.Seconds()
	overlap = math.Max(overlap, 0)
	used := c.prev*overlap + c.curr
	resetAt = c.currStart.Add(window)

	if used >= float64(rl.cfg.Max) {
		return 0, resetAt, false
	}
	c.curr++
	return max(int(float64(rl.cfg.Max)-used-1), 0), resetAt, true
}

// cleanup drops counters that have been idle for two windows.
func (rl *rateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, c := range rl.counters {
		if now.Sub(c.currStart) >= 2*rl.cfg.Window {
			delete(rl.counters, key)
		}
	}
}

func (rl *rateLimiter) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * rl.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.cleanup(now)
			}
		}
	}()
}

// RateLimit limits each client to cfg.Max limited requests per sliding
// window. A rejected request gets 429 with a JSON body and Retry-After.
// Limited requests carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine evicting idle clients
// until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	rl.startCleanup(ctx)
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.Max <= 0 || !rl.cfg.Limited(r) {
			next.ServeHTTP(w, r)
			return
		}

		now := rl.now()
		remaining, resetAt, ok := rl.allow(rl.cfg.KeyFunc(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retry := max(resetAt.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))

			var e jx.Encoder
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusTooManyRequests)
			e.FieldStart("message")
			e.Str("rate limit exceeded")
			e.ObjEnd()

			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write(e.Bytes())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isWrite(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
