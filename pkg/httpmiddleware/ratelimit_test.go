package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func postFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/order", nil)
	req.RemoteAddr = addr
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(handler, postFrom("192.168.1.1:12345"))

		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	w := serve(handler, postFrom("10.0.0.1:9999"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	w = serve(handler, postFrom("10.0.0.1:9999"))
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(handler, postFrom("10.0.0.1:9999"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_ReadsAreNotLimited(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/summary", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := serve(handler, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, http.StatusOK, serve(handler, postFrom("10.0.0.1:1234")).Code)
}

func TestRateLimit_DisabledWhenMaxZero(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Window: time.Minute})(okHandler())

	for range 10 {
		assert.Equal(t, http.StatusOK, serve(handler, postFrom("10.0.0.1:1234")).Code)
	}
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, postFrom("10.0.0.1:1234")).Code)
	assert.Equal(t, http.StatusOK, serve(handler, postFrom("10.0.0.2:1234")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, postFrom("10.0.0.1:5678")).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			c, err := r.Cookie("session")
			if err != nil {
				return ""
			}
			return c.Value
		},
	})(okHandler())

	withSession := func(id string) *http.Request {
		req := postFrom("10.0.0.1:1234")
		req.AddCookie(&http.Cookie{Name: "session", Value: id})
		return req
	}

	assert.Equal(t, http.StatusOK, serve(handler, withSession("a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, withSession("a")).Code)
	assert.Equal(t, http.StatusOK, serve(handler, withSession("b")).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	req := postFrom("192.168.1.1:4444")
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, http.StatusOK, serve(handler, req).Code)

	req = postFrom("192.168.1.2:5555")
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, req).Code)
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := rl.allow("k", start)
	require.True(t, ok)
	_, _, ok = rl.allow("k", start.Add(10*time.Second))
	require.True(t, ok)
	_, _, ok = rl.allow("k", start.Add(20*time.Second))
	require.False(t, ok)

	// Half way into the next window the previous two requests still weigh one.
	remaining, _, ok := rl.allow("k", start.Add(90*time.Second))
	require.True(t, ok)
	assert.Equal(t, 0, remaining)
	_, _, ok = rl.allow("k", start.Add(90*time.Second))
	require.False(t, ok)

	// Two idle windows reset the counter.
	_, _, ok = rl.allow("k", start.Add(5*time.Minute))
	require.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	rl.allow("idle", start)
	rl.allow("busy", start.Add(2*time.Minute))
	rl.cleanup(start.Add(2*time.Minute + time.Second))

	assert.NotContains(t, rl.counters, "idle")
	assert.Contains(t, rl.counters, "busy")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	assert.Equal(t, "203.0.113.50", ClientIP(req))
}
