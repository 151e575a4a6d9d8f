package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func apiCORS(origins ...string) http.Handler {
	return CORS(CORSConfig{
		PathPrefix:    "/api/",
		AllowOrigins:  origins,
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        600,
	})(okHandler())
}

func TestCORS_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/quote", nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := serve(apiCORS(), req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	h := apiCORS("https://Shop.Example")

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example")
	w := serve(h, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://Shop.Example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(h, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PagesUntouched(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/order", nil)
	req.Header.Set("Origin", "http://shop.example")

	w := serve(apiCORS(), req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
