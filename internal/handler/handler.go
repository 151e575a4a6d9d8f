package handler

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/bike-order-form/internal/domain/order"
	"github.com/xenking/bike-order-form/internal/session"
	"github.com/xenking/bike-order-form/web"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// CookieName names the session cookie.
	CookieName string
	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool
	// SessionTTL is the cookie lifetime; it should match the store TTL.
	SessionTTL time.Duration
}

// Handler serves the order form pages and the JSON API, delegating business
// logic to the order service and keeping view state in the session store.
type Handler struct {
	orders   *order.Service
	sessions *session.Store
	pages    *template.Template
	cfg      HandlerConfig

	submissions metric.Int64Counter
	conversions metric.Int64Counter
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	orders *order.Service,
	sessions *session.Store,
	meter metric.Meter,
) (*Handler, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "orderform_session"
	}

	pages, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}

	submissions, err := meter.Int64Counter("orderform.orders.submitted",
		metric.WithDescription("Order form submissions that passed validation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create submissions counter")
	}
	conversions, err := meter.Int64Counter("orderform.currency.changes",
		metric.WithDescription("Currency selections and toggles on the summary view"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create conversions counter")
	}

	return &Handler{
		orders:      orders,
		sessions:    sessions,
		pages:       pages,
		cfg:         cfg,
		submissions: submissions,
		conversions: conversions,
	}, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Form)
	mux.HandleFunc("POST /order", h.Submit)
	mux.HandleFunc("GET /summary", h.Summary)
	mux.HandleFunc("POST /summary/currency", h.ChangeCurrency)
	mux.HandleFunc("POST /summary/toggle", h.ToggleCurrency)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/rates", h.ListRates)
	mux.HandleFunc("POST /api/quote", h.Quote)
}

// view returns the visitor's order form controller, starting a new session
// when the cookie is missing or stale.
func (h *Handler) view(w http.ResponseWriter, r *http.Request) *order.Controller {
	id, ctl := h.sessions.Get(h.sessionID(r))
	h.setCookie(w, id)
	return ctl
}

// existingView returns the visitor's view without starting a new session.
// Summary pages have nothing to show to a visitor without one.
func (h *Handler) existingView(w http.ResponseWriter, r *http.Request) (*order.Controller, bool) {
	id := h.sessionID(r)
	ctl, ok := h.sessions.Lookup(id)
	if !ok {
		return nil, false
	}
	h.setCookie(w, id)
	return ctl, true
}

func (h *Handler) sessionID(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
