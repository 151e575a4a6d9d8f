package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/bike-order-form/internal/domain/order"
	"github.com/xenking/bike-order-form/internal/domain/rate"
)

type productOption struct {
	ID       int
	Name     string
	Price    string
	Selected bool
}

type formPage struct {
	Input    order.Input
	Errors   order.FieldErrors
	Products []productOption
	Selected *productOption
}

type currencyOption struct {
	Name     string
	Selected bool
}

type summaryPage struct {
	Name           string
	Surname        string
	ProductName    string
	ImageURL       string
	Quantity       int
	Currency       string
	Converted      bool
	Rates          []currencyOption
	RatesAvailable bool
	Total          string
	TotalWithVAT   string
}

// Form renders the order form. Visiting it returns the view to Editing; the
// last submitted order, if any, pre-fills the fields.
func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	ctl := h.view(w, r)
	ctl.Reset()

	var in order.Input
	if o := ctl.Order(); o != nil {
		in = order.Input{
			Name:     o.Name,
			Surname:  o.Surname,
			Product:  strconv.Itoa(o.Product.ID),
			Quantity: strconv.Itoa(o.Quantity),
		}
	}
	h.renderForm(r.Context(), w, http.StatusOK, in, nil)
}

// Submit validates the posted form. Invalid input re-renders the form with
// one message per failing field; a valid order moves to the summary.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	in := order.Input{
		Name:     r.PostForm.Get(order.FieldName),
		Surname:  r.PostForm.Get(order.FieldSurname),
		Product:  r.PostForm.Get(order.FieldProduct),
		Quantity: r.PostForm.Get(order.FieldQuantity),
	}

	ctl := h.view(w, r)
	o, err := ctl.Submit(ctx, in)
	if err != nil {
		var fe order.FieldErrors
		if errors.As(err, &fe) {
			lg.Debug("Order form rejected", zap.Strings("fields", fe.Fields()))
			h.renderForm(ctx, w, http.StatusUnprocessableEntity, in, fe)
			return
		}
		lg.Error("Submit order", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.submissions.Add(ctx, 1, metric.WithAttributes(attribute.Int("product.id", o.Product.ID)))
	lg.Info("Order submitted",
		zap.Int("product_id", o.Product.ID),
		zap.Int("quantity", o.Quantity),
		zap.String("total", o.Total.StringFixed(2)),
	)
	http.Redirect(w, r, "/summary", http.StatusSeeOther)
}

// Summary renders the submitted order in the selected currency.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctl, ok := h.existingView(w, r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s, err := ctl.Summary()
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := summaryPage{
		Name:           s.Order.Name,
		Surname:        s.Order.Surname,
		ProductName:    s.Order.Product.Name,
		ImageURL:       s.Order.Product.ImageURL,
		Quantity:       s.Order.Quantity,
		Currency:       s.Currency,
		Converted:      s.Currency != rate.BaseCurrency,
		RatesAvailable: s.RatesAvailable,
		Total:          s.Total.StringFixed(2),
		TotalWithVAT:   s.TotalWithVAT.StringFixed(2),
	}
	for _, rt := range s.Rates {
		page.Rates = append(page.Rates, currencyOption{Name: rt.Name, Selected: rt.Name == s.Currency})
	}
	h.render(r.Context(), w, http.StatusOK, "summary.html", page)
}

// ChangeCurrency applies the currency picked in the summary selector.
func (h *Handler) ChangeCurrency(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	currency := r.PostForm.Get("currency")
	h.applyCurrency(w, r, "select", func(ctl *order.Controller) error {
		return ctl.ChangeCurrency(currency)
	})
}

// ToggleCurrency flips between CZK and the previously selected currency.
func (h *Handler) ToggleCurrency(w http.ResponseWriter, r *http.Request) {
	h.applyCurrency(w, r, "toggle", (*order.Controller).ToggleCurrency)
}

func (h *Handler) applyCurrency(w http.ResponseWriter, r *http.Request, action string, apply func(*order.Controller) error) {
	ctx := r.Context()
	ctl, ok := h.existingView(w, r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := apply(ctl); err != nil {
		if errors.Is(err, order.ErrNotSubmitted) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		zctx.From(ctx).Error("Change currency", zap.String("action", action), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	currency := ctl.Currency()
	h.conversions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("currency", currency),
	))
	zctx.From(ctx).Debug("Currency changed", zap.String("action", action), zap.String("currency", currency))
	http.Redirect(w, r, "/summary", http.StatusSeeOther)
}

func (h *Handler) renderForm(ctx context.Context, w http.ResponseWriter, status int, in order.Input, fe order.FieldErrors) {
	products, err := h.orders.Products(ctx)
	if err != nil {
		zctx.From(ctx).Error("List products", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	page := formPage{Input: in, Errors: fe}
	for _, p := range products {
		opt := productOption{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price.String(),
			Selected: strconv.Itoa(p.ID) == in.Product,
		}
		page.Products = append(page.Products, opt)
		if opt.Selected {
			page.Selected = &opt
		}
	}
	h.render(ctx, w, status, "form.html", page)
}

// render executes a page into a buffer first so a template failure never
// leaves a half-written response.
func (h *Handler) render(ctx context.Context, w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		zctx.From(ctx).Error("Render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
