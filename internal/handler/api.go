package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bike-order-form/internal/domain/order"
	"github.com/xenking/bike-order-form/internal/domain/product"
	"github.com/xenking/bike-order-form/internal/domain/rate"
)

const maxQuoteBody = 4 << 10

// ListProducts implements GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.orders.Products(r.Context())
	if err != nil {
		h.internalError(w, r, "list products", err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range products {
		encodeProduct(&e, &products[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// GetProduct implements GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID", nil)
		return
	}

	p, err := h.orders.Product(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found", nil)
			return
		}
		h.internalError(w, r, "get product", err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, p)
	writeJSON(w, http.StatusOK, &e)
}

// ListRates implements GET /api/rates. Before the feed has loaded, or after
// it failed, the list is empty and available is false.
func (h *Handler) ListRates(w http.ResponseWriter, _ *http.Request) {
	src := h.orders.Rates()
	tbl := src.Rates()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("available")
	e.Bool(src.Available())
	e.FieldStart("base")
	e.Str(rate.BaseCurrency)
	e.FieldStart("bank")
	e.Str(tbl.Bank())
	e.FieldStart("rates")
	e.ArrStart()
	for _, rt := range tbl.All() {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(rt.Code)
		e.FieldStart("name")
		e.Str(rt.Name)
		e.FieldStart("unit")
		e.Int(rt.Unit)
		e.FieldStart("mid")
		e.Str(rt.Mid.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// Quote implements POST /api/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxQuoteBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		return
	}
	req, err := decodeQuoteRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	q, err := h.orders.Quote(r.Context(), req)
	if err != nil {
		var (
			fe    order.FieldErrors
			ucErr *order.UnknownCurrencyError
		)
		switch {
		case errors.As(err, &fe):
			writeError(w, http.StatusUnprocessableEntity, "invalid order line", fe)
		case errors.As(err, &ucErr):
			writeError(w, http.StatusUnprocessableEntity, ucErr.Error(), nil)
		default:
			h.internalError(w, r, "quote", err)
		}
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("product")
	encodeProduct(&e, &q.Product)
	e.FieldStart("quantity")
	e.Int(q.Quantity)
	e.FieldStart("currency")
	e.Str(q.Currency)
	e.FieldStart("scale")
	e.Str(q.Scale.String())
	e.FieldStart("baseTotal")
	e.Str(q.BaseTotal.StringFixed(2))
	e.FieldStart("total")
	e.Str(q.Total.StringFixed(2))
	e.FieldStart("totalWithVat")
	e.Str(q.TotalWithVAT.StringFixed(2))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// decodeQuoteRequest reads {"product":3,"quantity":2,"currency":"EUR"}.
// Unknown fields are skipped.
func decodeQuoteRequest(body []byte) (order.QuoteRequest, error) {
	var req order.QuoteRequest
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "product":
			req.ProductID, err = d.Int()
		case "quantity":
			req.Quantity, err = d.Int()
		case "currency":
			req.Currency, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return order.QuoteRequest{}, errors.Wrap(err, "decode quote request")
	}
	return req, nil
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	if p.ImageURL != "" {
		e.FieldStart("image")
		e.Str(p.ImageURL)
	}
	e.ObjEnd()
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	zctx.From(r.Context()).Error("API request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error", nil)
}

// writeError writes {"code","message"} plus per-field messages when fields
// is non-empty.
func writeError(w http.ResponseWriter, status int, msg string, fields order.FieldErrors) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	if len(fields) > 0 {
		e.FieldStart("fields")
		e.ObjStart()
		for _, name := range fields.Fields() {
			e.FieldStart(name)
			e.Str(fields[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
