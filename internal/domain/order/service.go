package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/bike-order-form/internal/domain/product"
	"github.com/xenking/bike-order-form/internal/domain/rate"
)

// UnknownCurrencyError indicates a quote asked for a currency that is not in
// the rate table.
type UnknownCurrencyError struct {
	Currency string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("currency %q not available", e.Currency)
}

// QuoteRequest holds the input for a stateless price quote.
type QuoteRequest struct {
	ProductID int
	Quantity  int
	// Currency is a display name; empty means the base currency.
	Currency string
}

// Quote is a priced order line in a given currency.
type Quote struct {
	Product      product.Product
	Quantity     int
	Currency     string
	Scale        decimal.Decimal
	BaseTotal    decimal.Decimal
	Total        decimal.Decimal
	TotalWithVAT decimal.Decimal
}

// Service creates order form controllers and answers stateless quotes. All
// controllers share the catalog and the rate table.
type Service struct {
	products  product.Repository
	validator *Validator
	rates     RateSource
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products product.Repository, rates RateSource) *Service {
	return &Service{
		products:  products,
		validator: NewValidator(products),
		rates:     rates,
	}
}

// Products returns the catalog the form offers.
func (s *Service) Products(ctx context.Context) ([]product.Product, error) {
	return s.products.List(ctx)
}

// Product returns a single catalog entry or product.ErrNotFound.
func (s *Service) Product(ctx context.Context, id int) (*product.Product, error) {
	return s.products.GetByID(ctx, id)
}

// Rates returns the shared rate source.
func (s *Service) Rates() RateSource {
	return s.rates
}

// NewController returns a fresh form controller for one view.
func (s *Service) NewController() *Controller {
	return NewController(s.validator, s.rates)
}

// Quote prices a product line in the requested currency. Unlike the form
// view, an unknown currency is an error here.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	p, err := s.validator.ValidateLine(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = rate.BaseCurrency
	}
	scale, ok := Scale(s.rates.Rates(), currency)
	if !ok {
		return nil, &UnknownCurrencyError{Currency: currency}
	}

	subtotal := Subtotal(p.Price, req.Quantity)
	return &Quote{
		Product:      *p,
		Quantity:     req.Quantity,
		Currency:     currency,
		Scale:        scale,
		BaseTotal:    subtotal.Round(2),
		Total:        Convert(subtotal.Round(2), scale),
		TotalWithVAT: ConvertWithVAT(subtotal, scale),
	}, nil
}
