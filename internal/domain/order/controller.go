package order

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/bike-order-form/internal/domain/rate"
)

// RateSource exposes the shared, write-once rate table.
type RateSource interface {
	// Rates returns the current table. It is empty until the feed loads and
	// stays empty if the feed failed.
	Rates() *rate.Table
	// Available reports whether the feed produced a table.
	Available() bool
}

// Summary is everything the post-submission view renders.
type Summary struct {
	Order          Order
	Currency       string
	Rates          []rate.Rate
	RatesAvailable bool
	Scale          decimal.Decimal
	Total          decimal.Decimal
	TotalWithVAT   decimal.Decimal
}

// Controller owns the state of one order form view. It is safe for
// concurrent use.
type Controller struct {
	validator *Validator
	rates     RateSource

	mu    sync.Mutex
	state State
	order *Order
	// currency is the selected display name; prevCurrency is what the
	// toggle returns to from the base currency.
	currency     string
	prevCurrency string
	scale        decimal.Decimal
	scaleSet     bool
}

// NewController returns a Controller in the Editing state with the base
// currency selected.
func NewController(validator *Validator, rates RateSource) *Controller {
	return &Controller{
		validator: validator,
		rates:     rates,
		state:     Editing,
		currency:  rate.BaseCurrency,
	}
}

// State returns the current form state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Order returns a copy of the last submitted order, or nil before the first
// submission. It survives Reset so a revisit can pre-fill the form.
func (c *Controller) Order() *Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.order == nil {
		return nil
	}
	o := *c.order
	return &o
}

// Submit validates the input and, on success, snapshots the order and moves
// to Submitted. A validation failure leaves the state untouched and returns
// FieldErrors. The selected currency survives a resubmission.
func (c *Controller) Submit(ctx context.Context, in Input) (*Order, error) {
	p, qty, err := c.validator.Validate(ctx, in)
	if err != nil {
		return nil, err
	}

	subtotal := Subtotal(p.Price, qty)
	o := &Order{
		Name:     in.Name,
		Surname:  in.Surname,
		Product:  *p,
		Quantity: qty,
		Subtotal: subtotal,
		Total:    subtotal.Round(2),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = o
	c.state = Submitted

	snapshot := *o
	return &snapshot, nil
}

// Reset returns to Editing, as when the form page is revisited.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Editing
}

// ChangeCurrency selects the currency with the given display name. Selecting
// a currency the table does not know is a silent no-op.
func (c *Controller) ChangeCurrency(currency string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Submitted {
		return ErrNotSubmitted
	}

	scale, ok := Scale(c.rates.Rates(), currency)
	if !ok {
		return nil
	}
	c.currency = currency
	c.scale = scale
	c.scaleSet = true
	return nil
}

// ToggleCurrency flips between the base currency and the currency that was
// selected the last time the toggle left it. Toggling back from the base
// currency does nothing until such a currency is remembered and present in
// the rate table.
func (c *Controller) ToggleCurrency() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Submitted {
		return ErrNotSubmitted
	}

	if c.currency == rate.BaseCurrency {
		r, ok := c.rates.Rates().Lookup(c.prevCurrency)
		if !ok {
			return nil
		}
		c.currency = c.prevCurrency
		c.scale = one.Div(r.Mid)
		c.scaleSet = true
		return nil
	}

	c.prevCurrency = c.currency
	c.currency = rate.BaseCurrency
	c.scale = one
	c.scaleSet = true
	return nil
}

// Currency returns the selected currency display name.
func (c *Controller) Currency() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currency
}

// Summary renders the submitted order in the selected currency.
func (c *Controller) Summary() (*Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Submitted || c.order == nil {
		return nil, ErrNotSubmitted
	}

	tbl := c.rates.Rates()
	scale := c.currentScale(tbl)
	return &Summary{
		Order:          *c.order,
		Currency:       c.currency,
		Rates:          tbl.All(),
		RatesAvailable: c.rates.Available(),
		Scale:          scale,
		Total:          Convert(c.order.Total, scale),
		TotalWithVAT:   ConvertWithVAT(c.order.Subtotal, scale),
	}, nil
}

// currentScale returns the explicitly selected scale, or the base currency's
// own mid rate when the feed lists one, or 1. Must hold c.mu.
func (c *Controller) currentScale(tbl *rate.Table) decimal.Decimal {
	if c.scaleSet {
		return c.scale
	}
	if r, ok := tbl.Lookup(rate.BaseCurrency); ok {
		return r.Mid
	}
	return one
}
