package order

import (
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bike-order-form/internal/domain/product"
)

// Form field names, as submitted by the order form.
const (
	FieldName     = "name"
	FieldSurname  = "surname"
	FieldProduct  = "product"
	FieldQuantity = "quantity"
)

// ErrNotSubmitted is returned by currency operations before an order exists.
var ErrNotSubmitted = errors.New("order not submitted")

// State is the observable state of the order form.
type State int

const (
	// Editing means the form is shown and no order is on display.
	Editing State = iota
	// Submitted means a valid order has been captured and is on display.
	Submitted
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Input is the raw, unparsed form submission.
type Input struct {
	Name     string
	Surname  string
	Product  string
	Quantity string
}

// Order is an ephemeral snapshot of a submitted form. It lives only in the
// view state that produced it.
type Order struct {
	Name     string
	Surname  string
	Product  product.Product
	Quantity int
	// Subtotal is price × quantity, unrounded.
	Subtotal decimal.Decimal
	// Total is Subtotal rounded to 2 decimal places.
	Total decimal.Decimal
}

// FieldErrors maps a form field to its user-facing validation message.
type FieldErrors map[string]string

var fieldOrder = map[string]int{
	FieldName:     0,
	FieldSurname:  1,
	FieldProduct:  2,
	FieldQuantity: 3,
}

// Fields returns the failing field names in form order.
func (e FieldErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		oi, iok := fieldOrder[fields[i]]
		oj, jok := fieldOrder[fields[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return fields[i] < fields[j]
	})
	return fields
}

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid order: " + strings.Join(parts, "; ")
}
