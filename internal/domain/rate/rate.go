package rate

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency catalog prices are denominated in.
const BaseCurrency = "CZK"

// ErrUnavailable is returned when the rate feed cannot produce a table.
var ErrUnavailable = errors.New("exchange rates unavailable")

// Rate is a single exchange rate record from the feed.
type Rate struct {
	Code string
	// Name is the display name. Consumers look rates up by it.
	Name string
	Unit int
	Mid  decimal.Decimal
}

// Provider fetches a snapshot of exchange rates.
type Provider interface {
	Fetch(ctx context.Context) (*Table, error)
}

// Table is an immutable set of rates keyed by display name.
type Table struct {
	bank   string
	rates  []Rate
	byName map[string]int
}

// NewTable builds a table from feed records. Records without a display name
// or with a non-positive mid rate are dropped. On a duplicate display name
// the later record wins.
func NewTable(bank string, rates []Rate) *Table {
	t := &Table{
		bank:   bank,
		byName: make(map[string]int, len(rates)),
	}
	for _, r := range rates {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" || !r.Mid.IsPositive() {
			continue
		}
		if i, ok := t.byName[r.Name]; ok {
			t.rates[i] = r
			continue
		}
		t.byName[r.Name] = len(t.rates)
		t.rates = append(t.rates, r)
	}
	slices.SortStableFunc(t.rates, func(a, b Rate) int { return strings.Compare(a.Name, b.Name) })
	for i, r := range t.rates {
		t.byName[r.Name] = i
	}
	return t
}

// Bank returns the bank identifier reported by the feed.
func (t *Table) Bank() string {
	if t == nil {
		return ""
	}
	return t.bank
}

// Len returns the number of rates. A nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

// Lookup returns the rate with the given display name.
func (t *Table) Lookup(name string) (Rate, bool) {
	if t == nil {
		return Rate{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return Rate{}, false
	}
	return t.rates[i], true
}

// All returns the rates ordered by display name.
func (t *Table) All() []Rate {
	if t == nil {
		return nil
	}
	return slices.Clone(t.rates)
}
