// Package memory holds read-only repositories backed by data compiled into
// the binary.
package memory

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bike-order-form/db"
	"github.com/xenking/bike-order-form/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository over a fixed product list.
// The list is never mutated after construction, so concurrent reads are safe.
type ProductRepository struct {
	products []product.Product
	byID     map[int]int
}

// NewProductRepository returns a repository serving the given products
// ordered by ID. Duplicate IDs are rejected.
func NewProductRepository(products []product.Product) (*ProductRepository, error) {
	sorted := slices.Clone(products)
	slices.SortFunc(sorted, func(a, b product.Product) int { return a.ID - b.ID })

	byID := make(map[int]int, len(sorted))
	for i, p := range sorted {
		if _, dup := byID[p.ID]; dup {
			return nil, errors.Errorf("duplicate product id %d", p.ID)
		}
		byID[p.ID] = i
	}
	return &ProductRepository{products: sorted, byID: byID}, nil
}

// LoadProductRepository parses a JSON product list such as db.Products.
// Prices may be JSON strings or numbers.
func LoadProductRepository(data []byte) (*ProductRepository, error) {
	var products []product.Product
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	for _, p := range products {
		if p.ID <= 0 {
			return nil, errors.Errorf("product %q: id must be positive", p.Name)
		}
		if !p.Price.IsPositive() {
			return nil, errors.Errorf("product %d: price must be positive", p.ID)
		}
	}
	return NewProductRepository(products)
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int()
		case "name":
			p.Name, err = d.Str()
		case "image":
			p.ImageURL, err = d.Str()
		case "price":
			p.Price, err = decodePrice(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return p, err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	return decimal.NewFromString(raw)
}

// DefaultProductRepository returns the catalog embedded in the binary.
func DefaultProductRepository() (*ProductRepository, error) {
	return LoadProductRepository(db.Products)
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	return slices.Clone(r.products), nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(_ context.Context, id int) (*product.Product, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := r.products[i]
	return &p, nil
}
