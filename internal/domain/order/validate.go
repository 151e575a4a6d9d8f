package order

import (
	"context"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/bike-order-form/internal/domain/product"
)

// Validation messages shown next to the offending field.
const (
	MsgNameRequired     = "Jméno je povinné"
	MsgSurnameRequired  = "Příjmení je povinné"
	MsgProductRequired  = "Produkt je povinný"
	MsgProductInvalid   = "Vyberte platný produkt"
	MsgQuantityRequired = "Počet kusů je povinný"
	MsgQuantityNaN      = "Počet kusů musí být číslo"
	MsgQuantityMin      = "Počet kusů musí být větší než 0"
)

var messages = map[string]map[string]string{
	FieldName:     {"notblank": MsgNameRequired},
	FieldSurname:  {"notblank": MsgSurnameRequired},
	FieldProduct:  {"required": MsgProductRequired, "catalog": MsgProductInvalid},
	FieldQuantity: {"required": MsgQuantityRequired, "min": MsgQuantityMin},
}

// form is the parsed submission the validation rules run against.
type form struct {
	Name     string `form:"name" validate:"notblank"`
	Surname  string `form:"surname" validate:"notblank"`
	Product  *int   `form:"product" validate:"required,catalog"`
	Quantity *int   `form:"quantity" validate:"required,min=1"`
}

// Validator checks order form input against the catalog.
type Validator struct {
	products product.Repository
	v        *validator.Validate
}

// NewValidator creates a Validator that resolves products through the given
// repository.
func NewValidator(products product.Repository) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("form")
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidationCtx("catalog", func(ctx context.Context, fl validator.FieldLevel) bool {
		_, err := products.GetByID(ctx, int(fl.Field().Int()))
		return err == nil
	})
	return &Validator{products: products, v: v}
}

// Validate parses and checks the input. Every failing field gets exactly one
// message; a failure in one field never hides another. On success it returns
// the resolved product and quantity.
func (val *Validator) Validate(ctx context.Context, in Input) (*product.Product, int, error) {
	return val.validate(ctx, in, nil)
}

// ValidateLine checks only the product and quantity, for anonymous quotes.
func (val *Validator) ValidateLine(ctx context.Context, productID, quantity int) (*product.Product, error) {
	in := Input{Product: strconv.Itoa(productID), Quantity: strconv.Itoa(quantity)}
	p, _, err := val.validate(ctx, in, []string{FieldProduct, FieldQuantity})
	return p, err
}

// validate runs every rule and keeps the errors of the given fields, or of
// all fields when only is empty.
func (val *Validator) validate(ctx context.Context, in Input, only []string) (*product.Product, int, error) {
	fe := FieldErrors{}
	f := form{Name: in.Name, Surname: in.Surname}

	if s := strings.TrimSpace(in.Product); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			fe[FieldProduct] = MsgProductInvalid
		} else {
			f.Product = &id
		}
	}
	if s := strings.TrimSpace(in.Quantity); s != "" {
		qty, err := strconv.Atoi(s)
		if err != nil {
			fe[FieldQuantity] = MsgQuantityNaN
		} else {
			f.Quantity = &qty
		}
	}

	if err := val.v.StructCtx(ctx, f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, 0, errors.Wrap(err, "validate order form")
		}
		for _, e := range verrs {
			if _, seen := fe[e.Field()]; seen {
				continue
			}
			fe[e.Field()] = messages[e.Field()][e.Tag()]
		}
	}
	if len(only) > 0 {
		for field := range fe {
			if !slices.Contains(only, field) {
				delete(fe, field)
			}
		}
	}
	if len(fe) > 0 {
		return nil, 0, fe
	}

	p, err := val.products.GetByID(ctx, *f.Product)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, 0, FieldErrors{FieldProduct: MsgProductInvalid}
		}
		return nil, 0, errors.Wrap(err, "get product")
	}
	return p, *f.Quantity, nil
}
