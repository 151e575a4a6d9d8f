package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	v := NewValidator(catalog())

	p, qty, err := v.Validate(context.Background(), Input{
		Name: "Jan", Surname: "Novák", Product: "3", Quantity: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.ID)
	assert.Equal(t, 2, qty)
}

func TestValidate_FieldErrors(t *testing.T) {
	valid := Input{Name: "Jan", Surname: "Novák", Product: "3", Quantity: "2"}

	tests := []struct {
		name   string
		modify func(in *Input)
		want   FieldErrors
	}{
		{
			name:   "empty name",
			modify: func(in *Input) { in.Name = "" },
			want:   FieldErrors{FieldName: MsgNameRequired},
		},
		{
			name:   "blank surname",
			modify: func(in *Input) { in.Surname = "   " },
			want:   FieldErrors{FieldSurname: MsgSurnameRequired},
		},
		{
			name:   "both names empty",
			modify: func(in *Input) { in.Name, in.Surname = "", "" },
			want:   FieldErrors{FieldName: MsgNameRequired, FieldSurname: MsgSurnameRequired},
		},
		{
			name:   "missing product",
			modify: func(in *Input) { in.Product = "" },
			want:   FieldErrors{FieldProduct: MsgProductRequired},
		},
		{
			name:   "product zero",
			modify: func(in *Input) { in.Product = "0" },
			want:   FieldErrors{FieldProduct: MsgProductInvalid},
		},
		{
			name:   "product six",
			modify: func(in *Input) { in.Product = "6" },
			want:   FieldErrors{FieldProduct: MsgProductInvalid},
		},
		{
			name:   "product not a number",
			modify: func(in *Input) { in.Product = "bike" },
			want:   FieldErrors{FieldProduct: MsgProductInvalid},
		},
		{
			name:   "missing quantity",
			modify: func(in *Input) { in.Quantity = "" },
			want:   FieldErrors{FieldQuantity: MsgQuantityRequired},
		},
		{
			name:   "zero quantity",
			modify: func(in *Input) { in.Quantity = "0" },
			want:   FieldErrors{FieldQuantity: MsgQuantityMin},
		},
		{
			name:   "negative quantity",
			modify: func(in *Input) { in.Quantity = "-4" },
			want:   FieldErrors{FieldQuantity: MsgQuantityMin},
		},
		{
			name:   "quantity not a number",
			modify: func(in *Input) { in.Quantity = "dva" },
			want:   FieldErrors{FieldQuantity: MsgQuantityNaN},
		},
		{
			name: "everything wrong",
			modify: func(in *Input) {
				*in = Input{Product: "x", Quantity: "0"}
			},
			want: FieldErrors{
				FieldName:     MsgNameRequired,
				FieldSurname:  MsgSurnameRequired,
				FieldProduct:  MsgProductInvalid,
				FieldQuantity: MsgQuantityMin,
			},
		},
	}

	v := NewValidator(catalog())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			_, _, err := v.Validate(context.Background(), in)

			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.want, fe)
		})
	}
}

func TestValidateLine(t *testing.T) {
	v := NewValidator(catalog())

	p, err := v.ValidateLine(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.ID)

	_, err = v.ValidateLine(context.Background(), 7, 0)
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldErrors{
		FieldProduct:  MsgProductInvalid,
		FieldQuantity: MsgQuantityMin,
	}, fe)
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{
		FieldQuantity: MsgQuantityMin,
		FieldName:     MsgNameRequired,
	}
	assert.Equal(t, []string{FieldName, FieldQuantity}, fe.Fields())
	assert.Equal(t,
		"invalid order: name: "+MsgNameRequired+"; quantity: "+MsgQuantityMin,
		fe.Error(),
	)
}
