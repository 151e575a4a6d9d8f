package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bike-order-form/internal/domain/product"
)

func TestDefaultProductRepository(t *testing.T) {
	repo, err := DefaultProductRepository()
	require.NoError(t, err)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 5)

	for i, p := range products {
		assert.Equal(t, i+1, p.ID)
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.ImageURL)
		assert.True(t, p.Price.IsPositive())
	}

	p, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "BMC Teammachine SLR SIX kolo, neon red/black", p.Name)
	assert.True(t, decimal.NewFromInt(66699).Equal(p.Price))
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	repo, err := DefaultProductRepository()
	require.NoError(t, err)

	for _, id := range []int{0, -1, 6, 100} {
		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, product.ErrNotFound, "id %d", id)
	}
}

func TestProductRepository_ListIsACopy(t *testing.T) {
	repo, err := DefaultProductRepository()
	require.NoError(t, err)

	first, err := repo.List(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name)
}

func TestNewProductRepository_DuplicateID(t *testing.T) {
	_, err := NewProductRepository([]product.Product{
		{ID: 1, Name: "a", Price: decimal.NewFromInt(1)},
		{ID: 1, Name: "b", Price: decimal.NewFromInt(2)},
	})
	require.Error(t, err)
}

func TestLoadProductRepository_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `[{"id":`},
		{"zero id", `[{"id":0,"name":"x","price":"1"}]`},
		{"zero price", `[{"id":1,"name":"x","price":"0"}]`},
		{"bad price", `[{"id":1,"name":"x","price":"cheap"}]`},
		{"not a list", `{"id":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProductRepository([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestLoadProductRepository_NumericPrice(t *testing.T) {
	repo, err := LoadProductRepository([]byte(`[
		{"id": 2, "name": "b", "price": 10.5, "stock": 3},
		{"id": 1, "name": "a", "price": "7"}
	]`))
	require.NoError(t, err)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 1, products[0].ID)
	assert.True(t, decimal.RequireFromString("10.5").Equal(products[1].Price))
}
