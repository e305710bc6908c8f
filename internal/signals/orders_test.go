package signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
)

type fakeHistory struct {
	skus []string
}

func (f *fakeHistory) OrderedSimpleSKUs(context.Context, string) ([]string, error) {
	return f.skus, nil
}

type fakeResolver struct {
	products map[string]models.Product
}

func (f *fakeResolver) GetRawBySimpleSKU(_ context.Context, simpleSKU string) (models.Product, error) {
	p, ok := f.products[simpleSKU]
	if !ok {
		return models.Product{}, apperr.NotFound("no product for %s", simpleSKU)
	}
	return p, nil
}

func TestOrderAggregatorEmptyHistory(t *testing.T) {
	a := NewOrderAggregator(&fakeHistory{}, &fakeResolver{})

	sets, err := a.Aggregate(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.Nil(t, sets)
}

func TestOrderAggregatorDeduplicatesAndSkipsMissing(t *testing.T) {
	nike := models.Product{
		ConfigSKU: "SHOE1", Manufacturer: "Nike", Gender: "MENS",
		ProductType: "Shoes", Colour: "Black",
		Sizes: []models.SizeVariant{{SimpleSKU: "SHOE1-9", Size: "9"}},
	}
	resolver := &fakeResolver{products: map[string]models.Product{
		"SHOE1-9":  nike,
		"SHOE1-10": nike,
	}}
	// Two variants of the same product plus one sku that has left the
	// catalog since the order was placed.
	history := &fakeHistory{skus: []string{"SHOE1-9", "SHOE1-10", "GONE-1"}}

	a := NewOrderAggregator(history, resolver)
	sets, err := a.Aggregate(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.NotNil(t, sets)

	// One distinct product backs the sets, so every matching attribute
	// contributes productCount/1 = 10.
	require.InDelta(t, 50.0, sets.Apply(&nike), 1e-9)
}
