package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	idx, err := storage.NewDocumentIndex(path, storage.DefaultIndexOptions())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	s := NewService(idx, 30)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func testProducts(now time.Time) []models.Product {
	return []models.Product{
		{
			ConfigSKU: "SHOE1", Manufacturer: "Nike", Gender: "MENS",
			ProductType: "Shoes", SubProductType: "Sneakers", Colour: "Black",
			ProductName: "Air Runner", Price: decimal.NewFromInt(100), Discount: decimal.NewFromInt(50),
			CreatedAt: now.AddDate(0, 0, -5),
			Sizes: []models.SizeVariant{
				{SimpleSKU: "SHOE1-9", Size: "9", Qty: 4},
				{SimpleSKU: "SHOE1-10", Size: "10", Qty: 0},
			},
		},
		{
			ConfigSKU: "SHIRT1", Manufacturer: "Adidas", Gender: "LADIES",
			ProductType: "Shirts", SubProductType: "Tees", Colour: "White",
			ProductName: "Logo Tee", Price: decimal.NewFromInt(40),
			CreatedAt: now.AddDate(0, 0, -90),
			Sizes: []models.SizeVariant{
				{SimpleSKU: "SHIRT1-S", Size: "S", Qty: 10},
			},
		},
		{
			ConfigSKU: "SHOE2", Manufacturer: "Nike", Gender: "LADIES",
			ProductType: "Shoes", SubProductType: "Boots", Colour: "Black",
			ProductName: "Trail Boot", Price: decimal.NewFromInt(200),
			CreatedAt: now.AddDate(0, 0, -45),
			Sizes: []models.SizeVariant{
				{SimpleSKU: "SHOE2-6", Size: "6", Qty: 2},
			},
		},
	}
}

func seedCatalog(t *testing.T, s *Service) {
	t.Helper()
	require.NoError(t, s.Upsert(context.Background(), testProducts(time.Now().UTC())))
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)
	ctx := context.Background()

	p, err := s.Get(ctx, "SHOE1")
	require.NoError(t, err)
	require.Equal(t, "Nike", p.Manufacturer)
	require.Len(t, p.Sizes, 2)

	_, err = s.Get(ctx, "GHOST")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	count, err := s.ProductCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestUpsertValidates(t *testing.T) {
	s := newTestService(t)

	err := s.Upsert(context.Background(), []models.Product{{ConfigSKU: "NOSIZES"}})
	require.True(t, apperr.IsKind(err, apperr.KindIncorrectInput))
}

func TestGetRawBySimpleSKU(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)
	ctx := context.Background()

	p, err := s.GetRawBySimpleSKU(ctx, "SHOE1-10")
	require.NoError(t, err)
	require.Equal(t, "SHOE1", p.ConfigSKU)

	_, err = s.GetRawBySimpleSKU(ctx, "NOPE-1")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestGetMany(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)

	products, err := s.GetMany(context.Background(), []string{"SHOE1", "GHOST", "SHIRT1"})
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestSearchFilters(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter models.ProductFilter
		want   []string
	}{
		{
			name:   "brand",
			filter: models.ProductFilter{"brand": []any{"Nike"}},
			want:   []string{"SHOE1", "SHOE2"},
		},
		{
			name:   "gender and type",
			filter: models.ProductFilter{"gender": "LADIES", "product_type": "Shoes"},
			want:   []string{"SHOE2"},
		},
		{
			name:   "size variant",
			filter: models.ProductFilter{"size": []any{"9"}},
			want:   []string{"SHOE1"},
		},
		{
			name:   "new in",
			filter: models.ProductFilter{"newin": true},
			want:   []string{"SHOE1"},
		},
		{
			name:   "price range on effective price",
			filter: models.ProductFilter{"price": []any{float64(30), float64(60)}},
			want:   []string{"SHIRT1", "SHOE1"}, // SHOE1 is 50 after discount
		},
		{
			name:   "search query prefix",
			filter: models.ProductFilter{"search_query": "Air"},
			want:   []string{"SHOE1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, total, err := s.Search(ctx, tt.filter, nil, 1, 20)
			require.NoError(t, err)
			require.Equal(t, len(tt.want), total)
			var skus []string
			for _, p := range products {
				skus = append(skus, p.ConfigSKU)
			}
			require.ElementsMatch(t, tt.want, skus)
		})
	}
}

func TestSearchRejectsUnknownFilter(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)

	_, _, err := s.Search(context.Background(), models.ProductFilter{"mystery": "x"}, nil, 1, 20)
	require.True(t, apperr.IsKind(err, apperr.KindIncorrectInput))
}

func TestSearchSortByEffectivePrice(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)

	products, _, err := s.Search(context.Background(), nil,
		[]models.SortOrder{{Field: "price", Direction: "asc"}}, 1, 20)
	require.NoError(t, err)
	require.Len(t, products, 3)
	// Effective prices: SHIRT1 40, SHOE1 50 (discounted), SHOE2 200.
	require.Equal(t, "SHIRT1", products[0].ConfigSKU)
	require.Equal(t, "SHOE1", products[1].ConfigSKU)
	require.Equal(t, "SHOE2", products[2].ConfigSKU)
}

func TestAvailableFilterExcludesOwnFacet(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)

	out, err := s.AvailableFilter(context.Background(), models.ProductFilter{
		"brand": []any{"Nike"},
	}, false)
	require.NoError(t, err)

	// The brand facet ignores the active brand filter and shows both.
	require.Equal(t, []models.FacetValue{
		{Value: "Adidas", Count: 1},
		{Value: "Nike", Count: 2},
	}, out.Brands)

	// Other facets keep the brand filter applied.
	require.Equal(t, []models.FacetValue{
		{Value: "Shoes", Count: 2},
	}, out.ProductTypes)

	// Sizes come back in size-sort order, not alphabetical.
	require.Equal(t, []models.FacetValue{
		{Value: "6", Count: 1},
		{Value: "9", Count: 1},
		{Value: "10", Count: 1},
	}, out.Sizes)
}

func TestUpdateStock(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)
	ctx := context.Background()

	err := s.UpdateStock(ctx, []StockUpdate{
		// Existing variant: absolute set.
		{SimpleSKU: "SHOE1-9", Qty: 7},
		// New variant with a label: appended.
		{ConfigSKU: "SHOE1", SimpleSKU: "SHOE1-11", Size: "11", Qty: 3},
		// Unknown sku: skipped, not an error.
		{SimpleSKU: "GHOST-1", Qty: 5},
	})
	require.NoError(t, err)

	p, err := s.Get(ctx, "SHOE1")
	require.NoError(t, err)
	require.Len(t, p.Sizes, 3)
	v, ok := p.Variant("SHOE1-9")
	require.True(t, ok)
	require.Equal(t, 7, v.Qty)
	v, ok = p.Variant("SHOE1-11")
	require.True(t, ok)
	require.Equal(t, 3, v.Qty)
	require.Equal(t, "11", v.Size)
}

func TestUpdateStockRejectsNegative(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)

	err := s.UpdateStock(context.Background(), []StockUpdate{{SimpleSKU: "SHOE1-9", Qty: -1}})
	require.True(t, apperr.IsKind(err, apperr.KindIncorrectInput))
}

func TestDecrementStock(t *testing.T) {
	s := newTestService(t)
	seedCatalog(t, s)
	ctx := context.Background()

	require.NoError(t, s.DecrementStock(ctx, "SHOE1-9", 3))
	p, err := s.Get(ctx, "SHOE1")
	require.NoError(t, err)
	v, _ := p.Variant("SHOE1-9")
	require.Equal(t, 1, v.Qty)

	// Insufficient stock is a domain failure, not a backend one.
	err = s.DecrementStock(ctx, "SHOE1-9", 2)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	err = s.DecrementStock(ctx, "GHOST-1", 1)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
