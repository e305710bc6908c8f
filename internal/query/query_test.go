package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
	"storefront-api/internal/catalog"
	"storefront-api/internal/models"
	"storefront-api/internal/scoring"
	"storefront-api/internal/storage"
)

// stubRequester records scoring requests made for unpersonalized
// listings.
type stubRequester struct {
	emails []string
	fail   bool
}

func (r *stubRequester) RequestScoring(_ context.Context, email string) error {
	if r.fail {
		return apperr.Unavailable("queue down", nil)
	}
	r.emails = append(r.emails, email)
	return nil
}

type queryFixture struct {
	svc       *Service
	idx       *storage.DocumentIndex
	requester *stubRequester
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "query.db")
	idx, err := storage.NewDocumentIndex(path, storage.DefaultIndexOptions())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	cat := catalog.NewService(idx, 30)
	require.NoError(t, cat.Init(ctx))
	require.NoError(t, idx.CreateIndex(ctx, scoring.ScoredIndex))

	now := time.Now().UTC()
	products := []models.Product{
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
				{SimpleSKU: "SHIRT1-S", Size: "S", Qty: 1},
			},
		},
		{
			ConfigSKU: "SHOE2", Manufacturer: "Nike", Gender: "LADIES",
			ProductType: "Shoes", SubProductType: "Boots", Colour: "Black",
			ProductName: "Trail Boot", Price: decimal.NewFromInt(200),
			CreatedAt: now.AddDate(0, 0, -45),
			Sizes: []models.SizeVariant{
				{SimpleSKU: "SHOE2-6", Size: "6", Qty: 3},
			},
		},
	}
	require.NoError(t, cat.Upsert(ctx, products))

	// Scored rows for c1 with a deliberate percentage spread.
	percentages := map[string]float64{"SHOE1": 20, "SHIRT1": 90, "SHOE2": 50}
	for _, p := range products {
		row := models.ScoredProduct{Product: p, CustomerID: "c1", PercentageScore: percentages[p.ConfigSKU]}
		require.NoError(t, idx.Index(ctx, scoring.ScoredIndex, row.ID(), &row))
	}

	requester := &stubRequester{}
	svc := NewService(idx, cat, requester, Options{
		NewInDays:         30,
		LastChanceStock:   1,
		LastChanceAgeDays: 30,
		TopBrandsLimit:    10,
	})
	return &queryFixture{svc: svc, idx: idx, requester: requester}
}

func skus(page models.ProductPage) []string {
	out := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, item.ConfigSKU)
	}
	return out
}

func TestListByFilterPersonalized(t *testing.T) {
	f := newQueryFixture(t)

	page, err := f.svc.ListByFilter(context.Background(), "c1", "jo@example.com", nil, nil, 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, []string{"SHIRT1", "SHOE2", "SHOE1"}, skus(page))
	// An identified customer reads the scored index; no scoring request
	// goes out.
	require.Empty(t, f.requester.emails)
}

func TestListByFilterPaging(t *testing.T) {
	f := newQueryFixture(t)

	page, err := f.svc.ListByFilter(context.Background(), "c1", "", nil, nil, 2, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, []string{"SHOE2"}, skus(page))
}

func TestListByFilterAnonymousRequestsScoring(t *testing.T) {
	f := newQueryFixture(t)

	page, err := f.svc.ListByFilter(context.Background(), "", "jo@example.com",
		models.ProductFilter{"brand": []any{"Nike"}}, nil, 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.ElementsMatch(t, []string{"SHOE1", "SHOE2"}, skus(page))
	require.Equal(t, []string{"jo@example.com"}, f.requester.emails)

	// A failing queue never fails the listing.
	f.requester.fail = true
	page, err = f.svc.ListByFilter(context.Background(), "", "jo@example.com", nil, nil, 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
}

func TestListShapesTierCredit(t *testing.T) {
	f := newQueryFixture(t)
	gold := &models.Tier{ID: "gold", Name: "Gold", CreditBackPercent: 10}

	page, err := f.svc.ListByFilter(context.Background(), "", "",
		models.ProductFilter{"brand": []any{"Nike"}, "gender": "MENS"}, nil, 1, 20, gold)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	require.True(t, decimal.NewFromInt(50).Equal(item.CurrentPrice))
	require.NotNil(t, item.Fbucks)
	require.Equal(t, 5, *item.Fbucks)

	// The neutral tier earns nothing and gets no credit field.
	page, err = f.svc.ListByFilter(context.Background(), "", "",
		models.ProductFilter{"brand": []any{"Nike"}, "gender": "MENS"}, nil, 1, 20,
		&models.Tier{ID: "neutral", Name: "Standard"})
	require.NoError(t, err)
	require.Nil(t, page.Items[0].Fbucks)
}

func TestGetNewProducts(t *testing.T) {
	f := newQueryFixture(t)

	page, err := f.svc.GetNewProducts(context.Background(), "", "", "", 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"SHOE1"}, skus(page))

	page, err = f.svc.GetNewProducts(context.Background(), "", "", "LADIES", 1, 20, nil)
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func TestGetLastChance(t *testing.T) {
	f := newQueryFixture(t)

	// SHIRT1 is old with one unit left. SHOE1 has an empty variant but
	// is too new; SHOE2 is old enough but has stock.
	page, err := f.svc.GetLastChance(context.Background(), "", "", "", 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"SHIRT1"}, skus(page))
}

func TestGetCategoriesByGender(t *testing.T) {
	f := newQueryFixture(t)

	values, err := f.svc.GetCategoriesByGender(context.Background(), "LADIES")
	require.NoError(t, err)
	require.Equal(t, []models.FacetValue{
		{Value: "Shirts", Count: 1},
		{Value: "Shoes", Count: 1},
	}, values)
}

func TestGetSizesByProductType(t *testing.T) {
	f := newQueryFixture(t)

	values, err := f.svc.GetSizesByProductType(context.Background(), "Shoes")
	require.NoError(t, err)
	require.Equal(t, []models.FacetValue{
		{Value: "6", Count: 1},
		{Value: "9", Count: 1},
		{Value: "10", Count: 1},
	}, values)
}

func TestGetBySize(t *testing.T) {
	f := newQueryFixture(t)

	page, err := f.svc.GetBySize(context.Background(), "", "", "9", 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"SHOE1"}, skus(page))
}

func TestGetTopBrands(t *testing.T) {
	f := newQueryFixture(t)

	values, err := f.svc.GetTopBrands(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []models.FacetValue{
		{Value: "Nike", Count: 2},
		{Value: "Adidas", Count: 1},
	}, values)

	f.svc.opts.TopBrandsLimit = 1
	values, err = f.svc.GetTopBrands(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []models.FacetValue{{Value: "Nike", Count: 2}}, values)
}

func TestGetCompleteLooks(t *testing.T) {
	f := newQueryFixture(t)

	// Companions share the product type but not the sub-type.
	page, err := f.svc.GetCompleteLooks(context.Background(), "", "", "SHOE1", 1, 20, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"SHOE2"}, skus(page))

	_, err = f.svc.GetCompleteLooks(context.Background(), "", "", "GHOST", 1, 20, nil)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
