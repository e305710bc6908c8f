package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/catalog"
	"storefront-api/internal/customer"
	"storefront-api/internal/events"
	"storefront-api/internal/models"
	"storefront-api/internal/signals"
	"storefront-api/internal/storage"
	"storefront-api/internal/weights"
)

// stubHistory serves a canned order history per customer.
type stubHistory struct {
	skus map[string][]string
}

func (s *stubHistory) OrderedSimpleSKUs(_ context.Context, customerID string) ([]string, error) {
	return s.skus[customerID], nil
}

type engineFixture struct {
	engine    *Engine
	idx       *storage.DocumentIndex
	catalog   *catalog.Service
	customers *customer.Store
	history   *stubHistory
	events    *events.Manager
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "scoring.db")
	idx, err := storage.NewDocumentIndex(path, storage.DefaultIndexOptions())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	cat := catalog.NewService(idx, 30)
	require.NoError(t, cat.Init(ctx))

	kv := storage.NewMemoryKV()
	customers := customer.NewStore(kv)
	history := &stubHistory{skus: map[string][]string{}}

	evts := events.NewManager(true)
	t.Cleanup(evts.Shutdown)
	e := NewEngine(idx, cat, customers, weights.NewRegistry(kv),
		signals.NewOrderAggregator(history, cat), evts)
	require.NoError(t, e.Init(ctx))

	require.NoError(t, cat.Upsert(ctx, []models.Product{
		{
			ConfigSKU: "SHOE1", Manufacturer: "Nike", Gender: "MENS",
			ProductType: "Shoes", Colour: "Black", ProductName: "Air Runner",
			Price: decimal.NewFromInt(100),
			Sizes: []models.SizeVariant{{SimpleSKU: "SHOE1-9", Size: "9", Qty: 4}},
		},
		{
			ConfigSKU: "SHIRT1", Manufacturer: "Adidas", Gender: "LADIES",
			ProductType: "Shirts", Colour: "White", ProductName: "Logo Tee",
			Price: decimal.NewFromInt(40),
			Sizes: []models.SizeVariant{{SimpleSKU: "SHIRT1-S", Size: "S", Qty: 10}},
		},
	}))

	return &engineFixture{engine: e, idx: idx, catalog: cat, customers: customers, history: history, events: evts}
}

func (f *engineFixture) scoredRow(t *testing.T, bucket, configSKU string) models.ScoredProduct {
	t.Helper()
	hit, err := f.idx.Get(context.Background(), ScoredIndex, models.ScoredDocID(bucket, configSKU))
	require.NoError(t, err)
	var row models.ScoredProduct
	require.NoError(t, hit.Decode(&row))
	return row
}

func TestRunAnonymous(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Run(ctx, models.Anonymous()))

	// No signals: the distribution is flat and maps to zero.
	for _, sku := range []string{"SHOE1", "SHIRT1"} {
		row := f.scoredRow(t, models.AnonymousBucket, sku)
		require.Equal(t, models.AnonymousBucket, row.CustomerID)
		require.Zero(t, row.QuestionScore)
		require.Zero(t, row.PercentageScore)
	}
}

func TestRunIdentified(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.customers.Save(ctx, models.Customer{ID: "c1", Email: "jo@example.com"}))
	require.NoError(t, f.customers.SaveAnswers(ctx, "c1", []models.Answer{
		{Target: models.AnswerTarget{Type: models.AnswerTargetBrand}, Value: []any{"Nike"}},
	}))
	f.history.skus["c1"] = []string{"SHIRT1-S"}
	require.NoError(t, f.customers.MarkClickedNow(ctx, "c1"))

	// Counters of an earlier scoring run survive the rescore.
	viewedAt := time.Now().UTC().Truncate(time.Second)
	prior := models.ScoredProduct{
		CustomerID:    "c1",
		TrackCounters: models.TrackCounters{Views: 7, ViewedAt: &viewedAt},
	}
	prior.ConfigSKU = "SHOE1"
	require.NoError(t, f.idx.Index(ctx, ScoredIndex, prior.ID(), &prior))

	require.NoError(t, f.engine.Run(ctx, models.Identified("c1")))

	// Question signal: the Nike answer scores productCount/1 = 2, so
	// SHOE1 gets +2 and SHIRT1 -2. Order signal: the SHIRT1 purchase
	// yields five one-value attribute sets worth 2 each, +10 for
	// SHIRT1 and -10 for SHOE1. Totals -8 and +8 rescale to 0 and 100.
	shoe := f.scoredRow(t, "c1", "SHOE1")
	require.InDelta(t, 2.0, shoe.QuestionScore, 1e-9)
	require.InDelta(t, -10.0, shoe.OrderScore, 1e-9)
	require.Zero(t, shoe.TrackingScore)
	require.Zero(t, shoe.PercentageScore)
	require.Equal(t, 7, shoe.Views)

	shirt := f.scoredRow(t, "c1", "SHIRT1")
	require.InDelta(t, -2.0, shirt.QuestionScore, 1e-9)
	require.InDelta(t, 10.0, shirt.OrderScore, 1e-9)
	require.InDelta(t, 100.0, shirt.PercentageScore, 1e-9)

	clicked, err := f.customers.ClickedNow(ctx, "c1")
	require.NoError(t, err)
	require.False(t, clicked)

	inProgress, err := f.customers.PersonalizeInProgress(ctx, "c1")
	require.NoError(t, err)
	require.False(t, inProgress)
}

func TestRunPublishesScoringCompleted(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	done := make(chan events.ScoringCompletedData, 1)
	f.events.Subscribe(events.EventScoringCompleted, func(_ context.Context, e events.Event) error {
		done <- e.Data.(events.ScoringCompletedData)
		return nil
	})

	require.NoError(t, f.engine.Run(ctx, models.Anonymous()))

	select {
	case data := <-done:
		require.Equal(t, models.AnonymousBucket, data.CustomerID)
		require.Equal(t, 2, data.RowCount)
	case <-time.After(2 * time.Second):
		t.Fatal("no scoring completed event")
	}
}

func TestTotalWeighted(t *testing.T) {
	row := models.ScoredProduct{QuestionScore: 2, OrderScore: 3, TrackingScore: 4}
	got := total(&row, models.ScoringWeight{Question: 1, Order: 2, Track: 3})
	require.InDelta(t, 20.0, got, 1e-9)
}

func TestApplyPercentages(t *testing.T) {
	rows := []models.ScoredProduct{
		{PercentageScore: 3},
		{PercentageScore: -3},
		{PercentageScore: 3},
	}
	applyPercentages(rows)
	require.InDelta(t, 100.0, rows[0].PercentageScore, 1e-9)
	require.InDelta(t, 0.0, rows[1].PercentageScore, 1e-9)
	require.InDelta(t, 100.0, rows[2].PercentageScore, 1e-9)

	flat := []models.ScoredProduct{{PercentageScore: 5}, {PercentageScore: 5}}
	applyPercentages(flat)
	require.Zero(t, flat[0].PercentageScore)
	require.Zero(t, flat[1].PercentageScore)

	applyPercentages(nil)
}
