package signals

import (
	"context"

	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

// TrackingAggregator reduces a customer's scored-index rows with
// click or visit activity into attribute value-sets, and captures the
// raw counters so a scoring run can carry them forward.
type TrackingAggregator struct {
	idx         *storage.DocumentIndex
	scoredIndex string
}

// NewTrackingAggregator wires the aggregator over the scored index.
func NewTrackingAggregator(idx *storage.DocumentIndex, scoredIndex string) *TrackingAggregator {
	return &TrackingAggregator{idx: idx, scoredIndex: scoredIndex}
}

// Aggregate builds the tracking signal for a scored-index bucket. The
// returned counters map config SKU to the row's browsing counters.
func (a *TrackingAggregator) Aggregate(ctx context.Context, bucket string, productCount int) (*AttributeSets, map[string]models.TrackCounters, error) {
	scroll, err := a.idx.ScrollSearch(a.scoredIndex, storage.Query{
		Must: []storage.Clause{storage.Term("customer_id", bucket)},
		Should: []storage.Clause{
			storage.RangeGTE("clicks", 1),
			storage.RangeGTE("visits", 1),
		},
	})
	if err != nil {
		return nil, nil, err
	}

	var products []models.Product
	counters := make(map[string]models.TrackCounters)
	err = scroll.Each(ctx, func(hit storage.Hit) error {
		var row models.ScoredProduct
		if err := hit.Decode(&row); err != nil {
			return err
		}
		products = append(products, row.Product)
		counters[row.ConfigSKU] = row.TrackCounters
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(products) == 0 {
		return nil, counters, nil
	}
	return BuildSets(products, productCount), counters, nil
}

// AllCounters returns the counters of every scored row in the bucket,
// regardless of activity, so a full rescore does not lose views.
func (a *TrackingAggregator) AllCounters(ctx context.Context, bucket string) (map[string]models.TrackCounters, error) {
	scroll, err := a.idx.ScrollSearch(a.scoredIndex, storage.Query{
		Must: []storage.Clause{storage.Term("customer_id", bucket)},
	})
	if err != nil {
		return nil, err
	}
	counters := make(map[string]models.TrackCounters)
	err = scroll.Each(ctx, func(hit storage.Hit) error {
		var row models.ScoredProduct
		if err := hit.Decode(&row); err != nil {
			return err
		}
		counters[row.ConfigSKU] = row.TrackCounters
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}
