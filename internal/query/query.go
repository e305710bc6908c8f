// Package query serves the storefront read side: filtered listings
// over the scored or master catalog plus the category, size, brand
// and complete-looks views.
package query

import (
	"context"
	"log"
	"sort"
	"time"

	"storefront-api/internal/catalog"
	"storefront-api/internal/models"
	"storefront-api/internal/scoring"
	"storefront-api/internal/sizes"
	"storefront-api/internal/storage"
)

// ScoreRequester enqueues an asynchronous scoring run for a customer
// whose listing was served unpersonalized.
type ScoreRequester interface {
	RequestScoring(ctx context.Context, email string) error
}

// Options carry the listing thresholds.
type Options struct {
	NewInDays         int
	LastChanceStock   int
	LastChanceAgeDays int
	TopBrandsLimit    int
}

// Service answers storefront read queries.
type Service struct {
	idx       *storage.DocumentIndex
	catalog   *catalog.Service
	requester ScoreRequester
	opts      Options
	now       func() time.Time
}

// NewService wires the query layer. requester may be nil when the
// queue is disabled.
func NewService(idx *storage.DocumentIndex, cat *catalog.Service, requester ScoreRequester, opts Options) *Service {
	if opts.TopBrandsLimit <= 0 {
		opts.TopBrandsLimit = 10
	}
	return &Service{idx: idx, catalog: cat, requester: requester, opts: opts, now: time.Now}
}

// run executes a listing query against the scored index for a known
// customer, the master catalog otherwise. percentage_score is always
// the final tiebreaker.
func (s *Service) run(ctx context.Context, customerID, email string, q storage.Query, page, size int, tier *models.Tier) (models.ProductPage, error) {
	if size <= 0 {
		size = 20
	}
	if page < 1 {
		page = 1
	}
	q.From = (page - 1) * size
	q.Size = size
	q.Sorts = append(q.Sorts, storage.Sort{Field: "percentage_score", Desc: true})

	index := catalog.MasterIndex
	if customerID != "" {
		index = scoring.ScoredIndex
		q.Must = append(q.Must, storage.Term("customer_id", customerID))
	} else if email != "" && s.requester != nil {
		if err := s.requester.RequestScoring(ctx, email); err != nil {
			// Personalization is best effort; the listing proceeds.
			log.Printf("query: scoring request for %s failed: %v", email, err)
		}
	}

	hits, err := s.idx.Search(ctx, index, q)
	if err != nil {
		return models.ProductPage{}, err
	}
	pageOut := models.ProductPage{Total: hits.Total, Page: page, Size: size}
	for _, hit := range hits.Hits {
		var row models.ScoredProduct
		if err := hit.Decode(&row); err != nil {
			return models.ProductPage{}, err
		}
		pageOut.Items = append(pageOut.Items, models.ShapeProduct(row.Product, row.PercentageScore, tier))
	}
	return pageOut, nil
}

// ListByFilter serves the main listing endpoint.
func (s *Service) ListByFilter(ctx context.Context, customerID, email string, filter models.ProductFilter, sorts []models.SortOrder, page, size int, tier *models.Tier) (models.ProductPage, error) {
	q, err := catalog.BuildQuery(filter, sorts, s.opts.NewInDays, s.now().UTC())
	if err != nil {
		return models.ProductPage{}, err
	}
	return s.run(ctx, customerID, email, q, page, size, tier)
}

// GetNewProducts lists recent arrivals for a gender.
func (s *Service) GetNewProducts(ctx context.Context, customerID, email, gender string, page, size int, tier *models.Tier) (models.ProductPage, error) {
	threshold := s.now().UTC().AddDate(0, 0, -s.opts.NewInDays)
	q := storage.Query{
		Must: []storage.Clause{storage.RangeGTE("created_at", threshold)},
		Sorts: []storage.Sort{
			{Field: "created_at", Desc: true},
		},
	}
	if gender != "" {
		q.Must = append(q.Must, storage.Term("gender", gender))
	}
	return s.run(ctx, customerID, email, q, page, size, tier)
}

// GetLastChance lists ageing products running out of stock: some
// variant at or under the stock threshold and older than the age
// threshold.
func (s *Service) GetLastChance(ctx context.Context, customerID, email, gender string, page, size int, tier *models.Tier) (models.ProductPage, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.opts.LastChanceAgeDays)
	q := storage.Query{
		Must: []storage.Clause{
			storage.RangeLTE("sizes.qty", s.opts.LastChanceStock),
			storage.RangeLTE("created_at", cutoff),
		},
	}
	if gender != "" {
		q.Must = append(q.Must, storage.Term("gender", gender))
	}
	return s.run(ctx, customerID, email, q, page, size, tier)
}

// GetCategoriesByGender returns the product types available for a
// gender with their counts.
func (s *Service) GetCategoriesByGender(ctx context.Context, gender string) ([]models.FacetValue, error) {
	hits, err := s.idx.Search(ctx, catalog.MasterIndex, storage.Query{
		Must: []storage.Clause{storage.Term("gender", gender)},
		Size: -1,
		Aggs: []storage.Agg{{Name: "categories", Field: "product_type"}},
	})
	if err != nil {
		return nil, err
	}
	return facetValues(hits.Aggs["categories"], func(a, b models.FacetValue) bool {
		return a.Value < b.Value
	}), nil
}

// GetSizesByProductType returns the size labels carried by a product
// type, in size-sort order.
func (s *Service) GetSizesByProductType(ctx context.Context, productType string) ([]models.FacetValue, error) {
	hits, err := s.idx.Search(ctx, catalog.MasterIndex, storage.Query{
		Must: []storage.Clause{storage.Term("product_type", productType)},
		Size: -1,
		Aggs: []storage.Agg{{Name: "sizes", Field: "sizes.size"}},
	})
	if err != nil {
		return nil, err
	}
	values := facetValues(hits.Aggs["sizes"], nil)
	labels := make([]string, len(values))
	counts := make(map[string]int, len(values))
	for i, v := range values {
		labels[i] = v.Value
		counts[v.Value] = v.Count
	}
	ordered := sizes.Sort(labels)
	out := make([]models.FacetValue, 0, len(ordered))
	for _, label := range ordered {
		out = append(out, models.FacetValue{Value: label, Count: counts[label]})
	}
	return out, nil
}

// GetBySize lists products carrying a size label.
func (s *Service) GetBySize(ctx context.Context, customerID, email, sizeLabel string, page, size int, tier *models.Tier) (models.ProductPage, error) {
	q := storage.Query{
		Must: []storage.Clause{storage.Term("sizes.size", sizeLabel)},
	}
	return s.run(ctx, customerID, email, q, page, size, tier)
}

// GetTopBrands returns the brands with the most products.
func (s *Service) GetTopBrands(ctx context.Context, gender string) ([]models.FacetValue, error) {
	q := storage.Query{
		Size: -1,
		Aggs: []storage.Agg{{Name: "brands", Field: "manufacturer"}},
	}
	if gender != "" {
		q.Must = append(q.Must, storage.Term("gender", gender))
	}
	hits, err := s.idx.Search(ctx, catalog.MasterIndex, q)
	if err != nil {
		return nil, err
	}
	values := facetValues(hits.Aggs["brands"], func(a, b models.FacetValue) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Value < b.Value
	})
	if len(values) > s.opts.TopBrandsLimit {
		values = values[:s.opts.TopBrandsLimit]
	}
	return values, nil
}

// GetCompleteLooks lists companions for a product: same product type,
// different sub-type, different product.
func (s *Service) GetCompleteLooks(ctx context.Context, customerID, email, configSKU string, page, size int, tier *models.Tier) (models.ProductPage, error) {
	p, err := s.catalog.Get(ctx, configSKU)
	if err != nil {
		return models.ProductPage{}, err
	}
	q := storage.Query{
		Must: []storage.Clause{storage.Term("product_type", p.ProductType)},
		MustNot: []storage.Clause{
			storage.Term("sub_product_type", p.SubProductType),
			storage.Term("config_sku", p.ConfigSKU),
		},
	}
	return s.run(ctx, customerID, email, q, page, size, tier)
}

func facetValues(buckets []storage.Bucket, less func(a, b models.FacetValue) bool) []models.FacetValue {
	values := make([]models.FacetValue, 0, len(buckets))
	for _, b := range buckets {
		values = append(values, models.FacetValue{Value: b.Key, Count: b.Count})
	}
	if less != nil {
		sort.Slice(values, func(i, j int) bool { return less(values[i], values[j]) })
	}
	return values
}
