// Package catalog is the source of truth for product documents:
// lookups, filtered search, facet aggregations and stock mutation.
package catalog

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
	"storefront-api/internal/sizes"
	"storefront-api/internal/storage"
)

// MasterIndex is the master catalog index name.
const MasterIndex = "catalog"

// Service provides typed access to the master catalog.
type Service struct {
	idx       *storage.DocumentIndex
	newInDays int
}

// NewService wires the catalog over the document index.
func NewService(idx *storage.DocumentIndex, newInDays int) *Service {
	return &Service{idx: idx, newInDays: newInDays}
}

// Init creates the master index.
func (s *Service) Init(ctx context.Context) error {
	return s.idx.CreateIndex(ctx, MasterIndex)
}

// Get returns the product with the given config SKU.
func (s *Service) Get(ctx context.Context, configSKU string) (models.Product, error) {
	hit, err := s.idx.Get(ctx, MasterIndex, configSKU)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Product{}, apperr.NotFound("product %s not found", configSKU)
	}
	if err != nil {
		return models.Product{}, err
	}
	var p models.Product
	if err := hit.Decode(&p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// GetMany returns the products with the given config SKUs; missing
// SKUs are silently skipped.
func (s *Service) GetMany(ctx context.Context, configSKUs []string) ([]models.Product, error) {
	if len(configSKUs) == 0 {
		return nil, nil
	}
	values := make([]any, len(configSKUs))
	for i, sku := range configSKUs {
		values[i] = sku
	}
	hits, err := s.idx.Search(ctx, MasterIndex, storage.Query{
		Must: []storage.Clause{storage.Terms("config_sku", values...)},
		Size: len(configSKUs),
	})
	if err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(hits.Hits))
	for _, hit := range hits.Hits {
		var p models.Product
		if err := hit.Decode(&p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// GetRawBySimpleSKU returns the product owning the given size variant.
func (s *Service) GetRawBySimpleSKU(ctx context.Context, simpleSKU string) (models.Product, error) {
	hits, err := s.idx.Search(ctx, MasterIndex, storage.Query{
		Must: []storage.Clause{storage.Term("sizes.simple_sku", simpleSKU)},
		Size: 1,
	})
	if err != nil {
		return models.Product{}, err
	}
	if len(hits.Hits) == 0 {
		return models.Product{}, apperr.NotFound("simple sku %s not found", simpleSKU)
	}
	var p models.Product
	if err := hits.Hits[0].Decode(&p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// Upsert validates and bulk-writes product documents. Individual
// failures are reported as a partial bulk failure.
func (s *Service) Upsert(ctx context.Context, products []models.Product) error {
	actions := make([]storage.BulkAction, 0, len(products))
	for i := range products {
		p := &products[i]
		if err := p.Validate(); err != nil {
			return err
		}
		actions = append(actions, storage.BulkAction{Op: storage.BulkIndex, ID: p.ConfigSKU, Doc: p})
	}
	result, err := s.idx.Bulk(ctx, MasterIndex, actions)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return apperr.Newf(apperr.KindPartialBulkFailure,
			"catalog upsert accepted %d of %d documents", result.Accepted, len(actions))
	}
	return nil
}

// Search runs a filtered, sorted, paginated master-catalog query.
func (s *Service) Search(ctx context.Context, filter models.ProductFilter, sorts []models.SortOrder, page, size int) ([]models.Product, int, error) {
	q, err := BuildQuery(filter, sorts, s.newInDays, time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}
	if size <= 0 {
		size = 20
	}
	if page < 1 {
		page = 1
	}
	q.From = (page - 1) * size
	q.Size = size

	hits, err := s.idx.Search(ctx, MasterIndex, q)
	if err != nil {
		return nil, 0, err
	}
	products := make([]models.Product, 0, len(hits.Hits))
	for _, hit := range hits.Hits {
		var p models.Product
		if err := hit.Decode(&p); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, hits.Total, nil
}

// facet pairs a client facet name with its index field.
type facet struct {
	name      string
	filterKey string
	field     string
}

var facets = []facet{
	{"brands", models.FilterBrand, "manufacturer"},
	{"sizes", models.FilterSize, "sizes.size"},
	{"colors", models.FilterColor, "colour"},
	{"genders", models.FilterGender, "gender"},
	{"product_types", models.FilterProductType, "product_type"},
	{"sub_types", models.FilterSubType, "sub_product_type"},
}

// AvailableFilter returns, per facet, the values that survive when
// all the other facets of the active filter stay applied. Sizes come
// back in size-sort order; other facets alphabetically.
func (s *Service) AvailableFilter(ctx context.Context, active models.ProductFilter, descending bool) (models.AvailableFilters, error) {
	var out models.AvailableFilters
	now := time.Now().UTC()

	for _, f := range facets {
		remaining := make(models.ProductFilter, len(active))
		for k, v := range active {
			if k != f.filterKey {
				remaining[k] = v
			}
		}
		q, err := BuildQuery(remaining, nil, s.newInDays, now)
		if err != nil {
			return models.AvailableFilters{}, err
		}
		q.Size = -1
		q.Aggs = []storage.Agg{{Name: f.name, Field: f.field}}

		hits, err := s.idx.Search(ctx, MasterIndex, q)
		if err != nil {
			return models.AvailableFilters{}, err
		}
		values := facetValues(hits.Aggs[f.name], descending)
		switch f.name {
		case "brands":
			out.Brands = values
		case "sizes":
			out.Sizes = orderSizeFacet(values)
		case "colors":
			out.Colors = values
		case "genders":
			out.Genders = values
		case "product_types":
			out.ProductTypes = values
		case "sub_types":
			out.SubTypes = values
		}
	}
	return out, nil
}

func facetValues(buckets []storage.Bucket, descending bool) []models.FacetValue {
	values := make([]models.FacetValue, 0, len(buckets))
	for _, b := range buckets {
		values = append(values, models.FacetValue{Value: b.Key, Count: b.Count})
	}
	// Buckets arrive count-ordered; clients want them by value.
	sort.Slice(values, func(i, j int) bool {
		if descending {
			return values[i].Value > values[j].Value
		}
		return values[i].Value < values[j].Value
	})
	return values
}

// orderSizeFacet re-orders size facet values by the size-sort
// algorithm, keeping the counts attached.
func orderSizeFacet(values []models.FacetValue) []models.FacetValue {
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
	return out
}

// StockUpdate sets the absolute stock of one size variant. ConfigSKU
// and Size may be empty when the variant already exists.
type StockUpdate struct {
	ConfigSKU string `json:"config_sku"`
	SimpleSKU string `json:"simple_sku"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

// UpdateStock applies stock levels by (config_sku, simple_sku); a
// missing size variant is appended when the update names its label.
func (s *Service) UpdateStock(ctx context.Context, updates []StockUpdate) error {
	for _, upd := range updates {
		if upd.Qty < 0 {
			return apperr.Incorrect("stock for %s must not be negative", upd.SimpleSKU)
		}
		var p models.Product
		var err error
		if upd.ConfigSKU != "" {
			p, err = s.Get(ctx, upd.ConfigSKU)
		} else {
			p, err = s.GetRawBySimpleSKU(ctx, upd.SimpleSKU)
		}
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				log.Printf("stock update for unknown sku %s skipped", upd.SimpleSKU)
				continue
			}
			return err
		}

		found := false
		for i := range p.Sizes {
			if p.Sizes[i].SimpleSKU == upd.SimpleSKU {
				p.Sizes[i].Qty = upd.Qty
				found = true
				break
			}
		}
		if !found {
			if upd.Size == "" {
				log.Printf("stock update for %s names no size label, cannot append variant", upd.SimpleSKU)
				continue
			}
			p.Sizes = append(p.Sizes, models.SizeVariant{
				SimpleSKU: upd.SimpleSKU,
				Size:      upd.Size,
				Qty:       upd.Qty,
			})
		}
		if err := s.idx.Index(ctx, MasterIndex, p.ConfigSKU, &p); err != nil {
			return err
		}
	}
	return nil
}

// DecrementStock reduces the stock of one variant after a purchase.
func (s *Service) DecrementStock(ctx context.Context, simpleSKU string, qty int) error {
	if qty <= 0 {
		return apperr.Incorrect("stock decrement must be positive")
	}
	p, err := s.GetRawBySimpleSKU(ctx, simpleSKU)
	if err != nil {
		return err
	}
	for i := range p.Sizes {
		if p.Sizes[i].SimpleSKU == simpleSKU {
			if p.Sizes[i].Qty < qty {
				return apperr.Logic("stock for %s is insufficient", simpleSKU)
			}
			p.Sizes[i].Qty -= qty
			return s.idx.Index(ctx, MasterIndex, p.ConfigSKU, &p)
		}
	}
	return apperr.NotFound("simple sku %s not found", simpleSKU)
}

// ProductCount returns the master catalog cardinality.
func (s *Service) ProductCount(ctx context.Context) (int, error) {
	hits, err := s.idx.Search(ctx, MasterIndex, storage.Query{Size: -1})
	if err != nil {
		return 0, err
	}
	return hits.Total, nil
}

// ScrollAll opens a scroll over the whole master catalog.
func (s *Service) ScrollAll() (*storage.Scroll, error) {
	return s.idx.ScrollSearch(MasterIndex, storage.Query{})
}
