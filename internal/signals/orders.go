package signals

import (
	"context"

	"storefront-api/internal/models"
)

// OrderHistory yields the simple SKUs a customer has ever ordered.
type OrderHistory interface {
	OrderedSimpleSKUs(ctx context.Context, customerID string) ([]string, error)
}

// ProductResolver resolves SKUs back to master products.
type ProductResolver interface {
	GetRawBySimpleSKU(ctx context.Context, simpleSKU string) (models.Product, error)
}

// OrderAggregator reduces a customer's order history into attribute
// value-sets.
type OrderAggregator struct {
	history  OrderHistory
	products ProductResolver
}

// NewOrderAggregator wires the aggregator over its sources.
func NewOrderAggregator(history OrderHistory, products ProductResolver) *OrderAggregator {
	return &OrderAggregator{history: history, products: products}
}

// Aggregate builds the order signal for a customer. A customer with
// no order history yields nil, which applies as zero.
func (a *OrderAggregator) Aggregate(ctx context.Context, customerID string, productCount int) (*AttributeSets, error) {
	skus, err := a.history.OrderedSimpleSKUs(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(skus) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(skus))
	var products []models.Product
	for _, sku := range skus {
		p, err := a.products.GetRawBySimpleSKU(ctx, sku)
		if err != nil {
			// Products can leave the catalog after being ordered.
			continue
		}
		if seen[p.ConfigSKU] {
			continue
		}
		seen[p.ConfigSKU] = true
		products = append(products, p)
	}
	return BuildSets(products, productCount), nil
}
