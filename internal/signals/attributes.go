// Package signals reduces question answers, order history and
// browsing telemetry into per-attribute value-sets that the scoring
// engine applies to every product.
package signals

import "storefront-api/internal/models"

// Attribute is the closed enumeration of product attributes the
// aggregators work over.
type Attribute int

const (
	AttrGender Attribute = iota
	AttrColour
	AttrSize
	AttrProductType
	AttrBrand
)

var allAttributes = []Attribute{AttrGender, AttrColour, AttrSize, AttrProductType, AttrBrand}

// attributeValues returns the product's values for an attribute. The
// size attribute yields one value per variant.
func attributeValues(p *models.Product, attr Attribute) []string {
	switch attr {
	case AttrGender:
		return []string{p.Gender}
	case AttrColour:
		return []string{p.Colour}
	case AttrSize:
		return p.SizeLabels()
	case AttrProductType:
		return []string{p.ProductType}
	case AttrBrand:
		return []string{p.Manufacturer}
	}
	return nil
}

// AttributeSets is the per-customer value-set aggregate of one signal
// source: five sets with uniform per-attribute scores.
type AttributeSets struct {
	sets   map[Attribute]map[string]bool
	scores map[Attribute]float64
}

// BuildSets aggregates products into attribute value-sets. The
// per-attribute score is productCount / max(1, |values|).
func BuildSets(products []models.Product, productCount int) *AttributeSets {
	if len(products) == 0 {
		return nil
	}
	agg := &AttributeSets{
		sets:   make(map[Attribute]map[string]bool, len(allAttributes)),
		scores: make(map[Attribute]float64, len(allAttributes)),
	}
	for _, attr := range allAttributes {
		set := make(map[string]bool)
		for i := range products {
			for _, v := range attributeValues(&products[i], attr) {
				if v != "" {
					set[v] = true
				}
			}
		}
		agg.sets[attr] = set
		denominator := len(set)
		if denominator < 1 {
			denominator = 1
		}
		agg.scores[attr] = float64(productCount) / float64(denominator)
	}
	return agg
}

// Apply scores a product against the aggregate: each attribute adds
// its score when the product's value lies in the set and subtracts it
// otherwise. For sizes a single matching variant is enough. Empty
// sets contribute nothing.
func (a *AttributeSets) Apply(p *models.Product) float64 {
	if a == nil {
		return 0
	}
	total := 0.0
	for _, attr := range allAttributes {
		set := a.sets[attr]
		if len(set) == 0 {
			continue
		}
		matched := false
		for _, v := range attributeValues(p, attr) {
			if set[v] {
				matched = true
				break
			}
		}
		if matched {
			total += a.scores[attr]
		} else {
			total -= a.scores[attr]
		}
	}
	return total
}
