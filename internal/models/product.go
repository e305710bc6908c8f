package models

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-api/internal/apperr"
)

// SizeVariant is a saleable simple-SKU size variant of a configurable
// product. Inventory is tracked at this level.
type SizeVariant struct {
	SimpleSKU string `json:"simple_sku"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
	SimpleID  int    `json:"simple_id"`
}

// Product is a master-catalog configurable product document.
type Product struct {
	ConfigSKU            string          `json:"config_sku"`
	PortalConfigID       int             `json:"portal_config_id"`
	Manufacturer         string          `json:"manufacturer"`
	ProductType          string          `json:"product_type"`
	SubProductType       string          `json:"sub_product_type"`
	Colour               string          `json:"colour"`
	Gender               string          `json:"gender"`
	Season               string          `json:"season"`
	ProductName          string          `json:"product_name"`
	ProductSizeAttribute string          `json:"product_size_attribute"`
	Description          string          `json:"description"`
	Price                decimal.Decimal `json:"price"`
	Discount             decimal.Decimal `json:"discount"`
	CreatedAt            time.Time       `json:"created_at"`
	Sizes                []SizeVariant   `json:"sizes"`
}

// Validate enforces the product invariants.
func (p *Product) Validate() error {
	if p.ConfigSKU == "" {
		return apperr.Incorrect("product config_sku is required")
	}
	if len(p.Sizes) == 0 {
		return apperr.Incorrect("product %s has no size variants", p.ConfigSKU)
	}
	for _, v := range p.Sizes {
		if v.SimpleSKU == "" {
			return apperr.Incorrect("product %s has a size variant without simple_sku", p.ConfigSKU)
		}
		if v.Qty < 0 {
			return apperr.Incorrect("product %s size %s has negative qty", p.ConfigSKU, v.SimpleSKU)
		}
	}
	hundred := decimal.NewFromInt(100)
	if p.Discount.IsNegative() || p.Discount.GreaterThan(hundred) {
		return apperr.Incorrect("product %s discount must be within [0,100]", p.ConfigSKU)
	}
	if p.Price.IsNegative() {
		return apperr.Incorrect("product %s price must not be negative", p.ConfigSKU)
	}
	return nil
}

// CurrentPrice derives the discounted price, rounded to cents.
func (p *Product) CurrentPrice() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return p.Price.Sub(p.Price.Mul(p.Discount).Div(hundred)).Round(2)
}

// Variant returns the size variant with the given simple SKU.
func (p *Product) Variant(simpleSKU string) (SizeVariant, bool) {
	for _, v := range p.Sizes {
		if v.SimpleSKU == simpleSKU {
			return v, true
		}
	}
	return SizeVariant{}, false
}

// SizeLabels returns the labels of all size variants.
func (p *Product) SizeLabels() []string {
	labels := make([]string, 0, len(p.Sizes))
	for _, v := range p.Sizes {
		labels = append(labels, v.Size)
	}
	return labels
}

// TotalQty is the stock summed over all variants.
func (p *Product) TotalQty() int {
	total := 0
	for _, v := range p.Sizes {
		total += v.Qty
	}
	return total
}

// Fbucks computes the credit earned for one unit at the given
// credit-back percentage. Always rounded up.
func Fbucks(currentPrice decimal.Decimal, creditBackPercent int) int {
	if creditBackPercent <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(creditBackPercent))
	hundred := decimal.NewFromInt(100)
	return int(currentPrice.Mul(rate).Div(hundred).Ceil().IntPart())
}

// TrackCounters are the per-(customer, product) browsing counters kept
// on a scored row.
type TrackCounters struct {
	Views    int        `json:"views"`
	Clicks   int        `json:"clicks"`
	Visits   int        `json:"visits"`
	ViewedAt *time.Time `json:"viewed_at,omitempty"`
}

// ScoredProduct is a per-customer snapshot of a master product
// enriched with personalization scores and browsing counters.
type ScoredProduct struct {
	Product

	CustomerID      string  `json:"customer_id"`
	QuestionScore   float64 `json:"question_score"`
	OrderScore      float64 `json:"order_score"`
	TrackingScore   float64 `json:"tracking_score"`
	PercentageScore float64 `json:"percentage_score"`
	TrackCounters
}

// ScoredDocID builds the scored-index document id for a customer and
// product pair.
func ScoredDocID(customerID, configSKU string) string {
	return customerID + "__" + configSKU
}

// ID returns the scored-index document id of the row.
func (s *ScoredProduct) ID() string {
	return ScoredDocID(s.CustomerID, s.ConfigSKU)
}
