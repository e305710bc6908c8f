package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductView is a shaped catalog item as served to clients. Prices
// are derived; Fbucks is present only for authenticated customers on
// a non-neutral tier.
type ProductView struct {
	ConfigSKU       string          `json:"config_sku"`
	ProductName     string          `json:"product_name"`
	Brand           string          `json:"brand"`
	ProductType     string          `json:"product_type"`
	SubProductType  string          `json:"sub_product_type"`
	Colour          string          `json:"colour"`
	Gender          string          `json:"gender"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	Discount        decimal.Decimal `json:"discount"`
	Fbucks          *int            `json:"fbucks,omitempty"`
	PercentageScore float64         `json:"percentage_score"`
	CreatedAt       time.Time       `json:"created_at"`
	Sizes           []SizeVariant   `json:"sizes"`
}

// ShapeProduct derives the client payload for a product. tier may be
// nil for anonymous or neutral-tier callers.
func ShapeProduct(p Product, percentage float64, tier *Tier) ProductView {
	view := ProductView{
		ConfigSKU:       p.ConfigSKU,
		ProductName:     p.ProductName,
		Brand:           p.Manufacturer,
		ProductType:     p.ProductType,
		SubProductType:  p.SubProductType,
		Colour:          p.Colour,
		Gender:          p.Gender,
		OriginalPrice:   p.Price.Round(2),
		CurrentPrice:    p.CurrentPrice(),
		Discount:        p.Discount,
		PercentageScore: percentage,
		CreatedAt:       p.CreatedAt,
		Sizes:           p.Sizes,
	}
	if tier != nil && !tier.IsNeutral() {
		fb := Fbucks(view.CurrentPrice, tier.CreditBackPercent)
		view.Fbucks = &fb
	}
	return view
}

// ProductPage is one page of shaped catalog items.
type ProductPage struct {
	Items []ProductView `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}
