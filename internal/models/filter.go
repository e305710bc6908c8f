package models

// ProductFilter is the client-facing filter DTO. Keys are the
// front-end filter names; the catalog maps them onto index fields.
type ProductFilter map[string]any

// Recognised filter keys.
const (
	FilterBrand       = "brand"
	FilterSize        = "size"
	FilterColor       = "color"
	FilterGender      = "gender"
	FilterProductType = "product_type"
	FilterSubType     = "sub_type"
	FilterNewIn       = "newin"
	FilterPrice       = "price"
	FilterSearchQuery = "search_query"
)

// SortOrder is one client-requested sort key.
type SortOrder struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Sort field names accepted from clients.
const (
	SortPrice      = "price"
	SortCreatedAt  = "created_at"
	SortPercentage = "percentage_score"
	SortName       = "product_name"
)

// Descending reports whether the sort direction is descending.
func (s SortOrder) Descending() bool {
	return s.Direction == "desc" || s.Direction == "DESC"
}

// AvailableFilters is the facet payload returned by the catalog: per
// facet, the values that still survive with the other facets applied.
type AvailableFilters struct {
	Brands       []FacetValue `json:"brands"`
	Sizes        []FacetValue `json:"sizes"`
	Colors       []FacetValue `json:"colors"`
	Genders      []FacetValue `json:"genders"`
	ProductTypes []FacetValue `json:"product_types"`
	SubTypes     []FacetValue `json:"sub_types"`
}

// FacetValue is one surviving facet value and its document count.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
