package models

// Answer target attribute types recognised by the question aggregator.
const (
	AnswerTargetBrand    = "product.brand"
	AnswerTargetGender   = "customer.shop4"
	AnswerTargetCategory = "product.category"
	AnswerTargetSize     = "product.size"
)

// AnswerTarget names the attribute a declared preference applies to.
type AnswerTarget struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Answer is one declared customer preference. Value is either a flat
// list of strings (brand, gender) or a mapping of product type to a
// list of sub-types or sizes (category, size).
type Answer struct {
	Target AnswerTarget `json:"target"`
	Value  any          `json:"value"`
}
