package signals

import (
	"strconv"
	"strings"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
)

// genderVocabulary normalizes free-form gender answers onto the
// catalog's gender values.
var genderVocabulary = map[string]string{
	"men": "MENS", "mens": "MENS", "man": "MENS", "male": "MENS",
	"women": "LADIES", "womens": "LADIES", "lady": "LADIES", "ladies": "LADIES", "female": "LADIES",
	"kid": "KIDS", "kids": "KIDS", "boys": "KIDS", "girls": "KIDS",
}

// NormalizeGender maps a raw gender answer onto the catalog
// vocabulary; unknown values pass through upper-cased.
func NormalizeGender(raw string) string {
	if mapped, ok := genderVocabulary[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Clause is one query clause produced from an answer: every field
// must intersect its values (AND within the clause); a signal matches
// when any of its clauses does (OR across clauses).
type Clause map[string][]string

// Clause field names over product attributes.
const (
	fieldBrand       = "manufacturer"
	fieldGender      = "gender"
	fieldProductType = "product_type"
	fieldSubType     = "sub_product_type"
	fieldSize        = "sizes.size"
)

// QuestionSignal is one answer reduced to clauses with its score.
type QuestionSignal struct {
	Clauses []Clause
	Score   float64
}

// BuildQuestionSignals reduces raw answers to question signals. The
// per-answer score is productCount / max(1, clause count).
func BuildQuestionSignals(answers []models.Answer, productCount int) ([]QuestionSignal, error) {
	signals := make([]QuestionSignal, 0, len(answers))
	for _, answer := range answers {
		clauses, err := answerClauses(answer)
		if err != nil {
			return nil, err
		}
		if len(clauses) == 0 {
			continue
		}
		signals = append(signals, QuestionSignal{
			Clauses: clauses,
			Score:   float64(productCount) / float64(len(clauses)),
		})
	}
	return signals, nil
}

func answerClauses(answer models.Answer) ([]Clause, error) {
	switch answer.Target.Type {
	case models.AnswerTargetBrand:
		values := stringList(answer.Value)
		if len(values) == 0 {
			return nil, nil
		}
		return []Clause{{fieldBrand: values}}, nil

	case models.AnswerTargetGender:
		raw := stringList(answer.Value)
		if len(raw) == 0 {
			return nil, nil
		}
		values := make([]string, 0, len(raw))
		for _, v := range raw {
			values = append(values, NormalizeGender(v))
		}
		return []Clause{{fieldGender: values}}, nil

	case models.AnswerTargetCategory:
		return nestedClauses(answer.Value, fieldSubType)

	case models.AnswerTargetSize:
		return nestedClauses(answer.Value, fieldSize)

	default:
		return nil, apperr.Incorrect("unsupported answer target %q", answer.Target.Type)
	}
}

// nestedClauses handles {product_type: [values]} answer shapes: one
// clause per product type, ANDing the type with the nested field.
func nestedClauses(raw any, nestedField string) ([]Clause, error) {
	mapping, ok := raw.(map[string]any)
	if !ok {
		return nil, apperr.Incorrect("answer value must be a product-type mapping")
	}
	clauses := make([]Clause, 0, len(mapping))
	for productType, nested := range mapping {
		clause := Clause{fieldProductType: []string{productType}}
		if values := stringList(nested); len(values) > 0 {
			clause[nestedField] = values
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// stringList flattens a JSON-decoded list of strings or numbers.
func stringList(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Matches reports whether any clause matches all its fields on the
// product.
func (q QuestionSignal) Matches(p *models.Product) bool {
	for _, clause := range q.Clauses {
		if clauseMatches(clause, p) {
			return true
		}
	}
	return false
}

func clauseMatches(clause Clause, p *models.Product) bool {
	for field, values := range clause {
		if !fieldIntersects(p, field, values) {
			return false
		}
	}
	return true
}

func fieldIntersects(p *models.Product, field string, values []string) bool {
	var productValues []string
	switch field {
	case fieldBrand:
		productValues = []string{p.Manufacturer}
	case fieldGender:
		productValues = []string{p.Gender}
	case fieldProductType:
		productValues = []string{p.ProductType}
	case fieldSubType:
		productValues = []string{p.SubProductType}
	case fieldSize:
		productValues = p.SizeLabels()
	}
	for _, pv := range productValues {
		for _, v := range values {
			if strings.EqualFold(pv, v) {
				return true
			}
		}
	}
	return false
}
