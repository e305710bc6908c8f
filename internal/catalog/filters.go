package catalog

import (
	"time"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

// filterFields maps client filter keys onto index fields.
var filterFields = map[string]string{
	models.FilterBrand:       "manufacturer",
	models.FilterSize:        "sizes.size",
	models.FilterColor:       "colour",
	models.FilterGender:      "gender",
	models.FilterProductType: "product_type",
	models.FilterSubType:     "sub_product_type",
}

// sortFields maps client sort keys onto index fields.
var sortFields = map[string]string{
	models.SortCreatedAt:  "created_at",
	models.SortName:       "product_name",
	models.SortPercentage: "percentage_score",
}

// BuildQuery translates a client filter DTO and sort list into an
// index query. now anchors the newin rewrite.
func BuildQuery(filter models.ProductFilter, sorts []models.SortOrder, newInDays int, now time.Time) (storage.Query, error) {
	var q storage.Query

	for key, raw := range filter {
		switch key {
		case models.FilterBrand, models.FilterSize, models.FilterColor,
			models.FilterGender, models.FilterProductType, models.FilterSubType:
			values := toValues(raw)
			if len(values) == 0 {
				return storage.Query{}, apperr.Incorrect("filter %q has no values", key)
			}
			q.Must = append(q.Must, storage.Terms(filterFields[key], values...))

		case models.FilterNewIn:
			enabled, ok := raw.(bool)
			if !ok {
				return storage.Query{}, apperr.Incorrect("filter %q must be a boolean", key)
			}
			if enabled {
				threshold := now.AddDate(0, 0, -newInDays)
				q.Must = append(q.Must, storage.RangeGTE("created_at", threshold))
			}

		case models.FilterPrice:
			clause, err := priceClause(raw)
			if err != nil {
				return storage.Query{}, err
			}
			q.Must = append(q.Must, clause)

		case models.FilterSearchQuery:
			text, ok := raw.(string)
			if !ok || text == "" {
				return storage.Query{}, apperr.Incorrect("filter %q must be a non-empty string", key)
			}
			// Description is deliberately excluded: prefix-matching it
			// surfaces unrelated products ("dress" matching socks).
			q.Should = append(q.Should,
				storage.Prefix("product_name", text),
				storage.Prefix("product_size_attribute", text),
			)

		default:
			return storage.Query{}, apperr.Incorrect("unknown filter key %q", key)
		}
	}

	for _, s := range sorts {
		switch s.Field {
		case models.SortPrice:
			q.Sorts = append(q.Sorts, storage.Sort{Script: storage.ScriptEffectivePrice, Desc: s.Descending()})
		case models.SortCreatedAt, models.SortName, models.SortPercentage:
			q.Sorts = append(q.Sorts, storage.Sort{Field: sortFields[s.Field], Desc: s.Descending()})
		default:
			return storage.Query{}, apperr.Incorrect("unknown sort field %q", s.Field)
		}
	}

	return q, nil
}

// priceClause accepts a single number (exact effective price) or a
// two-element [min, max] range; anything else is rejected.
func priceClause(raw any) (storage.Clause, error) {
	switch v := raw.(type) {
	case float64:
		return storage.ScriptTerm(storage.ScriptEffectivePrice, v), nil
	case int:
		return storage.ScriptTerm(storage.ScriptEffectivePrice, float64(v)), nil
	case []any:
		if len(v) != 2 {
			return storage.Clause{}, apperr.Incorrect("price range must have exactly two bounds")
		}
		lo, ok1 := toNumber(v[0])
		hi, ok2 := toNumber(v[1])
		if !ok1 || !ok2 {
			return storage.Clause{}, apperr.Incorrect("price range bounds must be numbers")
		}
		if lo > hi {
			return storage.Clause{}, apperr.Incorrect("price range lower bound exceeds upper bound")
		}
		return storage.ScriptRange(storage.ScriptEffectivePrice, lo, hi), nil
	default:
		return storage.Clause{}, apperr.Incorrect("price filter must be a number or a two-element range")
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// toValues normalizes a filter value into a flat list.
func toValues(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []any{v}
	case float64, int:
		return []any{v}
	default:
		return nil
	}
}
