package storage

import (
	"fmt"
	"strings"
	"time"
)

// Op is a clause operator.
type Op int

const (
	// OpTerm matches an exact field value.
	OpTerm Op = iota
	// OpTerms matches any of a set of values.
	OpTerms
	// OpPrefix matches values starting with the given prefix.
	OpPrefix
	// OpRange matches a bounded interval; either bound may be open.
	OpRange
)

// Clause is one boolean condition over a document field. Fields under
// the sizes array are addressed as "sizes.<field>" and evaluated
// against every variant.
type Clause struct {
	Field  string
	Script string
	Op     Op
	Value  any
	Values []any
	GTE    any
	LTE    any
}

// ScriptRange builds a range clause over a named script expression
// instead of a stored field.
func ScriptRange(script string, gte, lte any) Clause {
	return Clause{Script: script, Op: OpRange, GTE: gte, LTE: lte}
}

// ScriptTerm builds an exact-match clause over a named script
// expression.
func ScriptTerm(script string, value any) Clause {
	return Clause{Script: script, Op: OpTerm, Value: value}
}

// Term builds an exact-match clause.
func Term(field string, value any) Clause {
	return Clause{Field: field, Op: OpTerm, Value: value}
}

// Terms builds an any-of clause.
func Terms(field string, values ...any) Clause {
	return Clause{Field: field, Op: OpTerms, Values: values}
}

// Prefix builds a prefix-match clause.
func Prefix(field string, value string) Clause {
	return Clause{Field: field, Op: OpPrefix, Value: value}
}

// RangeGTE builds a lower-bounded range clause.
func RangeGTE(field string, value any) Clause {
	return Clause{Field: field, Op: OpRange, GTE: value}
}

// RangeLTE builds an upper-bounded range clause.
func RangeLTE(field string, value any) Clause {
	return Clause{Field: field, Op: OpRange, LTE: value}
}

// Range builds a closed range clause.
func Range(field string, gte, lte any) Clause {
	return Clause{Field: field, Op: OpRange, GTE: gte, LTE: lte}
}

// ScriptEffectivePrice sorts by price - price*discount/100, matching
// the client-side price derivation.
const ScriptEffectivePrice = "effective_price"

const effectivePriceSQL = "(CAST(json_extract(d.doc, '$.price') AS REAL) * (100.0 - CAST(json_extract(d.doc, '$.discount') AS REAL)) / 100.0)"

// Sort is one sort key, either a document field or a named script.
type Sort struct {
	Field  string
	Script string
	Desc   bool
}

// Agg requests a terms aggregation over a field.
type Agg struct {
	Name  string
	Field string
}

// Query is the typed search body accepted by the document index.
// Must clauses all apply; at least one Should clause must match when
// any are present; MustNot clauses exclude.
type Query struct {
	Must    []Clause
	Should  []Clause
	MustNot []Clause
	Sorts   []Sort
	From    int
	Size    int
	Aggs    []Agg
}

// Script is an update-by-query mutation: numeric increments applied
// on top of the current value (absent treated as zero) and absolute
// sets.
type Script struct {
	Incr map[string]float64
	Set  map[string]any
}

// fieldExpr renders the SQL expression addressing a document field.
// The second return is true for fields nested under the sizes array.
func fieldExpr(field string) (string, bool) {
	if sub, ok := strings.CutPrefix(field, "sizes."); ok {
		return fmt.Sprintf("json_extract(je.value, '$.%s')", sub), true
	}
	return fmt.Sprintf("json_extract(d.doc, '$.%s')", field), false
}

// toArg normalizes clause values for the driver. Times compare as
// RFC3339 strings, which sort lexicographically.
func toArg(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// clauseSQL renders one clause. Nested clauses are wrapped in an
// EXISTS over json_each of the sizes array.
func clauseSQL(c Clause) (string, []any) {
	var expr string
	var nested bool
	if c.Script == ScriptEffectivePrice {
		expr = effectivePriceSQL
	} else {
		expr, nested = fieldExpr(c.Field)
	}
	var cond string
	var args []any

	castExpr := func(v any) string {
		if isNumeric(v) {
			return "CAST(" + expr + " AS REAL)"
		}
		return expr
	}

	switch c.Op {
	case OpTerm:
		cond = castExpr(c.Value) + " = ?"
		args = append(args, toArg(c.Value))
	case OpTerms:
		placeholders := make([]string, len(c.Values))
		e := expr
		if len(c.Values) > 0 && isNumeric(c.Values[0]) {
			e = "CAST(" + expr + " AS REAL)"
		}
		for i, v := range c.Values {
			placeholders[i] = "?"
			args = append(args, toArg(v))
		}
		cond = e + " IN (" + strings.Join(placeholders, ", ") + ")"
	case OpPrefix:
		prefix := fmt.Sprintf("%v", c.Value)
		prefix = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
		cond = expr + " LIKE ? ESCAPE '\\'"
		args = append(args, prefix+"%")
	case OpRange:
		var parts []string
		if c.GTE != nil {
			parts = append(parts, castExpr(c.GTE)+" >= ?")
			args = append(args, toArg(c.GTE))
		}
		if c.LTE != nil {
			parts = append(parts, castExpr(c.LTE)+" <= ?")
			args = append(args, toArg(c.LTE))
		}
		if len(parts) == 0 {
			parts = append(parts, "1=1")
		}
		cond = strings.Join(parts, " AND ")
	}

	if nested {
		return "EXISTS (SELECT 1 FROM json_each(d.doc, '$.sizes') je WHERE " + cond + ")", args
	}
	return "(" + cond + ")", args
}

// whereSQL renders the full boolean condition of a query.
func whereSQL(q Query) (string, []any) {
	var conds []string
	var args []any

	for _, c := range q.Must {
		sqlPart, a := clauseSQL(c)
		conds = append(conds, sqlPart)
		args = append(args, a...)
	}
	if len(q.Should) > 0 {
		var shoulds []string
		for _, c := range q.Should {
			sqlPart, a := clauseSQL(c)
			shoulds = append(shoulds, sqlPart)
			args = append(args, a...)
		}
		conds = append(conds, "("+strings.Join(shoulds, " OR ")+")")
	}
	for _, c := range q.MustNot {
		sqlPart, a := clauseSQL(c)
		conds = append(conds, "NOT "+sqlPart)
		args = append(args, a...)
	}

	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

// orderSQL renders the ORDER BY expressions of a query.
func orderSQL(sorts []Sort) string {
	if len(sorts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		var expr string
		switch {
		case s.Script == ScriptEffectivePrice:
			expr = effectivePriceSQL
		default:
			expr, _ = fieldExpr(s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
