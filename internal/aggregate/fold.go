package aggregate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/queryir"
)

// labelText joins the label cells of row with a space, in label index
// order. ok is false when the row has no label columns.
func labelText(row queryir.Row) (string, bool) {
	var parts []string
	for i := 0; ; i++ {
		v, ok := row[labelPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		parts = append(parts, ir.Text(v))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// FoldDistinct maps each distinct value's text to its label. A value seen
// under several labels gets them joined with ", " in first-seen order. A
// row without labels is labelled by its value.
func FoldDistinct(rows []queryir.Row) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		value := ir.Text(row.Get(ValueLabel))
		label, ok := labelText(row)
		if !ok {
			label = value
		}

		prev, seen := out[value]
		switch {
		case !seen:
			out[value] = label
		case !containsLabel(prev, label):
			out[value] = prev + ", " + label
		}
	}
	return out
}

func containsLabel(joined, label string) bool {
	for _, l := range strings.Split(joined, ", ") {
		if l == label {
			return true
		}
	}
	return false
}

// partial is one key's aggregate so far.
type partial struct {
	value  ir.Value
	weight int64
}

// MergeMeta folds meta rows into key -> aggregate. The key is the label
// text, or "value" without labels. Rows that share a key merge by fn:
// counts and sums add, averages weight by the number of values in each
// partition, Min and Max keep the extreme.
func MergeMeta(fn query.AggregateFunc, rows []queryir.Row) (map[string]ir.Value, error) {
	acc := make(map[string]*partial, len(rows))
	for _, row := range rows {
		key, ok := labelText(row)
		if !ok {
			key = ValueLabel
		}
		next := &partial{value: row.Get(ValueLabel), weight: weightOf(row.Get(WeightLabel))}

		prev, seen := acc[key]
		if !seen {
			acc[key] = next
			continue
		}
		merged, err := merge(fn, prev, next)
		if err != nil {
			return nil, fmt.Errorf("merge %s for %q: %w", fn, key, err)
		}
		acc[key] = merged
	}

	out := make(map[string]ir.Value, len(acc))
	for key, p := range acc {
		out[key] = p.value
	}
	return out, nil
}

func weightOf(v ir.Value) int64 {
	switch n := v.(type) {
	case ir.Int:
		return int64(n)
	case ir.Float:
		return int64(n)
	default:
		return 0
	}
}

func merge(fn query.AggregateFunc, a, b *partial) (*partial, error) {
	weight := a.weight + b.weight
	if isNull(a.value) {
		return &partial{value: b.value, weight: weight}, nil
	}
	if isNull(b.value) {
		return &partial{value: a.value, weight: weight}, nil
	}

	switch fn {
	case query.Count, query.CountDistinct, query.Sum:
		return &partial{value: add(a.value, b.value), weight: weight}, nil

	case query.Avg:
		av, aok := ir.AsFloat(a.value)
		bv, bok := ir.AsFloat(b.value)
		if !aok || !bok {
			return nil, fmt.Errorf("non-numeric averages %s and %s", a.value.Kind(), b.value.Kind())
		}
		if weight == 0 {
			return &partial{value: ir.Null{}, weight: 0}, nil
		}
		return &partial{
			value:  ir.Float((av*float64(a.weight) + bv*float64(b.weight)) / float64(weight)),
			weight: weight,
		}, nil

	case query.Min, query.Max:
		c, err := ir.Compare(a.value, b.value)
		if err != nil {
			return nil, err
		}
		keepA := c <= 0
		if fn == query.Max {
			keepA = c >= 0
		}
		if keepA {
			return &partial{value: a.value, weight: weight}, nil
		}
		return &partial{value: b.value, weight: weight}, nil

	default:
		return nil, fmt.Errorf("unsupported aggregate function %s", fn)
	}
}

// add sums two numbers, staying integral when both are.
func add(a, b ir.Value) ir.Value {
	ai, aInt := a.(ir.Int)
	bi, bInt := b.(ir.Int)
	if aInt && bInt {
		return ai + bi
	}
	af, _ := ir.AsFloat(a)
	bf, _ := ir.AsFloat(b)
	return ir.Float(af + bf)
}

func isNull(v ir.Value) bool {
	_, ok := v.(ir.Null)
	return ok || v == nil
}
