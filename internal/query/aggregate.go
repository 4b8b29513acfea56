package query

import (
	"fmt"
	"strings"

	"github.com/roach88/querykit/internal/filter"
)

// AggregateFunc is the function a meta column applies.
type AggregateFunc int

const (
	Count AggregateFunc = iota + 1
	CountDistinct
	Sum
	Avg
	Min
	Max
)

var aggregateNames = map[AggregateFunc]string{
	Count:         "count",
	CountDistinct: "count_distinct",
	Sum:           "sum",
	Avg:           "avg",
	Min:           "min",
	Max:           "max",
}

// String returns the lower-case function name.
func (f AggregateFunc) String() string {
	if s, ok := aggregateNames[f]; ok {
		return s
	}
	return fmt.Sprintf("AggregateFunc(%d)", int(f))
}

// ParseAggregateFunc parses a function name in any case.
func ParseAggregateFunc(s string) (AggregateFunc, error) {
	for f, name := range aggregateNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate function %q", s)
}

// AggregateExpression describes a distinct or meta column.
//
// As a distinct column, ValuePath is the value and the first label path,
// if any, its label. As a meta column, Function is applied to ValuePath and
// grouped by LabelPaths.
type AggregateExpression struct {
	ValuePath    string
	LabelPaths   []string
	Function     AggregateFunc
	ExtraFilters []filter.Filter
	Distinct     bool
	Name         string
}

// ParseAggregate parses the command-line form
//
//	valuePath[:function][:label1,label2][@name]
//
// e.g. "total:sum:status@revenue" or "status" for a distinct column.
func ParseAggregate(s string) (AggregateExpression, error) {
	var expr AggregateExpression
	body, name, _ := strings.Cut(s, "@")
	expr.Name = name

	parts := strings.Split(body, ":")
	if len(parts) > 3 || parts[0] == "" {
		return expr, fmt.Errorf("invalid aggregate %q: want value[:function][:labels][@name]", s)
	}
	expr.ValuePath = parts[0]
	if len(parts) > 1 && parts[1] != "" {
		fn, err := ParseAggregateFunc(parts[1])
		if err != nil {
			return expr, err
		}
		expr.Function = fn
	}
	if len(parts) > 2 && parts[2] != "" {
		expr.LabelPaths = strings.Split(parts[2], ",")
	}
	return expr, nil
}
