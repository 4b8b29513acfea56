// Package aggregate plans and folds distinct-value and meta (aggregate)
// columns.
//
// Each column gets its own plan cloned from the request's filtered base:
// same joins and predicate, no ordering or paging. Distinct plans select
// (value, labels...) with DISTINCT; meta plans select the aggregate, its
// partition weight and the label columns, grouped by the labels. Folding
// merges result rows that map to the same key.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/planner"
	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/schema"
)

// Projection labels used by distinct and meta plans.
const (
	ValueLabel  = "value"
	WeightLabel = "weight"
	labelPrefix = "label"
)

// Column is one planned distinct or meta column.
type Column struct {
	Key  string
	Expr query.AggregateExpression
	Plan *queryir.Plan
}

// Key returns the result key for expr: its Name when set, otherwise
// "<entity>.<valuePath>.<function>[.by.<label1>,<label2>]". Distinct
// columns use "distinct" as the function.
func Key(entity string, expr query.AggregateExpression, distinct bool) string {
	if expr.Name != "" {
		return expr.Name
	}
	fn := "distinct"
	if !distinct {
		fn = expr.Function.String()
	}
	key := entity + "." + expr.ValuePath + "." + fn
	if len(expr.LabelPaths) > 0 {
		key += ".by." + strings.Join(expr.LabelPaths, ",")
	}
	return key
}

// DistinctColumns plans every distinct column of req.
func DistinctColumns(p *planner.Planner, req *query.Request) ([]Column, error) {
	return columns(p, req, req.Distinct, true)
}

// MetaColumns plans every meta column of req.
func MetaColumns(p *planner.Planner, req *query.Request) ([]Column, error) {
	return columns(p, req, req.Meta, false)
}

func columns(p *planner.Planner, req *query.Request, exprs []query.AggregateExpression, distinct bool) ([]Column, error) {
	seen := map[string]bool{}
	out := make([]Column, 0, len(exprs))
	for _, expr := range exprs {
		key := Key(req.Root, expr, distinct)
		if seen[key] {
			return nil, ir.NewDuplicateAggregateKeyError(key)
		}
		seen[key] = true

		var (
			plan *queryir.Plan
			err  error
		)
		if distinct {
			plan, err = DistinctPlan(p, req, expr)
		} else {
			plan, err = MetaPlan(p, req, expr)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, Column{Key: key, Expr: expr, Plan: plan})
	}
	return out, nil
}

// scope builds the filtered base with the column's extra filters and
// resolves its value and label columns.
func scope(p *planner.Planner, req *query.Request, expr query.AggregateExpression) (*planner.Scope, queryir.Column, *schema.Field, []queryir.Column, error) {
	s, err := p.Base(req)
	if err != nil {
		return nil, queryir.Column{}, nil, nil, err
	}
	if err := s.AndFilters(expr.ExtraFilters); err != nil {
		return nil, queryir.Column{}, nil, nil, err
	}
	value, res, err := s.Column(expr.ValuePath)
	if err != nil {
		return nil, queryir.Column{}, nil, nil, err
	}
	labels := make([]queryir.Column, 0, len(expr.LabelPaths))
	for _, path := range expr.LabelPaths {
		col, _, err := s.Column(path)
		if err != nil {
			return nil, queryir.Column{}, nil, nil, err
		}
		labels = append(labels, col)
	}
	return s, value, res.Field, labels, nil
}

func labelProjections(labels []queryir.Column) []queryir.Projection {
	out := make([]queryir.Projection, len(labels))
	for i, l := range labels {
		out[i] = queryir.Projection{Expr: l, Label: fmt.Sprintf("%s%d", labelPrefix, i)}
	}
	return out
}

// DistinctPlan selects the distinct (value, labels...) tuples of expr's
// columns over the filtered base.
func DistinctPlan(p *planner.Planner, req *query.Request, expr query.AggregateExpression) (*queryir.Plan, error) {
	s, value, _, labels, err := scope(p, req, expr)
	if err != nil {
		return nil, err
	}
	plan := s.Plan()
	plan.Select = append([]queryir.Projection{{Expr: value, Label: ValueLabel}}, labelProjections(labels)...)
	plan.Distinct = true
	if result := queryir.Validate(plan); !result.Valid {
		return nil, result.Err()
	}
	return plan, nil
}

var aggFuncs = map[query.AggregateFunc]queryir.AggFunc{
	query.Count:         queryir.AggCount,
	query.CountDistinct: queryir.AggCount,
	query.Sum:           queryir.AggSum,
	query.Avg:           queryir.AggAvg,
	query.Min:           queryir.AggMin,
	query.Max:           queryir.AggMax,
}

// MetaPlan selects expr's aggregate, the number of values it covers and
// the label columns, grouped by the labels.
func MetaPlan(p *planner.Planner, req *query.Request, expr query.AggregateExpression) (*queryir.Plan, error) {
	fn, ok := aggFuncs[expr.Function]
	if !ok {
		return nil, ir.NewUnsupportedOperatorError(expr.ValuePath, expr.Function.String(), "unknown aggregate function")
	}

	s, value, field, labels, err := scope(p, req, expr)
	if err != nil {
		return nil, err
	}
	if (expr.Function == query.Sum || expr.Function == query.Avg) &&
		field.Type != schema.TypeInt && field.Type != schema.TypeFloat {
		return nil, ir.NewUnsupportedOperatorError(expr.ValuePath, expr.Function.String(), "requires a numeric column")
	}

	plan := s.Plan()
	plan.Select = []queryir.Projection{
		{
			Expr:  queryir.Aggregate{Func: fn, Arg: value, Distinct: expr.Distinct || expr.Function == query.CountDistinct},
			Label: ValueLabel,
		},
		{
			Expr:  queryir.Aggregate{Func: queryir.AggCount, Arg: value},
			Label: WeightLabel,
		},
	}
	plan.Select = append(plan.Select, labelProjections(labels)...)
	for _, l := range labels {
		plan.GroupBy = append(plan.GroupBy, l)
	}
	if result := queryir.Validate(plan); !result.Valid {
		return nil, result.Err()
	}
	return plan, nil
}
