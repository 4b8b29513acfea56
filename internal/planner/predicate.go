package planner

import (
	"fmt"
	"log/slog"

	"github.com/roach88/querykit/internal/filter"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/schema"
)

// predicates compiles filter trees into plan predicates for one plan build.
// Joins needed by filters are created on graph.
type predicates struct {
	resolver *schema.Resolver
	graph    *JoinGraph
	root     string
	deep     bool
	logger   *slog.Logger

	warnings []string
}

func (c *predicates) warn(err error) {
	c.logger.Warn("filter value kept as text", "error", err)
	c.warnings = append(c.warnings, err.Error())
}

// resolve resolves path, returning nil without error when the path fails
// but is permissive for the root.
func (c *predicates) resolve(path string) (*schema.Resolution, error) {
	res, err := c.resolver.Resolve(c.root, path, c.deep)
	if err == nil {
		return res, nil
	}
	if ir.IsPathError(err) && c.resolver.IsPermissive(c.root, path) {
		c.logger.Warn("skipping unresolvable path", "root", c.root, "path", path, "error", err)
		return nil, nil
	}
	return nil, err
}

// compileTree returns nil for trees without any effective leaf.
func (c *predicates) compileTree(t *filter.Compound) (queryir.Predicate, error) {
	if t == nil {
		return nil, nil
	}

	var parts []queryir.Predicate
	for _, f := range t.Filters {
		p, err := c.compileFilter(f)
		if err != nil {
			return nil, err
		}
		if p != nil {
			parts = append(parts, p)
		}
	}
	for _, child := range t.Children {
		p, err := c.compileTree(child)
		if err != nil {
			return nil, err
		}
		if p != nil {
			parts = append(parts, p)
		}
	}

	if t.Logic == filter.Or {
		return queryir.OrOf(parts...), nil
	}
	return queryir.AndOf(parts...), nil
}

func (c *predicates) compileFilter(f filter.Filter) (queryir.Predicate, error) {
	if !f.Operator.Valid() {
		return nil, ir.NewUnsupportedOperatorError(f.Path, f.Operator.String(), "unknown operator")
	}

	res, err := c.resolve(f.Path)
	if err != nil || res == nil {
		return nil, err
	}

	switch {
	case res.Field.IsRelation():
		return c.relationPredicate(f, res)
	case f.Operator.SetMembership():
		return c.membershipPredicate(f, res)
	default:
		return c.columnPredicate(f, res)
	}
}

// relationPredicate handles unary tests on a relation field itself, such
// as "lines:IS_EMPTY" or "customer:IS_NULL".
func (c *predicates) relationPredicate(f filter.Filter, res *schema.Resolution) (queryir.Predicate, error) {
	rel := res.Field.Relation
	parent := c.graph.FindOrCreate(res.Hops)

	var negate bool
	switch f.Operator {
	case filter.OpIsNull, filter.OpIsEmpty:
	case filter.OpIsNotNull, filter.OpIsNotEmpty:
		negate = true
	default:
		return nil, ir.NewUnsupportedOperatorError(f.Path, f.Operator.String(),
			"relation fields only support IS_NULL, IS_NOT_NULL, IS_EMPTY and IS_NOT_EMPTY")
	}

	if rel.Kind == schema.ManyToOne || rel.Kind == schema.OneToOne {
		return queryir.IsNull{Expr: parent.Column(rel.Column), Negate: negate}, nil
	}

	sub, _ := c.graph.Correlated(parent, res.Field)
	return queryir.Exists{Query: sub, Negate: !negate}, nil
}

// membershipPredicate compiles EACH, NOT_EACH, EXCEPT and NOT_EXCEPT into a
// count over the first to-many relation on the path, correlated to the row
// that owns it.
func (c *predicates) membershipPredicate(f filter.Filter, res *schema.Resolution) (queryir.Predicate, error) {
	k := res.FirstToMany()
	if k < 0 {
		return nil, ir.NewUnsupportedOperatorError(f.Path, f.Operator.String(),
			"path must traverse a one_to_many, many_to_many or unrelated relation")
	}

	values := c.values(f, res)
	distinct := distinctTexts(values)

	if len(values) == 0 {
		switch f.Operator {
		case filter.OpEach, filter.OpNotEach:
			// Every one of no values is present; none of no values is present.
			return queryir.Const{Value: true}, nil
		}
	}

	parent := c.graph.FindOrCreate(res.Hops[:k])
	sub, inner := c.graph.Correlated(parent, res.Hops[k].Field)
	owner := inner.FindOrCreate(res.Hops[k+1:])
	sub.Joins = append(sub.Joins, inner.Joins()...)
	col := owner.Column(res.Field.Column)

	var (
		match queryir.Predicate
		agg   = queryir.Aggregate{Func: queryir.AggCount, Arg: col}
		cmp   = queryir.CountCompare{Query: sub}
	)
	switch f.Operator {
	case filter.OpEach:
		match = queryir.InList{Expr: col, Values: values}
		agg.Distinct = true
		cmp.Op, cmp.Value = queryir.OpEq, int64(distinct)
	case filter.OpNotEach:
		match = queryir.InList{Expr: col, Values: values}
		cmp.Op, cmp.Value = queryir.OpEq, 0
	case filter.OpExcept, filter.OpNotExcept:
		match = queryir.IsNull{Expr: col, Negate: true}
		if len(values) > 0 {
			match = queryir.AndOf(match, queryir.InList{Expr: col, Values: values, Negate: true})
		}
		cmp.Op, cmp.Value = queryir.OpGt, 0
		if f.Operator == filter.OpNotExcept {
			cmp.Op = queryir.OpEq
		}
	}

	sub.Where = queryir.AndOf(sub.Where, match)
	sub.Select = []queryir.Projection{{Expr: agg, Label: "n"}}
	return cmp, nil
}

// columnPredicate compiles operators on a scalar column.
func (c *predicates) columnPredicate(f filter.Filter, res *schema.Resolution) (queryir.Predicate, error) {
	node := c.graph.FindOrCreate(res.Hops)
	col := node.Column(res.Field.Column)
	textual := res.Field.Type == schema.TypeString || res.Field.Type == schema.TypeEnum

	switch f.Operator {
	case filter.OpTrue, filter.OpFalse:
		return queryir.Compare{Left: col, Op: queryir.OpEq, Value: ir.Bool(f.Operator == filter.OpTrue)}, nil

	case filter.OpIsNull, filter.OpIsNotNull:
		return queryir.IsNull{Expr: col, Negate: f.Operator == filter.OpIsNotNull}, nil

	case filter.OpIsEmpty:
		return isEmpty(col, textual), nil

	case filter.OpIsNotEmpty:
		return queryir.Not{Predicate: isEmpty(col, textual)}, nil
	}

	values := c.values(f, res)

	switch f.Operator {
	case filter.OpIn:
		if len(values) == 0 {
			return queryir.Const{Value: false}, nil
		}
		return queryir.InList{Expr: col, Values: values}, nil

	case filter.OpNotIn:
		if len(values) == 0 {
			return queryir.Const{Value: true}, nil
		}
		return queryir.OrOf(
			queryir.InList{Expr: col, Values: values, Negate: true},
			queryir.IsNull{Expr: col},
		), nil
	}

	op, ok := scalarOps[f.Operator]
	if !ok {
		return nil, ir.NewUnsupportedOperatorError(f.Path, f.Operator.String(), "not applicable to a column")
	}
	if len(values) == 0 {
		return queryir.Const{Value: f.Operator == filter.OpNeq}, nil
	}

	// Several values on a scalar operator mean "matches any of them".
	parts := make([]queryir.Predicate, 0, len(values))
	for _, v := range values {
		if _, isNull := v.(ir.Null); isNull {
			parts = append(parts, queryir.IsNull{Expr: col, Negate: f.Operator == filter.OpNeq})
			continue
		}
		p := queryir.Predicate(queryir.Compare{Left: col, Op: op, Value: v})
		if f.Operator == filter.OpNeq {
			// A missing value, or a missing related row, is "not equal".
			p = queryir.OrOf(p, queryir.IsNull{Expr: col}, node.Absent())
		}
		parts = append(parts, p)
	}
	return queryir.OrOf(parts...), nil
}

var scalarOps = map[filter.CompareOperator]queryir.CompareOp{
	filter.OpEq:   queryir.OpEq,
	filter.OpNeq:  queryir.OpNeq,
	filter.OpLike: queryir.OpLike,
	filter.OpGt:   queryir.OpGt,
	filter.OpLt:   queryir.OpLt,
	filter.OpGte:  queryir.OpGte,
	filter.OpLte:  queryir.OpLte,
}

// values applies the filter's modifier and coerces the result to the
// field's type. Values compared with LIKE stay text.
func (c *predicates) values(f filter.Filter, res *schema.Resolution) []ir.Value {
	raw := f.Values
	if f.Modifier != filter.ModNone {
		texts := make([]string, len(raw))
		for i, v := range raw {
			texts[i] = ir.Text(v)
		}
		raw = ir.Strings(f.Modifier.Apply(texts)...)
	}

	likeValues := f.Operator == filter.OpLike || likeModifiers[f.Modifier]
	out := make([]ir.Value, 0, len(raw))
	for _, v := range raw {
		if likeValues {
			out = append(out, ir.String(ir.Text(v)))
			continue
		}
		cv, err := coerce(res.CanonicalPath, res.Field, v)
		if err != nil {
			c.warn(err)
		}
		out = append(out, cv)
	}
	return out
}

var likeModifiers = map[filter.ValueModifier]bool{
	filter.ModLikeLeft:       true,
	filter.ModLikeRight:      true,
	filter.ModLikeBoth:       true,
	filter.ModSplitLikeLeft:  true,
	filter.ModSplitLikeRight: true,
	filter.ModSplitLikeBoth:  true,
}

func distinctTexts(values []ir.Value) int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		seen[ir.Text(v)] = true
	}
	return len(seen)
}

// search compiles a free-text search into an OR of LIKE '%term%' over
// paths, or over the root entity's declared search fields.
func (c *predicates) search(term string, paths []string) (queryir.Predicate, error) {
	if term == "" {
		return nil, nil
	}
	if len(paths) == 0 {
		paths = c.graph.Root().Entity.Search
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("search on %s: no search paths declared", c.root)
	}

	var parts []queryir.Predicate
	for _, path := range paths {
		res, err := c.resolve(path)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		if !res.Field.IsScalar() {
			return nil, ir.NewUnsupportedOperatorError(path, filter.OpLike.String(), "search paths must be columns")
		}
		node := c.graph.FindOrCreate(res.Hops)
		parts = append(parts, queryir.Compare{
			Left:  node.Column(res.Field.Column),
			Op:    queryir.OpLike,
			Value: ir.String("%" + term + "%"),
		})
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return queryir.OrOf(parts...), nil
}

// isEmpty matches NULL, and the empty string on textual columns.
func isEmpty(col queryir.Column, textual bool) queryir.Predicate {
	if !textual {
		return queryir.IsNull{Expr: col}
	}
	return queryir.OrOf(
		queryir.IsNull{Expr: col},
		queryir.Compare{Left: col, Op: queryir.OpEq, Value: ir.String("")},
	)
}
