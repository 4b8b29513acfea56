package queryir

import (
	"fmt"
	"strings"
)

// ValidationResult contains the structural problems found in a plan.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems lists every issue, in traversal order.
	Problems []string
}

// Err returns nil for a valid plan, else an error listing every problem.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid plan: %s", strings.Join(r.Problems, "; "))
}

// Validate checks a plan before it is handed to a backend:
//  1. Every column reference names an alias in scope (the root, a join
//     declared earlier, or an enclosing plan's alias for subqueries)
//  2. Join aliases are unique and differ from the root alias
//  3. InList values are never empty
//  4. CountCompare subqueries project exactly one aggregate
//  5. Offset and Limit are not negative
//
// Validate is a pure function with no side effects.
func Validate(p *Plan) ValidationResult {
	v := &validator{problems: []string{}}
	v.validatePlan(p, nil)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// validatePlan checks p with outer as the aliases of enclosing plans.
func (v *validator) validatePlan(p *Plan, outer map[string]bool) {
	if p == nil {
		v.addProblem("nil plan")
		return
	}
	if p.Table == "" {
		v.addProblem("plan for %q has no table", p.Entity)
	}
	if p.Alias == "" {
		v.addProblem("plan for %q has no alias", p.Entity)
	}

	scope := make(map[string]bool, len(outer)+len(p.Joins)+1)
	for a := range outer {
		scope[a] = true
	}
	local := map[string]bool{p.Alias: true}
	scope[p.Alias] = true

	for _, j := range p.Joins {
		if local[j.Alias] {
			v.addProblem("duplicate alias %q (join %s)", j.Alias, j.Path)
		}
		local[j.Alias] = true
		scope[j.Alias] = true
		if j.On == nil {
			v.addProblem("join %s (%s) has no condition", j.Alias, j.Path)
		}
		v.validatePredicate(j.On, scope)
	}

	v.validatePredicate(p.Where, scope)
	for _, s := range p.Select {
		v.validateExpr(s.Expr, scope)
	}
	for _, o := range p.OrderBy {
		v.validateExpr(o.Expr, scope)
	}
	for _, g := range p.GroupBy {
		v.validateExpr(g, scope)
	}

	if p.Offset < 0 || p.Limit < 0 {
		v.addProblem("negative offset or limit (%d, %d)", p.Offset, p.Limit)
	}
}

func (v *validator) validateExpr(e Expr, scope map[string]bool) {
	switch expr := e.(type) {
	case nil:
		v.addProblem("nil expression")
	case Column:
		if !scope[expr.Alias] {
			v.addProblem("column %s references undefined alias %q", expr, expr.Alias)
		}
	case Aggregate:
		if expr.Arg == nil {
			if expr.Func != AggCount || expr.Distinct {
				v.addProblem("%s requires an argument", expr.Func)
			}
			return
		}
		v.validateExpr(expr.Arg, scope)
	case Cast:
		v.validateExpr(expr.Expr, scope)
	default:
		v.addProblem("unknown expression type %T", e)
	}
}

func (v *validator) validatePredicate(p Predicate, scope map[string]bool) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Compare:
		v.validateExpr(pred.Left, scope)
		if pred.Value == nil {
			v.addProblem("comparison with nil value; use IsNull")
		}
	case ColumnCompare:
		v.validateExpr(pred.Left, scope)
		v.validateExpr(pred.Right, scope)
	case IsNull:
		v.validateExpr(pred.Expr, scope)
	case InList:
		v.validateExpr(pred.Expr, scope)
		if len(pred.Values) == 0 {
			v.addProblem("empty IN list")
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, scope)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, scope)
		}
	case Not:
		v.validatePredicate(pred.Predicate, scope)
	case Const:
	case Exists:
		v.validatePlan(pred.Query, scope)
	case CountCompare:
		v.validatePlan(pred.Query, scope)
		if pred.Query != nil && (len(pred.Query.Select) != 1 || !pred.Query.IsAggregate()) {
			v.addProblem("count subquery must project exactly one aggregate, has %d projection(s)", len(pred.Query.Select))
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}
