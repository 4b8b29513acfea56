package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
)

// Compiler compiles plans to parameterized SQL.
//
// Every value is bound as a parameter, never interpolated. Row-returning
// queries always end in a deterministic ORDER BY (see tiebreaker).
type Compiler struct {
	dialect Dialect
}

// NewCompiler creates a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile converts a plan to (sql, params).
func (c *Compiler) Compile(p *queryir.Plan) (string, []any, error) {
	if p == nil {
		return "", nil, fmt.Errorf("cannot compile nil plan")
	}
	b, err := c.selectBuilder(p, false)
	if err != nil {
		return "", nil, err
	}
	return b.PlaceholderFormat(c.dialect.placeholder()).ToSql()
}

// subquery compiles p with ? placeholders so it can be embedded in an outer
// statement, which renumbers them for its own dialect.
func (c *Compiler) subquery(p *queryir.Plan) (string, []any, error) {
	if p == nil {
		return "", nil, fmt.Errorf("cannot compile nil subquery")
	}
	b, err := c.selectBuilder(p, true)
	if err != nil {
		return "", nil, err
	}
	return b.PlaceholderFormat(sq.Question).ToSql()
}

func (c *Compiler) selectBuilder(p *queryir.Plan, nested bool) (sq.SelectBuilder, error) {
	var cols []string
	for _, proj := range p.Select {
		expr, err := c.expr(proj.Expr)
		if err != nil {
			return sq.SelectBuilder{}, fmt.Errorf("select %s: %w", proj.Label, err)
		}
		if proj.Label != "" {
			expr += " AS " + Quote(proj.Label)
		}
		cols = append(cols, expr)
	}
	if len(cols) == 0 {
		cols = []string{Quote(p.Alias) + ".*"}
	}

	b := sq.Select(cols...).From(Quote(p.Table) + " AS " + Quote(p.Alias))
	if p.Distinct {
		b = b.Distinct()
	}

	for _, j := range p.Joins {
		on, args, err := c.predicate(j.On)
		if err != nil {
			return sq.SelectBuilder{}, fmt.Errorf("join %s: %w", j.Path, err)
		}
		clause := fmt.Sprintf("%s AS %s ON %s", Quote(j.Table), Quote(j.Alias), on)
		switch j.Kind {
		case queryir.InnerJoin:
			b = b.Join(clause, args...)
		default:
			b = b.LeftJoin(clause, args...)
		}
	}

	if p.Where != nil {
		where, err := c.sqlizer(p.Where)
		if err != nil {
			return sq.SelectBuilder{}, fmt.Errorf("compile filter: %w", err)
		}
		b = b.Where(where)
	}

	for _, g := range p.GroupBy {
		expr, err := c.expr(g)
		if err != nil {
			return sq.SelectBuilder{}, fmt.Errorf("group by: %w", err)
		}
		b = b.GroupBy(expr)
	}

	if !nested {
		orders, err := c.orderBy(p)
		if err != nil {
			return sq.SelectBuilder{}, err
		}
		b = b.OrderBy(orders...)
	}

	if p.Limit > 0 {
		b = b.Limit(uint64(p.Limit))
	}
	if p.Offset > 0 {
		if p.Limit <= 0 {
			return sq.SelectBuilder{}, fmt.Errorf("offset %d requires a limit", p.Offset)
		}
		b = b.Offset(uint64(p.Offset))
	}
	return b, nil
}

// orderBy renders the requested ordering followed by the tiebreaker.
func (c *Compiler) orderBy(p *queryir.Plan) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, o := range p.OrderBy {
		expr, err := c.expr(o.Expr)
		if err != nil {
			return nil, fmt.Errorf("order by: %w", err)
		}
		seen[expr] = true
		if o.Desc {
			out = append(out, expr+" DESC")
		} else {
			out = append(out, expr+" ASC")
		}
	}
	if key, ok := tiebreaker(p); ok && !seen[key] {
		out = append(out, key+" ASC")
	}
	return out, nil
}

// tiebreaker returns the root key column that makes row order total. Plans
// that group rows, or that deduplicate without selecting the key, have no
// per-row key to order by.
func tiebreaker(p *queryir.Plan) (string, bool) {
	if p.Key == "" || len(p.GroupBy) > 0 || p.IsAggregate() {
		return "", false
	}
	key := queryir.Col(p.Alias, p.Key)
	if p.Distinct {
		selected := false
		for _, proj := range p.Select {
			if col, ok := proj.Expr.(queryir.Column); ok && col == key {
				selected = true
				break
			}
		}
		if !selected {
			return "", false
		}
	}
	return Quote(key.Alias) + "." + Quote(key.Name), true
}

func (c *Compiler) expr(e queryir.Expr) (string, error) {
	switch x := e.(type) {
	case queryir.Column:
		return Quote(x.Alias) + "." + Quote(x.Name), nil
	case queryir.Aggregate:
		if x.Arg == nil {
			if x.Func != queryir.AggCount {
				return "", fmt.Errorf("%s requires an argument", x.Func)
			}
			return "COUNT(*)", nil
		}
		arg, err := c.expr(x.Arg)
		if err != nil {
			return "", err
		}
		if x.Distinct {
			arg = "DISTINCT " + arg
		}
		return fmt.Sprintf("%s(%s)", x.Func, arg), nil
	case queryir.Cast:
		inner, err := c.expr(x.Expr)
		if err != nil {
			return "", err
		}
		typ, err := c.dialect.castType(x.Type)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CAST(%s AS %s)", inner, typ), nil
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (c *Compiler) predicate(p queryir.Predicate) (string, []any, error) {
	s, err := c.sqlizer(p)
	if err != nil {
		return "", nil, err
	}
	return s.ToSql()
}

// sqlizer converts a predicate into a squirrel condition with ?
// placeholders.
func (c *Compiler) sqlizer(p queryir.Predicate) (sq.Sqlizer, error) {
	switch pred := p.(type) {
	case nil:
		return sq.Expr("1=1"), nil

	case queryir.Const:
		if pred.Value {
			return sq.Expr("1=1"), nil
		}
		return sq.Expr("1=0"), nil

	case queryir.Compare:
		left, err := c.expr(pred.Left)
		if err != nil {
			return nil, err
		}
		if _, isNull := pred.Value.(ir.Null); isNull || pred.Value == nil {
			switch pred.Op {
			case queryir.OpEq:
				return sq.Expr(left + " IS NULL"), nil
			case queryir.OpNeq:
				return sq.Expr(left + " IS NOT NULL"), nil
			}
			return nil, fmt.Errorf("%s %s NULL is never true; use IsNull", left, pred.Op)
		}
		return sq.Expr(fmt.Sprintf("%s %s ?", left, pred.Op), ir.ToAny(pred.Value)), nil

	case queryir.ColumnCompare:
		left, err := c.expr(pred.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.expr(pred.Right)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("%s %s %s", left, pred.Op, right)), nil

	case queryir.IsNull:
		e, err := c.expr(pred.Expr)
		if err != nil {
			return nil, err
		}
		if pred.Negate {
			return sq.Expr(e + " IS NOT NULL"), nil
		}
		return sq.Expr(e + " IS NULL"), nil

	case queryir.InList:
		if len(pred.Values) == 0 {
			return nil, fmt.Errorf("empty IN list")
		}
		e, err := c.expr(pred.Expr)
		if err != nil {
			return nil, err
		}
		args := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			args[i] = ir.ToAny(v)
		}
		op := "IN"
		if pred.Negate {
			op = "NOT IN"
		}
		return sq.Expr(fmt.Sprintf("%s %s (%s)", e, op, sq.Placeholders(len(args))), args...), nil

	case queryir.And:
		if len(pred.Predicates) == 0 {
			return sq.Expr("1=1"), nil
		}
		parts, err := c.sqlizers(pred.Predicates)
		if err != nil {
			return nil, err
		}
		return sq.And(parts), nil

	case queryir.Or:
		if len(pred.Predicates) == 0 {
			return sq.Expr("1=0"), nil
		}
		parts, err := c.sqlizers(pred.Predicates)
		if err != nil {
			return nil, err
		}
		return sq.Or(parts), nil

	case queryir.Not:
		inner, args, err := c.predicate(pred.Predicate)
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+inner+")", args...), nil

	case queryir.Exists:
		sub, args, err := c.subquery(pred.Query)
		if err != nil {
			return nil, err
		}
		prefix := "EXISTS"
		if pred.Negate {
			prefix = "NOT EXISTS"
		}
		return sq.Expr(fmt.Sprintf("%s (%s)", prefix, sub), args...), nil

	case queryir.CountCompare:
		sub, args, err := c.subquery(pred.Query)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("(%s) %s ?", sub, pred.Op), append(args, pred.Value)...), nil

	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) sqlizers(preds []queryir.Predicate) ([]sq.Sqlizer, error) {
	out := make([]sq.Sqlizer, 0, len(preds))
	for _, p := range preds {
		s, err := c.sqlizer(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Statement renders sql with its parameters for display. The output is not
// meant to be executed.
func Statement(sql string, args []any) string {
	if len(args) == 0 {
		return sql
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return sql + " -- [" + strings.Join(parts, ", ") + "]"
}
