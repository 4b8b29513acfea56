package queryir

import (
	"fmt"

	"github.com/roach88/querykit/internal/ir"
)

// RootAlias is the alias of a plan's root table.
const RootAlias = "t0"

// Expr is a value-producing expression in a projection, ordering or
// predicate.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode()
}

// Predicate is a boolean condition in a WHERE clause or join condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Column references a column of an aliased table.
//
//	Column{Alias: "t1", Name: "name"}  →  t1.name
type Column struct {
	Alias string
	Name  string
}

func (Column) exprNode() {}

// String renders alias.name.
func (c Column) String() string {
	return c.Alias + "." + c.Name
}

// Col is shorthand for Column{Alias: alias, Name: name}.
func Col(alias, name string) Column {
	return Column{Alias: alias, Name: name}
}

// AggFunc is an aggregate function.
type AggFunc int

const (
	AggCount AggFunc = iota + 1
	AggSum
	AggAvg
	AggMin
	AggMax
)

var aggNames = map[AggFunc]string{
	AggCount: "COUNT",
	AggSum:   "SUM",
	AggAvg:   "AVG",
	AggMin:   "MIN",
	AggMax:   "MAX",
}

// String returns the SQL function name.
func (f AggFunc) String() string {
	if s, ok := aggNames[f]; ok {
		return s
	}
	return fmt.Sprintf("AggFunc(%d)", int(f))
}

// Aggregate applies an aggregate function to Arg. A nil Arg with AggCount
// means COUNT(*).
//
//	Aggregate{Func: AggCount, Arg: Col("t0", "id"), Distinct: true}  →  COUNT(DISTINCT t0.id)
type Aggregate struct {
	Func     AggFunc
	Arg      Expr
	Distinct bool
}

func (Aggregate) exprNode() {}

// CastType is a portable cast target for ordering.
type CastType string

const (
	CastInteger CastType = "integer"
	CastReal    CastType = "real"
	CastText    CastType = "text"
)

// ParseCastType validates a cast target name.
func ParseCastType(s string) (CastType, error) {
	switch t := CastType(s); t {
	case CastInteger, CastReal, CastText:
		return t, nil
	}
	return "", fmt.Errorf("unknown cast type %q (want integer, real or text)", s)
}

// Cast converts Expr to Type.
type Cast struct {
	Expr Expr
	Type CastType
}

func (Cast) exprNode() {}

// CompareOp is a binary comparison.
type CompareOp int

const (
	OpEq CompareOp = iota + 1
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLike
)

var compareSymbols = map[CompareOp]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpLt:   "<",
	OpLte:  "<=",
	OpGt:   ">",
	OpGte:  ">=",
	OpLike: "LIKE",
}

// String returns the SQL operator.
func (op CompareOp) String() string {
	if s, ok := compareSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("CompareOp(%d)", int(op))
}

// Compare compares an expression with a literal value.
//
//	Compare{Left: Col("t0", "status"), Op: OpEq, Value: ir.String("PAID")}  →  t0.status = ?
type Compare struct {
	Left  Expr
	Op    CompareOp
	Value ir.Value
}

func (Compare) predicateNode() {}

// ColumnCompare compares two expressions; joins and correlated subqueries
// use it for key equality.
type ColumnCompare struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (ColumnCompare) predicateNode() {}

// IsNull tests an expression for NULL, or NOT NULL when Negate is set.
type IsNull struct {
	Expr   Expr
	Negate bool
}

func (IsNull) predicateNode() {}

// InList tests membership in a literal list. Values must not be empty;
// the planner replaces empty lists with Const.
type InList struct {
	Expr   Expr
	Values []ir.Value
	Negate bool
}

func (InList) predicateNode() {}

// And is a conjunction. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Const is a constant truth value.
type Const struct {
	Value bool
}

func (Const) predicateNode() {}

// Exists tests whether a correlated subquery returns any row, or returns
// none when Negate is set. The subquery's projections are ignored.
type Exists struct {
	Query  *Plan
	Negate bool
}

func (Exists) predicateNode() {}

// CountCompare compares the single scalar returned by a correlated
// subquery with an integer.
//
//	CountCompare{Query: sub, Op: OpEq, Value: 2}  →  (SELECT COUNT(DISTINCT s1.name) ...) = 2
type CountCompare struct {
	Query *Plan
	Op    CompareOp
	Value int64
}

func (CountCompare) predicateNode() {}

// JoinKind selects the join type.
type JoinKind int

const (
	LeftJoin JoinKind = iota
	InnerJoin
)

// String returns the SQL keyword.
func (k JoinKind) String() string {
	if k == InnerJoin {
		return "JOIN"
	}
	return "LEFT JOIN"
}

// Join attaches an aliased table to the plan.
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	On    Predicate

	// Path is the canonical relation path that produced the join, for
	// diagnostics. Link-table hops of many-to-many relations carry the
	// relation path with a "#link" suffix.
	Path string

	// ToMany marks joins that can multiply root rows.
	ToMany bool
}

// Projection is one selected expression with its result label.
type Projection struct {
	Expr  Expr
	Label string

	// Hidden columns are selected only so a DISTINCT plan can order by
	// them; they are removed from result rows.
	Hidden bool
}

// Order is one ORDER BY term.
type Order struct {
	Expr Expr
	Desc bool
}

// Plan is one SELECT over a root table.
type Plan struct {
	// Entity is the schema entity of the root table.
	Entity string
	Table  string
	Alias  string

	// Key is the root key column, used by backends for a stable final
	// ordering.
	Key string

	Joins    []Join
	Where    Predicate // nil = no filter
	Select   []Projection
	OrderBy  []Order
	GroupBy  []Expr
	Distinct bool

	// Offset and Limit page the result. Limit 0 means unlimited.
	Offset int64
	Limit  int64

	// ReadOnly asks the executor to run the plan in a read-only
	// transaction.
	ReadOnly bool

	// Warnings collects non-fatal planning problems, such as values that
	// could not be coerced to the field type.
	Warnings []string
}

// Clone returns a copy of p whose joins, projections, ordering, grouping and
// warnings can be changed without affecting p. Predicates are shared.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Joins = append([]Join(nil), p.Joins...)
	c.Select = append([]Projection(nil), p.Select...)
	c.OrderBy = append([]Order(nil), p.OrderBy...)
	c.GroupBy = append([]Expr(nil), p.GroupBy...)
	c.Warnings = append([]string(nil), p.Warnings...)
	return &c
}

// Labels returns the projection labels in order.
func (p *Plan) Labels() []string {
	out := make([]string, len(p.Select))
	for i, s := range p.Select {
		out[i] = s.Label
	}
	return out
}

// StripHidden deletes the labels of hidden projections from rows.
func (p *Plan) StripHidden(rows []Row) {
	for _, proj := range p.Select {
		if !proj.Hidden {
			continue
		}
		for _, row := range rows {
			delete(row, proj.Label)
		}
	}
}

// HasToManyJoin reports whether any join can multiply root rows.
func (p *Plan) HasToManyJoin() bool {
	for _, j := range p.Joins {
		if j.ToMany {
			return true
		}
	}
	return false
}

// IsAggregate reports whether any projection is an aggregate.
func (p *Plan) IsAggregate() bool {
	for _, s := range p.Select {
		if _, ok := s.Expr.(Aggregate); ok {
			return true
		}
	}
	return false
}

// AndOf joins preds with AND, dropping nils and flattening single members.
func AndOf(preds ...Predicate) Predicate {
	return junction(preds, func(ps []Predicate) Predicate { return And{Predicates: ps} })
}

// OrOf joins preds with OR, dropping nils and flattening single members.
func OrOf(preds ...Predicate) Predicate {
	return junction(preds, func(ps []Predicate) Predicate { return Or{Predicates: ps} })
}

func junction(preds []Predicate, build func([]Predicate) Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return build(kept)
	}
}
