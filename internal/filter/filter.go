package filter

import (
	"strings"

	"github.com/roach88/querykit/internal/ir"
)

// Filter is a leaf comparison on one field path.
type Filter struct {
	Path     string
	Operator CompareOperator
	Modifier ValueModifier
	Values   []ir.Value

	// Name optionally labels the filter in logs and warnings. It is not
	// part of the textual grammar.
	Name string
}

// Compound combines leaf filters and nested compounds with one logic
// operator.
//
// A Compound tree is strictly owned: every node has exactly one parent and
// is never shared between trees. Functions that restructure trees (the
// parser, Combine) move nodes into the returned root; callers must not keep
// using the inputs afterwards. Use Clone to obtain an independent copy.
type Compound struct {
	Logic    LogicOperator
	Filters  []Filter
	Children []*Compound
}

// NewAnd returns an AND node owning filters.
func NewAnd(filters ...Filter) *Compound {
	return &Compound{Logic: And, Filters: filters}
}

// NewOr returns an OR node owning filters.
func NewOr(filters ...Filter) *Compound {
	return &Compound{Logic: Or, Filters: filters}
}

// IsEmpty reports whether the tree contains no leaf filters at all.
func (c *Compound) IsEmpty() bool {
	if c == nil {
		return true
	}
	if len(c.Filters) > 0 {
		return false
	}
	for _, ch := range c.Children {
		if !ch.IsEmpty() {
			return false
		}
	}
	return true
}

// Leaves returns every leaf filter in depth-first order.
func (c *Compound) Leaves() []Filter {
	if c == nil {
		return nil
	}
	out := append([]Filter(nil), c.Filters...)
	for _, ch := range c.Children {
		out = append(out, ch.Leaves()...)
	}
	return out
}

// Clone returns a deep copy sharing no nodes with c.
func (c *Compound) Clone() *Compound {
	if c == nil {
		return nil
	}
	out := &Compound{Logic: c.Logic}
	for _, f := range c.Filters {
		out.Filters = append(out.Filters, f.Clone())
	}
	for _, ch := range c.Children {
		out.Children = append(out.Children, ch.Clone())
	}
	return out
}

// Clone returns a copy of f with its own value slice.
func (f Filter) Clone() Filter {
	f.Values = append([]ir.Value(nil), f.Values...)
	return f
}

// Combine joins a and b under logic and returns the new root. Empty inputs
// are dropped; when a already uses logic, b is appended to it instead of
// adding a level. Ownership of both inputs moves to the result.
func Combine(logic LogicOperator, a, b *Compound) *Compound {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return &Compound{Logic: logic}
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}

	if a.Logic == logic || operandCount(a) == 1 {
		a.Logic = logic
		if b.Logic == logic || operandCount(b) == 1 {
			a.Filters = append(a.Filters, b.Filters...)
			a.Children = append(a.Children, b.Children...)
		} else {
			a.Children = append(a.Children, b)
		}
		return a
	}

	root := &Compound{Logic: logic, Children: []*Compound{a}}
	if b.Logic == logic || operandCount(b) == 1 {
		root.Filters = append(root.Filters, b.Filters...)
		root.Children = append(root.Children, b.Children...)
	} else {
		root.Children = append(root.Children, b)
	}
	return root
}

func operandCount(c *Compound) int {
	n := len(c.Filters)
	for _, ch := range c.Children {
		if !ch.IsEmpty() {
			n++
		}
	}
	return n
}

// String renders the tree in the textual grammar with the default syntax.
func (c *Compound) String() string {
	return c.Render(DefaultSyntax())
}

// Render renders the tree in the textual grammar. Parsing the result yields
// an Equivalent tree. Leaf filters come first, then parenthesized children.
func (c *Compound) Render(syn Syntax) string {
	if c == nil {
		return ""
	}
	joiner := syn.And
	if c.Logic == Or {
		joiner = syn.Or
	}

	var parts []string
	for _, f := range c.Filters {
		parts = append(parts, f.render(syn))
	}
	for _, ch := range c.Children {
		if ch.IsEmpty() {
			continue
		}
		parts = append(parts, "("+ch.Render(syn)+")")
	}
	return strings.Join(parts, joiner)
}

// String renders the filter in the textual grammar with the default syntax.
func (f Filter) String() string {
	return f.render(DefaultSyntax())
}

func (f Filter) render(syn Syntax) string {
	if f.Operator.Unary() {
		return f.Path + ":" + f.Operator.String()
	}

	var value string
	switch {
	case f.Operator.MultiValued():
		quoted := make([]string, len(f.Values))
		for i, v := range f.Values {
			quoted[i] = syn.quote(ir.Text(v), true)
		}
		value = strings.Join(quoted, string(syn.Separator))
	case len(f.Values) > 1:
		// Several values on a scalar operator are always quoted so the
		// parser reads them back as a list.
		quoted := make([]string, len(f.Values))
		for i, v := range f.Values {
			quoted[i] = string(syn.Quote) + syn.escape(ir.Text(v)) + string(syn.Quote)
		}
		value = strings.Join(quoted, string(syn.Separator))
	case len(f.Values) == 1:
		value = syn.quote(ir.Text(f.Values[0]), false)
	}

	prefix := f.Path + ":" + f.Operator.String() + ":"
	switch {
	case f.Modifier != ModNone:
		prefix += f.Modifier.String() + ":"
	case startsWithModifier(value):
		prefix += ModNone.String() + ":"
	}
	return prefix + value
}

func startsWithModifier(value string) bool {
	kw, _, ok := strings.Cut(value, ":")
	if !ok {
		return false
	}
	_, err := ParseValueModifier(kw)
	return err == nil
}

// Equivalent reports whether a and b have the same leaf filters and the
// same grouping. Empty children are ignored, a node with no filters and a
// single child is the same as that child, and the logic operator of a node
// with fewer than two operands does not matter. Values compare by text, so
// Int(1) and String("1") are equivalent.
func Equivalent(a, b *Compound) bool {
	a, b = unwrap(a), unwrap(b)
	if a == nil || b == nil {
		return a.IsEmpty() && b.IsEmpty()
	}

	ac, bc := nonEmptyChildren(a), nonEmptyChildren(b)
	if len(a.Filters) != len(b.Filters) || len(ac) != len(bc) {
		return false
	}
	if len(a.Filters)+len(ac) > 1 && a.Logic != b.Logic {
		return false
	}
	for i := range a.Filters {
		if !equivalentFilter(a.Filters[i], b.Filters[i]) {
			return false
		}
	}
	for i := range ac {
		if !Equivalent(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

func unwrap(c *Compound) *Compound {
	for c != nil && len(c.Filters) == 0 {
		children := nonEmptyChildren(c)
		if len(children) != 1 {
			break
		}
		c = children[0]
	}
	return c
}

func nonEmptyChildren(c *Compound) []*Compound {
	var out []*Compound
	for _, ch := range c.Children {
		if !ch.IsEmpty() {
			out = append(out, ch)
		}
	}
	return out
}

func equivalentFilter(a, b Filter) bool {
	if a.Path != b.Path || a.Operator != b.Operator || a.Modifier != b.Modifier || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if ir.Text(a.Values[i]) != ir.Text(b.Values[i]) {
			return false
		}
	}
	return true
}

// Describe returns a JSON-ready description of the tree, suitable for
// ir.MarshalCanonical.
func (c *Compound) Describe() map[string]any {
	if c == nil {
		return map[string]any{"logic": And.String(), "filters": []any{}, "children": []any{}}
	}
	filters := make([]any, len(c.Filters))
	for i, f := range c.Filters {
		filters[i] = f.Describe()
	}
	children := make([]any, len(c.Children))
	for i, ch := range c.Children {
		children[i] = ch.Describe()
	}
	return map[string]any{
		"logic":    c.Logic.String(),
		"filters":  filters,
		"children": children,
	}
}

// Describe returns a JSON-ready description of the filter.
func (f Filter) Describe() map[string]any {
	desc := map[string]any{
		"path":     f.Path,
		"operator": f.Operator.String(),
		"modifier": f.Modifier.String(),
		"values":   append([]ir.Value{}, f.Values...),
	}
	if f.Name != "" {
		desc["name"] = f.Name
	}
	return desc
}
