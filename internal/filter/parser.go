package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/schema"
)

// maxDepth bounds bracket nesting in one term.
const maxDepth = 64

var pathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// PathCheck validates a field path. Returning an error rejects the term
// unless the path is permissive.
type PathCheck func(path string) error

// Parser turns textual filter terms into Compound trees. A Parser holds no
// per-call state and is safe for concurrent use.
type Parser struct {
	syntax     Syntax
	check      PathCheck
	permissive func(path string) bool
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithSyntax overrides the grammar tokens.
func WithSyntax(syn Syntax) Option {
	return func(p *Parser) { p.syntax = syn }
}

// WithPathCheck validates every leaf path with check. Failures on paths for
// which permissive returns true drop the leaf with a warning instead of
// failing the parse. permissive may be nil.
func WithPathCheck(check PathCheck, permissive func(path string) bool) Option {
	return func(p *Parser) {
		p.check = check
		p.permissive = permissive
	}
}

// WithResolver validates leaf paths against root using r and honours the
// root's permissive patterns.
func WithResolver(r *schema.Resolver, root string, allowDeepDive bool) Option {
	return WithPathCheck(
		func(path string) error {
			_, err := r.Resolve(root, path, allowDeepDive)
			return err
		},
		func(path string) bool { return r.IsPermissive(root, path) },
	)
}

// WithLogger sets the logger for dropped-leaf warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// NewParser creates a parser with the default syntax and no path checks.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		syntax: DefaultSyntax(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses each term and joins the results with an implicit AND.
// Blank terms are ignored; no terms yield an empty AND node.
func (p *Parser) Parse(terms ...string) (*Compound, error) {
	root := &Compound{Logic: And}
	for _, term := range terms {
		c, err := p.ParseTerm(term)
		if err != nil {
			return nil, err
		}
		if c.IsEmpty() {
			continue
		}
		if c.Logic == And || operandCount(c) == 1 {
			root.Filters = append(root.Filters, c.Filters...)
			root.Children = append(root.Children, c.Children...)
		} else {
			root.Children = append(root.Children, c)
		}
	}
	return root, nil
}

// ParseTerm parses a single term. AND binds tighter than OR:
//
//	a:EQ:1 AND b:EQ:2 OR c:EQ:3  ->  OR(c=3, AND(a=1, b=2))
func (p *Parser) ParseTerm(term string) (*Compound, error) {
	return p.parseExpr(term, 0)
}

// operand is either a leaf filter, a parenthesized group, or nothing when a
// permissive leaf was dropped.
type operand struct {
	leaf  *Filter
	group *Compound
}

func (p *Parser) parseExpr(expr string, depth int) (*Compound, error) {
	if depth > maxDepth {
		return nil, ir.NewMalformedTermError(expr, fmt.Sprintf("nesting deeper than %d", maxDepth))
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Compound{Logic: And}, nil
	}

	parts, ops, err := p.split(expr)
	if err != nil {
		return nil, err
	}

	b := &treeBuilder{}
	for i, part := range parts {
		o, err := p.parseOperand(part, depth)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			b.pending = o
			continue
		}
		b.push(ops[i-1], o)
	}
	return b.finish(), nil
}

// split cuts expr at the compound tokens found outside quotes and brackets.
func (p *Parser) split(expr string) ([]string, []LogicOperator, error) {
	syn := p.syntax
	var (
		parts    []string
		ops      []LogicOperator
		start    int
		depth    int
		inQuotes bool
	)
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == syn.Escape:
			i++
			continue
		case c == syn.Quote:
			inQuotes = !inQuotes
			continue
		case inQuotes:
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			if depth < 0 {
				return nil, nil, ir.NewMalformedTermError(expr, "unbalanced ')'")
			}
			continue
		case depth > 0:
			continue
		}

		switch {
		case strings.HasPrefix(expr[i:], syn.And):
			parts = append(parts, expr[start:i])
			ops = append(ops, And)
			i += len(syn.And) - 1
			start = i + 1
		case strings.HasPrefix(expr[i:], syn.Or):
			parts = append(parts, expr[start:i])
			ops = append(ops, Or)
			i += len(syn.Or) - 1
			start = i + 1
		}
	}
	if inQuotes {
		return nil, nil, ir.NewMalformedTermError(expr, "unterminated quote")
	}
	if depth != 0 {
		return nil, nil, ir.NewMalformedTermError(expr, "unbalanced '('")
	}
	return append(parts, expr[start:]), ops, nil
}

func (p *Parser) parseOperand(s string, depth int) (operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return operand{}, ir.NewMalformedTermError(s, "missing operand")
	}

	if s[0] == '(' {
		end := p.matchingClose(s)
		if end != len(s)-1 {
			return operand{}, ir.NewMalformedTermError(s, "unexpected text after ')'")
		}
		inner := strings.TrimSpace(s[1:end])
		if inner == "" {
			return operand{}, ir.NewMalformedTermError(s, "empty group")
		}
		group, err := p.parseExpr(inner, depth+1)
		if err != nil {
			return operand{}, err
		}
		return operand{group: group}, nil
	}

	f, err := p.parseLeaf(s)
	if err != nil {
		return operand{}, err
	}
	if p.check != nil {
		if err := p.check(f.Path); err != nil {
			if p.permissive != nil && p.permissive(f.Path) {
				p.logger.Warn("dropping filter on unresolvable path",
					"path", f.Path,
					"term", s,
					"error", err)
				return operand{}, nil
			}
			return operand{}, err
		}
	}
	return operand{leaf: &f}, nil
}

// matchingClose returns the index of the ')' closing s[0], or -1. split has
// already verified that brackets balance.
func (p *Parser) matchingClose(s string) int {
	depth := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == p.syntax.Escape:
			i++
		case c == p.syntax.Quote:
			inQuotes = !inQuotes
		case inQuotes:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseLeaf parses path:OP[:MOD]:value, path:OP for unary operators, or
// the punctuation form path<cmp>value.
func (p *Parser) parseLeaf(s string) (Filter, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return Filter{}, ir.NewMalformedTermError(s, "missing comparator")
	}
	path := strings.TrimSpace(s[:colon])
	if !pathPattern.MatchString(path) {
		return Filter{}, ir.NewMalformedTermError(s, fmt.Sprintf("invalid field path %q", path))
	}

	f := Filter{Path: path}
	rest := s[colon+1:]

	kw, after, hasValue := strings.Cut(rest, ":")
	if op, err := ParseCompareOperator(kw); err == nil {
		f.Operator = op
		switch {
		case op.Unary() && hasValue:
			return Filter{}, ir.NewMalformedTermError(s, fmt.Sprintf("operator %s takes no value", op))
		case op.Unary():
			return f, nil
		case !hasValue:
			return Filter{}, ir.NewMalformedTermError(s, fmt.Sprintf("operator %s requires a value", op))
		}
		if mkw, value, ok := strings.Cut(after, ":"); ok {
			if mod, err := ParseValueModifier(mkw); err == nil {
				f.Modifier = mod
				after = value
			}
		}
		f.Values = p.values(op, after)
		return f, nil
	}

	for _, t := range comparatorTokens {
		if strings.HasPrefix(s[colon:], t.token) {
			f.Operator = t.op
			f.Values = p.values(t.op, s[colon+len(t.token):])
			return f, nil
		}
	}
	return Filter{}, ir.NewMalformedTermError(s, "unknown comparator")
}

func (p *Parser) values(op CompareOperator, raw string) []ir.Value {
	if !op.MultiValued() {
		if list, ok := p.syntax.QuotedList(raw); ok {
			return ir.Strings(list...)
		}
		return []ir.Value{ir.String(p.syntax.unquote(raw))}
	}
	if strings.TrimSpace(raw) == "" {
		return []ir.Value{}
	}
	return ir.Strings(p.syntax.SplitCSV(raw)...)
}

// treeBuilder applies operands left to right, keeping AND runs nested
// under OR nodes. Every node it creates is owned by exactly one parent.
type treeBuilder struct {
	root    *Compound
	cur     *Compound
	pending operand
}

// push attaches the pending operand according to the operator that
// follows it, then makes next pending.
func (b *treeBuilder) push(op LogicOperator, next operand) {
	switch {
	case b.cur == nil:
		b.root = &Compound{Logic: op}
		b.cur = b.root
		b.cur.add(b.pending)

	case b.cur.Logic == op:
		b.cur.add(b.pending)

	case op == And:
		// a OR b AND c: b starts an AND run below the OR node.
		run := &Compound{Logic: And}
		b.cur.Children = append(b.cur.Children, run)
		run.add(b.pending)
		b.cur = run

	default:
		// a AND b OR c: the AND run is complete; OR moves above it.
		b.cur.add(b.pending)
		if b.cur != b.root {
			b.cur = b.root
		} else {
			b.root = &Compound{Logic: Or, Children: []*Compound{b.root}}
			b.cur = b.root
		}
	}
	b.pending = next
}

func (b *treeBuilder) finish() *Compound {
	if b.cur == nil {
		if b.pending.group != nil {
			return b.pending.group
		}
		c := &Compound{Logic: And}
		c.add(b.pending)
		return c
	}
	b.cur.add(b.pending)
	return b.root
}

func (c *Compound) add(o operand) {
	switch {
	case o.leaf != nil:
		c.Filters = append(c.Filters, *o.leaf)
	case o.group != nil && !o.group.IsEmpty():
		c.Children = append(c.Children, o.group)
	}
}
