package planner

import (
	"strconv"

	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/schema"
)

// JoinNode is one materialized relation hop in a plan. Nodes are created
// by a JoinGraph and live as long as the plan build.
type JoinNode struct {
	// Path is the canonical relation path from the plan root; "" for the
	// root node.
	Path   string
	Alias  string
	Entity *schema.Entity
	Parent *JoinNode

	// Field is the relation on Parent.Entity that produced the node.
	Field *schema.Field

	// ToMany is set when this hop or any hop above it can multiply root
	// rows.
	ToMany bool

	// absent is true for rows where this hop found no counterpart.
	absent queryir.Predicate
}

// Column references a column of the node's table.
func (n *JoinNode) Column(name string) queryir.Column {
	return queryir.Col(n.Alias, name)
}

// KeyColumn references the node's primary key.
func (n *JoinNode) KeyColumn() queryir.Column {
	return n.Column(n.Entity.Key)
}

// Absent returns the predicate that holds when any hop on the way to n
// found no counterpart, or nil for the root.
func (n *JoinNode) Absent() queryir.Predicate {
	var preds []queryir.Predicate
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		preds = append(preds, cur.absent)
	}
	return queryir.OrOf(preds...)
}

type aliasSeq struct {
	prefix string
	n      int
}

func (a *aliasSeq) next() string {
	s := a.prefix + strconv.Itoa(a.n)
	a.n++
	return s
}

// JoinGraph records the joins of one plan, keyed by canonical relation
// path. Looking up the same path twice returns the same node, so filters,
// sorts and projections that share a relation share its join.
//
// A JoinGraph is owned by a single plan build and is not safe for
// concurrent use.
type JoinGraph struct {
	schema *schema.Schema
	root   *JoinNode
	nodes  map[string]*JoinNode
	joins  []queryir.Join

	aliases *aliasSeq
	// subs numbers correlated subqueries across the whole build.
	subs *aliasSeq
}

// NewJoinGraph starts a graph rooted at root with alias t0.
func NewJoinGraph(s *schema.Schema, root *schema.Entity) *JoinGraph {
	aliases := &aliasSeq{prefix: "t"}
	return newJoinGraph(s, root, aliases.next(), aliases, &aliasSeq{prefix: "s", n: 1})
}

func newJoinGraph(s *schema.Schema, root *schema.Entity, rootAlias string, aliases, subs *aliasSeq) *JoinGraph {
	return &JoinGraph{
		schema:  s,
		root:    &JoinNode{Alias: rootAlias, Entity: root},
		nodes:   map[string]*JoinNode{},
		aliases: aliases,
		subs:    subs,
	}
}

// Root returns the root node.
func (g *JoinGraph) Root() *JoinNode {
	return g.root
}

// Joins returns the joins in creation order.
func (g *JoinGraph) Joins() []queryir.Join {
	return append([]queryir.Join(nil), g.joins...)
}

// HasToMany reports whether any join can multiply root rows.
func (g *JoinGraph) HasToMany() bool {
	for _, j := range g.joins {
		if j.ToMany {
			return true
		}
	}
	return false
}

// FindByPath returns the node for a canonical relation path if it has been
// materialized. The empty path is the root.
func (g *JoinGraph) FindByPath(path string) (*JoinNode, bool) {
	if path == "" {
		return g.root, true
	}
	n, ok := g.nodes[path]
	return n, ok
}

// FindOrCreate returns the node reached by following hops from the root,
// creating joins for every hop not yet materialized. It walks backward to
// the longest existing prefix and creates one node per remaining hop.
func (g *JoinGraph) FindOrCreate(hops []schema.Hop) *JoinNode {
	if len(hops) == 0 {
		return g.root
	}

	parent, start := g.root, 0
	for i := len(hops) - 1; i >= 0; i-- {
		if n, ok := g.nodes[hops[i].Path]; ok {
			parent, start = n, i+1
			break
		}
	}

	for _, hop := range hops[start:] {
		parent = g.create(parent, hop)
	}
	return parent
}

func (g *JoinGraph) create(parent *JoinNode, hop schema.Hop) *JoinNode {
	rel := hop.Field.Relation

	var link string
	if rel.Kind == schema.ManyToMany {
		link = g.aliases.next()
	}

	n := &JoinNode{
		Path:   hop.Path,
		Alias:  g.aliases.next(),
		Entity: hop.To,
		Parent: parent,
		Field:  hop.Field,
		ToMany: parent.ToMany || rel.Kind.ToMany(),
	}
	n.absent = queryir.IsNull{Expr: n.KeyColumn()}

	join := queryir.Join{
		Kind:   queryir.LeftJoin,
		Table:  hop.To.Table,
		Alias:  n.Alias,
		Path:   hop.Path,
		ToMany: rel.Kind.ToMany(),
	}

	switch rel.Kind {
	case schema.ManyToOne, schema.OneToOne:
		join.On = eqCols(n.KeyColumn(), parent.Column(rel.Column))

	case schema.OneToMany:
		join.On = eqCols(n.Column(rel.Remote), parent.KeyColumn())

	case schema.ManyToMany:
		g.joins = append(g.joins, queryir.Join{
			Kind:   queryir.LeftJoin,
			Table:  rel.Through,
			Alias:  link,
			Path:   hop.Path + "#link",
			On:     eqCols(queryir.Col(link, rel.ThroughLocal), parent.KeyColumn()),
			ToMany: true,
		})
		join.On = eqCols(n.KeyColumn(), queryir.Col(link, rel.ThroughRemote))

	case schema.Unrelated:
		// No foreign key links the tables. The join matches on the
		// correlation columns and absence is a correlated NOT EXISTS, so a
		// parent without counterpart keeps exactly one row.
		join.On = eqCols(n.Column(rel.Remote), parent.Column(rel.Column))
		side, _ := g.Correlated(parent, hop.Field)
		n.absent = queryir.Exists{Query: side, Negate: true}
	}

	g.joins = append(g.joins, join)
	g.nodes[hop.Path] = n
	return n
}

// Correlated builds a subquery over the rows that parent reaches through
// the relation field, correlated to parent's alias. The returned graph is
// rooted at the relation's target inside the subquery; joins created on it
// must be appended to the subquery by the caller.
//
//	one_to_many   SELECT ... FROM order_lines s1 WHERE s1.order_id = t0.id
//	many_to_many  SELECT ... FROM order_tags s1 JOIN tags s2 ON s2.id = s1.tag_id WHERE s1.order_id = t0.id
//	unrelated     SELECT ... FROM warehouses s1 WHERE s1.region = t0.region
func (g *JoinGraph) Correlated(parent *JoinNode, field *schema.Field) (*queryir.Plan, *JoinGraph) {
	rel := field.Relation
	target, _ := g.schema.Entity(rel.Target)

	sub := &queryir.Plan{Entity: target.Name, Key: target.Key}
	var rootAlias string

	switch rel.Kind {
	case schema.ManyToMany:
		link := g.subs.next()
		rootAlias = g.subs.next()
		sub.Table, sub.Alias = rel.Through, link
		sub.Joins = []queryir.Join{{
			Kind:  queryir.InnerJoin,
			Table: target.Table,
			Alias: rootAlias,
			Path:  field.Name,
			On:    eqCols(queryir.Col(rootAlias, target.Key), queryir.Col(link, rel.ThroughRemote)),
		}}
		sub.Where = eqCols(queryir.Col(link, rel.ThroughLocal), parent.KeyColumn())

	case schema.OneToMany:
		rootAlias = g.subs.next()
		sub.Table, sub.Alias = target.Table, rootAlias
		sub.Where = eqCols(queryir.Col(rootAlias, rel.Remote), parent.KeyColumn())

	case schema.Unrelated:
		rootAlias = g.subs.next()
		sub.Table, sub.Alias = target.Table, rootAlias
		sub.Where = eqCols(queryir.Col(rootAlias, rel.Remote), parent.Column(rel.Column))

	default:
		rootAlias = g.subs.next()
		sub.Table, sub.Alias = target.Table, rootAlias
		sub.Where = eqCols(queryir.Col(rootAlias, target.Key), parent.Column(rel.Column))
	}

	sub.Select = []queryir.Projection{{Expr: queryir.Col(rootAlias, target.Key), Label: "1"}}
	return sub, newJoinGraph(g.schema, target, rootAlias, g.subs, g.subs)
}

func eqCols(left, right queryir.Expr) queryir.Predicate {
	return queryir.ColumnCompare{Left: left, Op: queryir.OpEq, Right: right}
}
