package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/schema"
	"github.com/roach88/querykit/internal/testutil"
)

func shopGraph(t *testing.T) (*JoinGraph, *schema.Resolver) {
	t.Helper()
	s := testutil.ShopSchema()
	order, ok := s.Entity("Order")
	require.True(t, ok)
	return NewJoinGraph(s, order), schema.NewResolver(s, nil)
}

func hopsOf(t *testing.T, r *schema.Resolver, path string) []schema.Hop {
	t.Helper()
	res, err := r.Resolve("Order", path, true)
	require.NoError(t, err)
	return res.Hops
}

func TestJoinGraph_SamePathSameHandle(t *testing.T) {
	g, r := shopGraph(t)

	first := g.FindOrCreate(hopsOf(t, r, "customer.name"))
	second := g.FindOrCreate(hopsOf(t, r, "customer.email"))
	viaAlias := g.FindOrCreate(hopsOf(t, r, "customerName"))

	assert.Same(t, first, second)
	assert.Same(t, first, viaAlias)
	assert.Len(t, g.Joins(), 1)

	found, ok := g.FindByPath("customer")
	require.True(t, ok)
	assert.Same(t, first, found)
}

func TestJoinGraph_Aliases(t *testing.T) {
	g, r := shopGraph(t)

	assert.Equal(t, "t0", g.Root().Alias)

	customer := g.FindOrCreate(hopsOf(t, r, "customer.name"))
	tags := g.FindOrCreate(hopsOf(t, r, "tags.name"))
	orders := g.FindOrCreate(hopsOf(t, r, "customer.orders.number"))

	assert.Equal(t, "t1", customer.Alias)
	assert.Equal(t, "t3", tags.Alias, "link table takes t2")
	assert.Equal(t, "t4", orders.Alias)
	assert.Same(t, customer, orders.Parent, "existing prefix is reused")

	joins := g.Joins()
	require.Len(t, joins, 4)
	assert.Equal(t, []string{"customer", "tags#link", "tags", "customer.orders"},
		[]string{joins[0].Path, joins[1].Path, joins[2].Path, joins[3].Path})

	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("t1", "id"), Op: queryir.OpEq, Right: queryir.Col("t0", "customer_id")}, joins[0].On)
	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("t2", "order_id"), Op: queryir.OpEq, Right: queryir.Col("t0", "id")}, joins[1].On)
	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("t3", "id"), Op: queryir.OpEq, Right: queryir.Col("t2", "tag_id")}, joins[2].On)
	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("t4", "customer_id"), Op: queryir.OpEq, Right: queryir.Col("t1", "id")}, joins[3].On)

	assert.False(t, customer.ToMany)
	assert.True(t, tags.ToMany)
	assert.True(t, orders.ToMany)
	assert.True(t, g.HasToMany())
}

func TestJoinGraph_ToOneOnly(t *testing.T) {
	g, r := shopGraph(t)
	g.FindOrCreate(hopsOf(t, r, "customer.name"))
	assert.False(t, g.HasToMany())

	_, ok := g.FindByPath("lines")
	assert.False(t, ok)
	root, ok := g.FindByPath("")
	assert.True(t, ok)
	assert.Same(t, g.Root(), root)
}

func TestJoinGraph_UnrelatedJoin(t *testing.T) {
	g, r := shopGraph(t)

	wh := g.FindOrCreate(hopsOf(t, r, "warehouse.name"))
	joins := g.Joins()
	require.Len(t, joins, 1)
	assert.Equal(t, queryir.LeftJoin, joins[0].Kind)
	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("t1", "region"), Op: queryir.OpEq, Right: queryir.Col("t0", "region")}, joins[0].On)

	absent, ok := wh.Absent().(queryir.Exists)
	require.True(t, ok, "absence of an unrelated join is a correlated NOT EXISTS")
	assert.True(t, absent.Negate)
	assert.Equal(t, "warehouses", absent.Query.Table)
	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("s1", "region"), Op: queryir.OpEq, Right: queryir.Col("t0", "region")}, absent.Query.Where)
}

func TestJoinNode_AbsentCoversEveryHop(t *testing.T) {
	g, r := shopGraph(t)
	orders := g.FindOrCreate(hopsOf(t, r, "customer.orders.number"))

	assert.Nil(t, g.Root().Absent())
	assert.Equal(t, queryir.Or{Predicates: []queryir.Predicate{
		queryir.IsNull{Expr: queryir.Col("t2", "id")},
		queryir.IsNull{Expr: queryir.Col("t1", "id")},
	}}, orders.Absent())
}

func TestJoinGraph_Correlated(t *testing.T) {
	g, _ := shopGraph(t)
	order := g.Root().Entity
	tags, _ := order.Field("tags")
	lines, _ := order.Field("lines")

	sub, inner := g.Correlated(g.Root(), tags)
	assert.Equal(t, "order_tags", sub.Table)
	assert.Equal(t, "s1", sub.Alias)
	require.Len(t, sub.Joins, 1)
	assert.Equal(t, queryir.InnerJoin, sub.Joins[0].Kind)
	assert.Equal(t, "s2", inner.Root().Alias)
	assert.Equal(t, "Tag", inner.Root().Entity.Name)

	sub, _ = g.Correlated(g.Root(), lines)
	assert.Equal(t, "order_lines", sub.Table)
	assert.Equal(t, "s3", sub.Alias)
	assert.Equal(t, queryir.ColumnCompare{Left: queryir.Col("s3", "order_id"), Op: queryir.OpEq, Right: queryir.Col("t0", "id")}, sub.Where)
	assert.Empty(t, g.Joins(), "correlated subqueries add no outer joins")
}
