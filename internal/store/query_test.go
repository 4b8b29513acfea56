package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/planner"
	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/schema"
	"github.com/roach88/querykit/internal/testutil"
)

func shopPlanner() *planner.Planner {
	return planner.New(schema.NewResolver(testutil.ShopSchema(), nil), query.DefaultConfig())
}

func orders() *query.Builder {
	return query.New(query.DefaultConfig()).Init("Order")
}

func run(t *testing.T, s *Store, b *query.Builder) ([]queryir.Row, *planner.Plans) {
	t.Helper()
	req, err := b.Build()
	require.NoError(t, err)
	plans, err := shopPlanner().Build(req)
	require.NoError(t, err)
	rows, err := s.Execute(context.Background(), plans.Primary)
	require.NoError(t, err)
	return rows, plans
}

func ids(rows []queryir.Row) []int64 {
	out := []int64{}
	for _, r := range rows {
		out = append(out, int64(r.Get("id").(ir.Int)))
	}
	return out
}

func TestQuery_Filters(t *testing.T) {
	s := createTestStore(t)

	testCases := []struct {
		name  string
		terms []string
		want  []int64
	}{
		{"no filter", nil, []int64{1, 2, 3, 4, 5}},
		{"equality", []string{"status:EQ:PAID"}, []int64{1, 5}},
		{"in", []string{"status:IN:PAID,NEW"}, []int64{1, 2, 5}},
		{"empty in", []string{"status:IN:"}, []int64{}},
		{"empty not in", []string{"status:NOT_IN:"}, []int64{1, 2, 3, 4, 5}},
		{"not in keeps nulls", []string{"note:NOT_IN:rush"}, []int64{2, 3, 4, 5}},
		{"range", []string{"total:>=50"}, []int64{1, 2, 3}},
		{"time", []string{"created:GTE:2024-03-01"}, []int64{3, 4, 5}},
		{"like", []string{"number:LIKE:LIKE_RIGHT:A-"}, []int64{1, 2}},
		{"is empty", []string{"note:IS_EMPTY"}, []int64{2, 3, 5}},
		{"is not empty", []string{"note:IS_NOT_EMPTY"}, []int64{1, 4}},
		{"or", []string{"status:EQ:NEW OR total:GT:70"}, []int64{1, 2, 3}},
		{"precedence", []string{"status:EQ:PAID AND total:GT:50 OR status:EQ:NEW"}, []int64{1, 2}},
		{"implicit and", []string{"region:north", "total:<60"}, []int64{2}},
		{"neq through join", []string{"customer.name:NEQ:Alice"}, []int64{3, 4, 5}},
		{"neq unrelated", []string{`warehouse.name:NEQ:"North Hub"`}, []int64{3, 4, 5}},
		{"unrelated eq", []string{`warehouse.name:EQ:"South Hub"`}, []int64{3, 4}},
		{"alias", []string{"customerName:Bob"}, []int64{3, 4}},
		{"to-many join dedups", []string{"lines.sku:EQ:SKU-A"}, []int64{1, 2}},
		{"each", []string{"tags.name:EACH:urgent,fragile"}, []int64{1}},
		{"not each", []string{"tags.name:NOT_EACH:urgent"}, []int64{3, 4, 5}},
		{"except", []string{"tags.name:EXCEPT:urgent"}, []int64{1, 3}},
		{"not except", []string{"tags.name:NOT_EXCEPT:urgent"}, []int64{2, 4, 5}},
		{"collection empty", []string{"lines:IS_EMPTY"}, []int64{4, 5}},
		{"collection not empty", []string{"lines:IS_NOT_EMPTY"}, []int64{1, 2, 3}},
		{"missing parent", []string{"customer:IS_NULL"}, []int64{5}},
		{"deep path", []string{"customer.orders.status:EQ:SHIPPED"}, []int64{3, 4}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, _ := run(t, s, orders().AddAndFilter(tc.terms...))
			assert.Equal(t, tc.want, ids(rows))
		})
	}
}

func TestQuery_BoolAndSearch(t *testing.T) {
	s := createTestStore(t)

	rows, _ := run(t, s, query.New(query.DefaultConfig()).Init("Customer").AddAndFilter("active:TRUE"))
	assert.Equal(t, []int64{1, 3}, ids(rows))
	assert.Equal(t, ir.Bool(true), rows[0].Get("active"))

	rows, _ = run(t, s, orders().Search("GIFT"))
	assert.Equal(t, []int64{4}, ids(rows), "SQLite LIKE is case-insensitive for ASCII")

	rows, _ = run(t, s, orders().Search("al", "customer.name"))
	assert.Equal(t, []int64{1, 2}, ids(rows))
}

func TestQuery_SortingAndPaging(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rows, plans := run(t, s, orders().
		AddSorting(query.SortSpec{Path: "total", Direction: query.Desc}).
		Page(1, 2))
	assert.Equal(t, []int64{1, 3}, ids(rows))

	total, err := s.Count(ctx, plans.Count)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	rows, _ = run(t, s, orders().
		AddSorting(query.SortSpec{Path: "total", Direction: query.Desc}).
		Page(3, 2))
	assert.Equal(t, []int64{5}, ids(rows))

	rows, _ = run(t, s, orders().AddSorting(query.SortSpec{Path: "customer.name", Direction: query.Desc}))
	assert.Equal(t, []int64{3, 4, 1, 2, 5}, ids(rows), "NULL sorts first ascending in SQLite, so last descending")
}

func TestQuery_CountDeduplicatesToManyFilters(t *testing.T) {
	s := createTestStore(t)

	rows, plans := run(t, s, orders().AddAndFilter("tags.name:IN:urgent,fragile").Page(1, 10))
	assert.Equal(t, []int64{1, 2}, ids(rows))

	total, err := s.Count(context.Background(), plans.Count)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestQuery_Fetch(t *testing.T) {
	s := createTestStore(t)

	rows, _ := run(t, s, orders().Fetch("customer"))
	require.Len(t, rows, 5)
	assert.Equal(t, ir.String("Alice"), rows[0].Get("customer.name"))
	assert.Equal(t, ir.String("GOLD"), rows[0].Get("customer.tier"))
	assert.Equal(t, ir.Null{}, rows[4].Get("customer.name"))

	created, ok := rows[0].Get("created").(ir.Time)
	require.True(t, ok, "DATETIME columns scan as time")
	assert.Equal(t, 2024, time.Time(created).Year())
}

func TestCount_RejectsMultiDimensionalResults(t *testing.T) {
	s := createTestStore(t)
	req, err := orders().Build()
	require.NoError(t, err)
	plans, err := shopPlanner().Build(req)
	require.NoError(t, err)

	_, err = s.Count(context.Background(), plans.Primary)
	require.Error(t, err)
	assert.True(t, ir.HasCode(err, ir.ErrCodeMultiDimensionalCount))
}

func TestQuery_ContextCanceled(t *testing.T) {
	s := createTestStore(t)
	req, err := orders().Build()
	require.NoError(t, err)
	plans, err := shopPlanner().Build(req)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Execute(ctx, plans.Primary)
	assert.Error(t, err)
}
