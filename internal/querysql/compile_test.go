package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
)

func ordersPlan(where queryir.Predicate) *queryir.Plan {
	return &queryir.Plan{
		Entity: "Order",
		Table:  "orders",
		Alias:  "t0",
		Key:    "id",
		Select: []queryir.Projection{
			{Expr: queryir.Col("t0", "id"), Label: "id"},
			{Expr: queryir.Col("t0", "number"), Label: "number"},
		},
		Where: where,
	}
}

const selectOrders = `SELECT "t0"."id" AS "id", "t0"."number" AS "number" FROM "orders" AS "t0"`

func TestCompile_SimpleSelect(t *testing.T) {
	plan := ordersPlan(queryir.Compare{Left: queryir.Col("t0", "status"), Op: queryir.OpEq, Value: ir.String("PAID")})

	sql, params, err := NewCompiler(SQLite).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, selectOrders+` WHERE "t0"."status" = ? ORDER BY "t0"."id" ASC`, sql)
	assert.NotContains(t, sql, "PAID")
	assert.Equal(t, []any{"PAID"}, params)

	sql, params, err = NewCompiler(Postgres).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, selectOrders+` WHERE "t0"."status" = $1 ORDER BY "t0"."id" ASC`, sql)
	assert.Equal(t, []any{"PAID"}, params)
}

func TestCompile_NoFilterStillOrdered(t *testing.T) {
	sql, params, err := NewCompiler(SQLite).Compile(ordersPlan(nil))
	require.NoError(t, err)
	assert.Equal(t, selectOrders+` ORDER BY "t0"."id" ASC`, sql)
	assert.Empty(t, params)
}

func TestCompile_Joins(t *testing.T) {
	plan := ordersPlan(queryir.And{Predicates: []queryir.Predicate{
		queryir.Compare{Left: queryir.Col("t0", "status"), Op: queryir.OpEq, Value: ir.String("PAID")},
		queryir.Compare{Left: queryir.Col("t1", "name"), Op: queryir.OpEq, Value: ir.String("Alice")},
	}})
	plan.Joins = []queryir.Join{{
		Kind:  queryir.LeftJoin,
		Table: "customers",
		Alias: "t1",
		On:    queryir.ColumnCompare{Left: queryir.Col("t1", "id"), Op: queryir.OpEq, Right: queryir.Col("t0", "customer_id")},
		Path:  "customer",
	}}

	sql, params, err := NewCompiler(Postgres).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, selectOrders+
		` LEFT JOIN "customers" AS "t1" ON "t1"."id" = "t0"."customer_id"`+
		` WHERE ("t0"."status" = $1 AND "t1"."name" = $2) ORDER BY "t0"."id" ASC`, sql)
	assert.Equal(t, []any{"PAID", "Alice"}, params)
}

func TestCompile_Predicates(t *testing.T) {
	note := queryir.Col("t0", "note")

	testCases := []struct {
		name   string
		pred   queryir.Predicate
		where  string
		params []any
	}{
		{"const true", queryir.Const{Value: true}, `1=1`, nil},
		{"const false", queryir.Const{Value: false}, `1=0`, nil},
		{"is null", queryir.IsNull{Expr: note}, `"t0"."note" IS NULL`, nil},
		{"is not null", queryir.IsNull{Expr: note, Negate: true}, `"t0"."note" IS NOT NULL`, nil},
		{"in", queryir.InList{Expr: note, Values: ir.Strings("a", "b")}, `"t0"."note" IN (?,?)`, []any{"a", "b"}},
		{"not in", queryir.InList{Expr: note, Values: ir.Strings("a"), Negate: true}, `"t0"."note" NOT IN (?)`, []any{"a"}},
		{"like", queryir.Compare{Left: note, Op: queryir.OpLike, Value: ir.String("%x%")}, `"t0"."note" LIKE ?`, []any{"%x%"}},
		{"range", queryir.Compare{Left: queryir.Col("t0", "total"), Op: queryir.OpGte, Value: ir.Float(10)}, `"t0"."total" >= ?`, []any{10.0}},
		{"bool", queryir.Compare{Left: queryir.Col("t0", "active"), Op: queryir.OpEq, Value: ir.Bool(true)}, `"t0"."active" = ?`, []any{true}},
		{"eq null", queryir.Compare{Left: note, Op: queryir.OpEq, Value: ir.Null{}}, `"t0"."note" IS NULL`, nil},
		{"not", queryir.Not{Predicate: queryir.IsNull{Expr: note}}, `NOT ("t0"."note" IS NULL)`, nil},
		{
			"or",
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.Compare{Left: note, Op: queryir.OpNeq, Value: ir.String("a")},
				queryir.IsNull{Expr: note},
			}},
			`("t0"."note" <> ? OR "t0"."note" IS NULL)`,
			[]any{"a"},
		},
		{"empty and", queryir.And{}, `1=1`, nil},
		{"empty or", queryir.Or{}, `1=0`, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := NewCompiler(SQLite).Compile(ordersPlan(tc.pred))
			require.NoError(t, err)
			assert.Equal(t, selectOrders+` WHERE `+tc.where+` ORDER BY "t0"."id" ASC`, sql)
			if tc.params == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tc.params, params)
			}
		})
	}
}

func tagCount() *queryir.Plan {
	name := queryir.Col("s2", "name")
	return &queryir.Plan{
		Entity: "Order",
		Table:  "order_tags",
		Alias:  "s1",
		Joins: []queryir.Join{{
			Kind:  queryir.InnerJoin,
			Table: "tags",
			Alias: "s2",
			On:    queryir.ColumnCompare{Left: queryir.Col("s2", "id"), Op: queryir.OpEq, Right: queryir.Col("s1", "tag_id")},
		}},
		Where: queryir.And{Predicates: []queryir.Predicate{
			queryir.ColumnCompare{Left: queryir.Col("s1", "order_id"), Op: queryir.OpEq, Right: queryir.Col("t0", "id")},
			queryir.InList{Expr: name, Values: ir.Strings("urgent", "fragile")},
		}},
		Select: []queryir.Projection{{Expr: queryir.Aggregate{Func: queryir.AggCount, Arg: name, Distinct: true}, Label: "n"}},
	}
}

func TestCompile_CountSubqueryRenumbersPlaceholders(t *testing.T) {
	plan := ordersPlan(queryir.And{Predicates: []queryir.Predicate{
		queryir.Compare{Left: queryir.Col("t0", "status"), Op: queryir.OpEq, Value: ir.String("PAID")},
		queryir.CountCompare{Query: tagCount(), Op: queryir.OpEq, Value: 2},
	}})

	sql, params, err := NewCompiler(Postgres).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, selectOrders+` WHERE ("t0"."status" = $1 AND `+
		`(SELECT COUNT(DISTINCT "s2"."name") AS "n" FROM "order_tags" AS "s1" `+
		`JOIN "tags" AS "s2" ON "s2"."id" = "s1"."tag_id" `+
		`WHERE ("s1"."order_id" = "t0"."id" AND "s2"."name" IN ($2,$3))) = $4) `+
		`ORDER BY "t0"."id" ASC`, sql)
	assert.Equal(t, []any{"PAID", "urgent", "fragile", int64(2)}, params)
}

func TestCompile_NotExists(t *testing.T) {
	sub := &queryir.Plan{
		Table:  "order_lines",
		Alias:  "s1",
		Key:    "id",
		Where:  queryir.ColumnCompare{Left: queryir.Col("s1", "order_id"), Op: queryir.OpEq, Right: queryir.Col("t0", "id")},
		Select: []queryir.Projection{{Expr: queryir.Col("s1", "id"), Label: "1"}},
	}

	sql, _, err := NewCompiler(SQLite).Compile(ordersPlan(queryir.Exists{Query: sub, Negate: true}))
	require.NoError(t, err)
	assert.Equal(t, selectOrders+` WHERE NOT EXISTS (SELECT "s1"."id" AS "1" FROM "order_lines" AS "s1" `+
		`WHERE "s1"."order_id" = "t0"."id") ORDER BY "t0"."id" ASC`, sql, "subqueries are not ordered")
}

func TestCompile_Tiebreaker(t *testing.T) {
	t.Run("after requested sorts", func(t *testing.T) {
		plan := ordersPlan(nil)
		plan.OrderBy = []queryir.Order{
			{Expr: queryir.Col("t0", "total"), Desc: true},
			{Expr: queryir.Cast{Expr: queryir.Col("t0", "number"), Type: queryir.CastInteger}},
		}
		sql, _, err := NewCompiler(SQLite).Compile(plan)
		require.NoError(t, err)
		assert.Equal(t, selectOrders+` ORDER BY "t0"."total" DESC, CAST("t0"."number" AS INTEGER) ASC, "t0"."id" ASC`, sql)

		sql, _, err = NewCompiler(Postgres).Compile(plan)
		require.NoError(t, err)
		assert.Contains(t, sql, `CAST("t0"."number" AS BIGINT) ASC`)
	})

	t.Run("not repeated when sorting by key", func(t *testing.T) {
		plan := ordersPlan(nil)
		plan.OrderBy = []queryir.Order{{Expr: queryir.Col("t0", "id"), Desc: true}}
		sql, _, err := NewCompiler(SQLite).Compile(plan)
		require.NoError(t, err)
		assert.Equal(t, selectOrders+` ORDER BY "t0"."id" DESC`, sql)
	})

	t.Run("distinct with key", func(t *testing.T) {
		plan := ordersPlan(nil)
		plan.Distinct = true
		sql, _, err := NewCompiler(SQLite).Compile(plan)
		require.NoError(t, err)
		assert.Equal(t, `SELECT DISTINCT "t0"."id" AS "id", "t0"."number" AS "number" FROM "orders" AS "t0" ORDER BY "t0"."id" ASC`, sql)
	})

	t.Run("distinct without key", func(t *testing.T) {
		plan := ordersPlan(nil)
		plan.Distinct = true
		plan.Select = plan.Select[1:]
		sql, _, err := NewCompiler(SQLite).Compile(plan)
		require.NoError(t, err)
		assert.Equal(t, `SELECT DISTINCT "t0"."number" AS "number" FROM "orders" AS "t0"`, sql)
	})

	t.Run("distinct selects cast sort", func(t *testing.T) {
		cast := queryir.Cast{Expr: queryir.Col("t0", "number"), Type: queryir.CastInteger}
		plan := ordersPlan(nil)
		plan.Distinct = true
		plan.OrderBy = []queryir.Order{{Expr: cast, Desc: true}}
		plan.Select = append(plan.Select, queryir.Projection{Expr: cast, Label: "_sort0", Hidden: true})
		sql, _, err := NewCompiler(Postgres).Compile(plan)
		require.NoError(t, err)
		assert.Equal(t, `SELECT DISTINCT "t0"."id" AS "id", "t0"."number" AS "number", `+
			`CAST("t0"."number" AS BIGINT) AS "_sort0" FROM "orders" AS "t0" `+
			`ORDER BY CAST("t0"."number" AS BIGINT) DESC, "t0"."id" ASC`, sql)
	})

	t.Run("grouped", func(t *testing.T) {
		plan := ordersPlan(nil)
		plan.Select = []queryir.Projection{
			{Expr: queryir.Col("t0", "status"), Label: "status"},
			{Expr: queryir.Aggregate{Func: queryir.AggSum, Arg: queryir.Col("t0", "total")}, Label: "value"},
		}
		plan.GroupBy = []queryir.Expr{queryir.Col("t0", "status")}
		sql, _, err := NewCompiler(SQLite).Compile(plan)
		require.NoError(t, err)
		assert.Equal(t, `SELECT "t0"."status" AS "status", SUM("t0"."total") AS "value" FROM "orders" AS "t0" GROUP BY "t0"."status"`, sql)
	})
}

func TestCompile_CountPlan(t *testing.T) {
	plan := ordersPlan(queryir.Compare{Left: queryir.Col("t0", "status"), Op: queryir.OpEq, Value: ir.String("PAID")})
	plan.Select = []queryir.Projection{{Expr: queryir.Aggregate{Func: queryir.AggCount}, Label: "count"}}

	sql, _, err := NewCompiler(SQLite).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) AS "count" FROM "orders" AS "t0" WHERE "t0"."status" = ?`, sql)
}

func TestCompile_Paging(t *testing.T) {
	plan := ordersPlan(nil)
	plan.Limit, plan.Offset = 10, 20

	sql, _, err := NewCompiler(SQLite).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, selectOrders+` ORDER BY "t0"."id" ASC LIMIT 10 OFFSET 20`, sql)
}

func TestCompile_Errors(t *testing.T) {
	c := NewCompiler(SQLite)

	_, _, err := c.Compile(nil)
	assert.Error(t, err)

	_, _, err = c.Compile(ordersPlan(queryir.InList{Expr: queryir.Col("t0", "note")}))
	assert.ErrorContains(t, err, "empty IN list")

	_, _, err = c.Compile(ordersPlan(queryir.Compare{Left: queryir.Col("t0", "total"), Op: queryir.OpGt, Value: ir.Null{}}))
	assert.ErrorContains(t, err, "use IsNull")

	plan := ordersPlan(nil)
	plan.Offset = 5
	_, _, err = c.Compile(plan)
	assert.ErrorContains(t, err, "requires a limit")

	plan = ordersPlan(nil)
	plan.OrderBy = []queryir.Order{{Expr: queryir.Cast{Expr: queryir.Col("t0", "total"), Type: "decimal"}}}
	_, _, err = c.Compile(plan)
	assert.ErrorContains(t, err, "unsupported cast type")

	plan = ordersPlan(nil)
	plan.Select = []queryir.Projection{{Expr: queryir.Aggregate{Func: queryir.AggSum}, Label: "x"}}
	_, _, err = c.Compile(plan)
	assert.ErrorContains(t, err, "requires an argument")
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite": SQLite, "SQLite3": SQLite, "postgres": Postgres, "postgresql": Postgres, "pgx": Postgres} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestStatement(t *testing.T) {
	assert.Equal(t, "SELECT 1", Statement("SELECT 1", nil))
	assert.Equal(t, "x = ? AND y = ? -- [a, 2]", Statement("x = ? AND y = ?", []any{"a", int64(2)}))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"orders"`, Quote("orders"))
	assert.Equal(t, `"customer.name"`, Quote("customer.name"))
	assert.Equal(t, `"a""b"`, Quote(`a"b`))
}
