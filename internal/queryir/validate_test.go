package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/ir"
)

func validPlan() *Plan {
	return &Plan{
		Entity: "Order", Table: "orders", Alias: RootAlias, Key: "id",
		Joins: []Join{{
			Table: "customers", Alias: "t1", Path: "customer",
			On: ColumnCompare{Left: Col("t1", "id"), Op: OpEq, Right: Col("t0", "customer_id")},
		}},
		Where: And{Predicates: []Predicate{
			Compare{Left: Col("t1", "name"), Op: OpEq, Value: ir.String("Alice")},
			InList{Expr: Col("t0", "status"), Values: ir.Strings("PAID", "NEW")},
		}},
		Select:  []Projection{{Expr: Col("t0", "id"), Label: "id"}},
		OrderBy: []Order{{Expr: Cast{Expr: Col("t0", "number"), Type: CastText}}},
	}
}

func TestValidate_ValidPlan(t *testing.T) {
	result := Validate(validPlan())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
	assert.NoError(t, result.Err())
}

func TestValidate_CorrelatedSubquerySeesOuterAliases(t *testing.T) {
	p := validPlan()
	sub := &Plan{
		Entity: "OrderLine", Table: "order_lines", Alias: "s1",
		Where:  ColumnCompare{Left: Col("s1", "order_id"), Op: OpEq, Right: Col("t0", "id")},
		Select: []Projection{{Expr: Aggregate{Func: AggCount}, Label: "n"}},
	}
	p.Where = And{Predicates: []Predicate{
		Exists{Query: sub, Negate: true},
		CountCompare{Query: sub, Op: OpGt, Value: 0},
	}}

	result := Validate(p)
	assert.True(t, result.Valid, "%v", result.Problems)
}

func TestValidate_Problems(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(p *Plan)
		want   string
	}{
		{
			name: "undefined alias",
			mutate: func(p *Plan) {
				p.Where = Compare{Left: Col("t9", "x"), Op: OpEq, Value: ir.Int(1)}
			},
			want: `undefined alias "t9"`,
		},
		{
			name: "alias used before its join",
			mutate: func(p *Plan) {
				p.Joins[0].On = ColumnCompare{Left: Col("t2", "id"), Op: OpEq, Right: Col("t0", "id")}
				p.Joins = append(p.Joins, Join{Table: "tags", Alias: "t2", On: Const{Value: true}})
			},
			want: `undefined alias "t2"`,
		},
		{
			name: "duplicate alias",
			mutate: func(p *Plan) {
				p.Joins = append(p.Joins, Join{Table: "tags", Alias: "t1", Path: "tags", On: Const{Value: true}})
			},
			want: `duplicate alias "t1"`,
		},
		{
			name: "join without condition",
			mutate: func(p *Plan) {
				p.Joins[0].On = nil
			},
			want: "has no condition",
		},
		{
			name: "empty in list",
			mutate: func(p *Plan) {
				p.Where = InList{Expr: Col("t0", "status")}
			},
			want: "empty IN list",
		},
		{
			name: "nil comparison value",
			mutate: func(p *Plan) {
				p.Where = Compare{Left: Col("t0", "status"), Op: OpEq}
			},
			want: "use IsNull",
		},
		{
			name: "count subquery with two projections",
			mutate: func(p *Plan) {
				p.Where = CountCompare{Op: OpEq, Value: 0, Query: &Plan{
					Table: "tags", Alias: "s1",
					Select: []Projection{
						{Expr: Aggregate{Func: AggCount}, Label: "n"},
						{Expr: Col("s1", "name"), Label: "name"},
					},
				}}
			},
			want: "exactly one aggregate",
		},
		{
			name: "sum without argument",
			mutate: func(p *Plan) {
				p.Select = append(p.Select, Projection{Expr: Aggregate{Func: AggSum}, Label: "s"})
			},
			want: "SUM requires an argument",
		},
		{
			name: "negative limit",
			mutate: func(p *Plan) {
				p.Limit = -1
			},
			want: "negative offset or limit",
		},
		{
			name: "missing table",
			mutate: func(p *Plan) {
				p.Table = ""
			},
			want: "has no table",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPlan()
			tc.mutate(p)

			result := Validate(p)
			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Problems)
			assert.Contains(t, result.Err().Error(), tc.want)
		})
	}
}

func TestValidate_NilPlan(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"nil plan"}, result.Problems)
}
