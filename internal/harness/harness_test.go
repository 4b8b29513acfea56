package harness

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
)

func TestRun_Scenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failures: %v", result.Errors)
			assert.Len(t, result.Steps, len(s.Requests))
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/in_stock_products.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
}

func TestRun_RecordsFailedExpectations(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/in_stock_products.yaml")
	require.NoError(t, err)

	total := int64(4)
	s.Requests[0].Expect.Total = &total
	s.Requests[0].Expect.IDs = []int64{1, 5}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "requests[0] in_stock: ids: expected [1 5], got [5 1]")
	assert.Contains(t, result.Errors[1], "total: expected 4, got 3")
}

func TestRun_BadSchema(t *testing.T) {
	s := &Scenario{Name: "x", Schema: "testdata/scenarios", Requests: []RequestStep{{Name: "a", Root: "Product"}}}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestRun_BadConfig(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/in_stock_products.yaml")
	require.NoError(t, err)
	s.Config.DistinctStrategy = "hash"

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func page(rows ...queryir.Row) *engine.Page[queryir.Row] {
	return &engine.Page[queryir.Row]{Content: rows, TotalItems: int64(len(rows))}
}

func TestCheckStep(t *testing.T) {
	one := 1
	rows := page(
		queryir.Row{"id": ir.Int(1), "sku": ir.String("A")},
		queryir.Row{"id": ir.Int(2), "sku": ir.String("B")},
	)
	rows.MetaValues = map[string]map[string]ir.Value{
		"total": {"north": ir.Float(10), "": ir.Null{}},
	}

	testCases := []struct {
		name   string
		expect *Expect
		result StepResult
		want   []string
	}{
		{
			name:   "no expectations on success",
			result: StepResult{Page: rows},
		},
		{
			name:   "unexpected error",
			result: StepResult{Err: ir.NewPathNotFoundError("Order", "x", "no such field")},
			want:   []string{"unexpected error: "},
		},
		{
			name:   "expected error code",
			expect: &Expect{Error: "PATH_NOT_FOUND"},
			result: StepResult{Err: ir.NewPathNotFoundError("Order", "x", "no such field")},
		},
		{
			name:   "wrong error code",
			expect: &Expect{Error: "PATH_NOT_ALLOWED"},
			result: StepResult{Err: errors.New("boom")},
			want:   []string{`error: expected PATH_NOT_ALLOWED, got ""`},
		},
		{
			name:   "missing error",
			expect: &Expect{Error: "PATH_NOT_FOUND"},
			result: StepResult{Page: rows},
			want:   []string{"error: expected PATH_NOT_FOUND, got success"},
		},
		{
			name:   "ids by custom key",
			expect: &Expect{IDs: []int64{1, 2}, Key: "id", Warnings: &[]int{0}[0]},
			result: StepResult{Page: rows},
		},
		{
			name:   "non-integer key",
			expect: &Expect{IDs: []int64{1}, Key: "sku"},
			result: StepResult{Page: rows},
			want:   []string{`ids: expected integer "sku" column, got string`},
		},
		{
			name:   "warnings count",
			expect: &Expect{Warnings: &one},
			result: StepResult{Page: rows},
			want:   []string{"warnings: expected 1, got 0"},
		},
		{
			name:   "meta matches numerically",
			expect: &Expect{Meta: map[string]map[string]any{"total": {"north": 10, "": nil}}},
			result: StepResult{Page: rows},
		},
		{
			name:   "meta differences",
			expect: &Expect{Meta: map[string]map[string]any{"total": {"north": 11}, "count": {"x": 1}}},
			result: StepResult{Page: rows},
			want: []string{
				"meta[count]: expected map[x:1], got no such column",
				`meta[total]: expected map[north:11], got "north" = 10, want 11; unexpected "" = `,
			},
		},
		{
			name:   "distinct absent",
			expect: &Expect{Distinct: map[string]map[string]string{"k": {"a": "a"}}},
			result: StepResult{Page: rows},
			want:   []string{"distinct: expected map[k:map[a:a]], got map[]"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckStep(RequestStep{Name: "step", Expect: tc.expect}, tc.result)
			require.Len(t, got, len(tc.want), "got %v", got)
			for i, w := range tc.want {
				assert.Contains(t, got[i], w)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	result := &Result{Steps: []StepResult{
		{Name: "ok", Page: page(queryir.Row{"id": ir.Int(1)})},
		{Name: "bad", Err: ir.NewDuplicateSortFieldError("price")},
		{Name: "plain", Err: errors.New("boom")},
	}}
	result.Steps[0].Page.Warnings = []string{"w"}

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"requests":[{"content":[{"id":1}],"name":"ok","totalItems":1,"warnings":["w"]},{"error":"DUPLICATE_SORT_FIELD","name":"bad"},{"error":"ERROR","name":"plain"}],"scenario":"snap"}`,
		string(data))
}
