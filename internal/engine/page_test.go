package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
)

func TestDescribe_Unpaginated(t *testing.T) {
	got := Describe(&Page[queryir.Row]{
		TotalItems: 1,
		Content:    []queryir.Row{{"id": ir.Int(1), "note": ir.Null{}}},
		RequestID:  "ignored",
	})

	assert.Equal(t, map[string]any{
		"content":    []any{map[string]ir.Value{"id": ir.Int(1), "note": ir.Null{}}},
		"totalItems": int64(1),
	}, got)
}

func TestDescribe_Paginated(t *testing.T) {
	got := Describe(&Page[queryir.Row]{
		PageNumber:     2,
		PageSize:       10,
		TotalItems:     11,
		TotalPages:     2,
		Content:        []queryir.Row{},
		DistinctValues: map[string]map[string]string{"Order.status.distinct": {"PAID": "PAID"}},
		MetaValues:     map[string]map[string]ir.Value{"Order.total.sum": {"value": ir.Float(1.5)}},
		Warnings:       []string{"dropped"},
	})

	assert.Equal(t, 2, got["pageNumber"])
	assert.Equal(t, 10, got["pageSize"])
	assert.Equal(t, int64(2), got["totalPages"])
	assert.Equal(t, []any{}, got["content"])
	assert.Equal(t, map[string]any{"Order.status.distinct": map[string]string{"PAID": "PAID"}}, got["distinctValues"])
	assert.Equal(t, map[string]any{"Order.total.sum": map[string]ir.Value{"value": ir.Float(1.5)}}, got["metaValues"])
	assert.Equal(t, []string{"dropped"}, got["warnings"])

	data, err := ir.MarshalCanonical(got)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"warnings":["dropped"]`)
}
