package engine

import (
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
)

// Page is the result of one Find.
type Page[T any] struct {
	// PageNumber and PageSize are zero for unpaginated requests.
	PageNumber int `json:"pageNumber,omitempty"`
	PageSize   int `json:"pageSize,omitempty"`

	TotalItems int64 `json:"totalItems"`

	// TotalPages is zero for unpaginated requests.
	TotalPages int64 `json:"totalPages,omitempty"`

	Content []T `json:"content"`

	// DistinctValues maps column key -> value text -> label.
	DistinctValues map[string]map[string]string `json:"distinctValues,omitempty"`

	// MetaValues maps column key -> label text -> aggregate.
	MetaValues map[string]map[string]ir.Value `json:"metaValues,omitempty"`

	Warnings  []string `json:"warnings,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// Paginated reports whether the page was cut from a larger result.
func (p *Page[T]) Paginated() bool {
	return p.PageSize > 0
}

// TotalPages returns ceil(total/size), or 0 when size is not positive.
func TotalPages(total int64, size int) int64 {
	if size <= 0 {
		return 0
	}
	n := int64(size)
	return (total + n - 1) / n
}

// MapPage converts the content of p with fn, keeping everything else.
func MapPage[T any](p *Page[queryir.Row], fn func(queryir.Row) (T, error)) (*Page[T], error) {
	content := make([]T, 0, len(p.Content))
	for _, row := range p.Content {
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		content = append(content, v)
	}
	return &Page[T]{
		PageNumber:     p.PageNumber,
		PageSize:       p.PageSize,
		TotalItems:     p.TotalItems,
		TotalPages:     p.TotalPages,
		Content:        content,
		DistinctValues: p.DistinctValues,
		MetaValues:     p.MetaValues,
		Warnings:       p.Warnings,
		RequestID:      p.RequestID,
	}, nil
}

// Describe renders p as a map ir.MarshalCanonical accepts. Paging fields
// appear only on paginated pages, and distinct, meta and warnings only when
// present.
func Describe(p *Page[queryir.Row]) map[string]any {
	content := make([]any, len(p.Content))
	for i, row := range p.Content {
		content[i] = map[string]ir.Value(row)
	}
	out := map[string]any{
		"content":    content,
		"totalItems": p.TotalItems,
	}
	if p.Paginated() {
		out["pageNumber"] = p.PageNumber
		out["pageSize"] = p.PageSize
		out["totalPages"] = p.TotalPages
	}
	if p.DistinctValues != nil {
		distinct := make(map[string]any, len(p.DistinctValues))
		for k, v := range p.DistinctValues {
			distinct[k] = v
		}
		out["distinctValues"] = distinct
	}
	if p.MetaValues != nil {
		meta := make(map[string]any, len(p.MetaValues))
		for k, v := range p.MetaValues {
			meta[k] = v
		}
		out["metaValues"] = meta
	}
	if len(p.Warnings) > 0 {
		out["warnings"] = p.Warnings
	}
	return out
}
