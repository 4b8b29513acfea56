// Package query holds the request model the planner consumes and the
// builder callers use to assemble it.
package query

import (
	"fmt"
	"strings"

	"github.com/roach88/querykit/internal/filter"
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// String returns "asc" or "desc".
func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts "asc" and "desc" in any case; "" is Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return Asc, fmt.Errorf("unknown sort direction %q", s)
	}
}

// SortSpec orders the result by one field path.
type SortSpec struct {
	Path      string
	Direction Direction

	// Cast, when set, orders by the value cast to integer, real or text.
	Cast string
}

// ParseSort parses "path", "path:desc" or "path:desc:integer".
func ParseSort(s string) (SortSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || parts[0] == "" {
		return SortSpec{}, fmt.Errorf("invalid sort %q: want path[:asc|desc[:cast]]", s)
	}
	spec := SortSpec{Path: parts[0]}
	if len(parts) > 1 {
		d, err := ParseDirection(parts[1])
		if err != nil {
			return SortSpec{}, err
		}
		spec.Direction = d
	}
	if len(parts) > 2 {
		spec.Cast = parts[2]
	}
	return spec, nil
}

// Search is a free-text search across paths. Empty Paths means the root
// entity's declared search fields.
type Search struct {
	Term  string
	Paths []string
}

// Request is one fully assembled query. Build it with a Builder; the
// planner never modifies it.
type Request struct {
	Root string

	// PageSize 0 means unpaginated. PageNumber is 1-based and ignored
	// without a PageSize.
	PageSize   int
	PageNumber int

	Filter *filter.Compound
	Search Search
	Sorts  []SortSpec

	Distinct []AggregateExpression
	Meta     []AggregateExpression

	// FetchPaths are relation paths whose columns are projected next to
	// the root's, labelled "path.field".
	FetchPaths []string

	// GraphPaths are fetch hints; single-valued ones are fetched.
	GraphPaths []string

	DistinctDataset bool
	ReadOnly        bool
	AllowDeepDive   bool
}

// Paginated reports whether the request asks for one page of results.
func (r *Request) Paginated() bool {
	return r.PageSize > 0
}

// Offset is the number of rows skipped before the page.
func (r *Request) Offset() int {
	if !r.Paginated() || r.PageNumber <= 1 {
		return 0
	}
	return (r.PageNumber - 1) * r.PageSize
}

// Describe returns a JSON-ready description of the request, suitable for
// ir.MarshalCanonical and ir.Fingerprint.
func (r *Request) Describe() map[string]any {
	sorts := make([]any, len(r.Sorts))
	for i, s := range r.Sorts {
		sort := map[string]any{"path": s.Path, "direction": s.Direction.String()}
		if s.Cast != "" {
			sort["cast"] = s.Cast
		}
		sorts[i] = sort
	}
	aggs := func(exprs []AggregateExpression) []any {
		out := make([]any, len(exprs))
		for i, e := range exprs {
			out[i] = map[string]any{
				"value":    e.ValuePath,
				"function": e.Function.String(),
				"labels":   append([]string{}, e.LabelPaths...),
				"distinct": e.Distinct,
				"name":     e.Name,
			}
		}
		return out
	}
	return map[string]any{
		"root":            r.Root,
		"pageSize":        r.PageSize,
		"pageNumber":      r.PageNumber,
		"filter":          r.Filter.Describe(),
		"search":          map[string]any{"term": r.Search.Term, "paths": append([]string{}, r.Search.Paths...)},
		"sorts":           sorts,
		"distinct":        aggs(r.Distinct),
		"meta":            aggs(r.Meta),
		"fetch":           append([]string{}, r.FetchPaths...),
		"graph":           append([]string{}, r.GraphPaths...),
		"distinctDataset": r.DistinctDataset,
		"readOnly":        r.ReadOnly,
	}
}
