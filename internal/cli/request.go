package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/querykit/internal/query"
)

// RequestFlags are the request-building flags shared by plan and query.
type RequestFlags struct {
	Schema      string
	Root        string
	Filter      []string
	OrFilter    []string
	Search      string
	SearchPaths []string
	Sort        []string
	Page        int
	Size        int
	Fetch       []string
	Distinct    []string
	Meta        []string
	Dataset     bool
}

func (f *RequestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.Schema, "schema", "", "CUE schema directory or file (default schema.dir from config)")
	flags.StringVar(&f.Root, "root", "", "root entity (required)")
	flags.StringArrayVarP(&f.Filter, "filter", "f", nil, "filter term, ANDed (repeatable)")
	flags.StringArrayVar(&f.OrFilter, "or-filter", nil, "filter term ORed with the filters before it (repeatable)")
	flags.StringVarP(&f.Search, "search", "s", "", "free-text search term")
	flags.StringSliceVar(&f.SearchPaths, "search-path", nil, "paths to search (default: the root's search fields)")
	flags.StringArrayVar(&f.Sort, "sort", nil, "sort as path[:asc|desc[:cast]] (repeatable)")
	flags.IntVar(&f.Page, "page", 0, "page number, 1-based")
	flags.IntVar(&f.Size, "size", 0, "page size; 0 returns all rows")
	flags.StringSliceVar(&f.Fetch, "fetch", nil, "relations to return with each row")
	flags.StringArrayVar(&f.Distinct, "distinct", nil, "distinct column as value[:labels][@name] (repeatable)")
	flags.StringArrayVar(&f.Meta, "meta", nil, "meta column as value:function[:labels][@name] (repeatable)")
	flags.BoolVar(&f.Dataset, "distinct-dataset", false, "distinct values over the whole table, ignoring filters")
	_ = cmd.MarkFlagRequired("root")
}

// build assembles the request with the query Builder.
func (f *RequestFlags) build(cfg query.Config) (*query.Request, error) {
	b := query.New(cfg).Init(f.Root)
	if len(f.Filter) > 0 {
		b.AddAndFilter(f.Filter...)
	}
	for _, term := range f.OrFilter {
		b.AddOrFilter(term)
	}
	if f.Search != "" {
		b.Search(f.Search, f.SearchPaths...)
	}
	for _, s := range f.Sort {
		spec, err := query.ParseSort(s)
		if err != nil {
			return nil, err
		}
		b.AddSorting(spec)
	}
	for _, d := range f.Distinct {
		expr, err := query.ParseAggregate(d)
		if err != nil {
			return nil, err
		}
		b.AddDistinct(expr)
	}
	for _, m := range f.Meta {
		expr, err := query.ParseAggregate(m)
		if err != nil {
			return nil, err
		}
		b.AddMeta(expr)
	}
	if f.Page > 0 || f.Size > 0 {
		b.Page(f.Page, f.Size)
	}
	if len(f.Fetch) > 0 {
		b.Fetch(f.Fetch...)
	}
	if f.Dataset {
		b.DistinctDataset()
	}
	return b.Build()
}
