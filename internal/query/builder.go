package query

import (
	"errors"
	"fmt"

	"github.com/roach88/querykit/internal/filter"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/schema"
)

// Builder assembles a Request. Methods chain; the first error is kept and
// returned by Build:
//
//	req, err := query.New(cfg).
//		Init("Order").
//		AddAndFilter("status:IN:PAID,NEW").
//		AddOrFilter("customer.name:EQ:Alice").
//		AddSorting(query.SortSpec{Path: "total", Direction: query.Desc}).
//		Page(1, 20).
//		Build()
type Builder struct {
	cfg      Config
	resolver *schema.Resolver
	req      *Request
	sorted   map[string]bool
	err      error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithResolver validates filter paths while parsing.
func WithResolver(r *schema.Resolver) BuilderOption {
	return func(b *Builder) { b.resolver = r }
}

// New creates a builder with cfg.
func New(cfg Config, opts ...BuilderOption) *Builder {
	b := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Init starts a new request for root, discarding any previous state.
func (b *Builder) Init(root string) *Builder {
	b.req = &Request{
		Root:          root,
		Filter:        filter.NewAnd(),
		ReadOnly:      b.cfg.ReadOnly,
		AllowDeepDive: b.cfg.AllowDeepDive,
	}
	b.sorted = map[string]bool{}
	b.err = nil
	return b
}

func (b *Builder) ready() bool {
	if b.req == nil && b.err == nil {
		b.err = errors.New("query builder: Init must be called first")
	}
	return b.err == nil
}

func (b *Builder) parser() *filter.Parser {
	opts := []filter.Option{filter.WithSyntax(b.cfg.Syntax)}
	if b.resolver != nil {
		opts = append(opts, filter.WithResolver(b.resolver, b.req.Root, b.req.AllowDeepDive))
	}
	return filter.NewParser(opts...)
}

// AddAndFilter parses terms and ANDs them onto the filter tree.
func (b *Builder) AddAndFilter(terms ...string) *Builder {
	return b.addParsed(filter.And, terms)
}

// AddOrFilter parses terms (joined with AND among themselves) and ORs the
// result with the filter tree built so far.
func (b *Builder) AddOrFilter(terms ...string) *Builder {
	return b.addParsed(filter.Or, terms)
}

func (b *Builder) addParsed(logic filter.LogicOperator, terms []string) *Builder {
	if !b.ready() {
		return b
	}
	tree, err := b.parser().Parse(terms...)
	if err != nil {
		b.err = err
		return b
	}
	return b.AddCompound(logic, tree)
}

// AddCompound combines an already built tree with the filter tree.
// Ownership of tree moves to the builder.
func (b *Builder) AddCompound(logic filter.LogicOperator, tree *filter.Compound) *Builder {
	if !b.ready() {
		return b
	}
	b.req.Filter = filter.Combine(logic, b.req.Filter, tree)
	return b
}

// AddSorting appends sorts. Sorting twice on one path is an error.
func (b *Builder) AddSorting(sorts ...SortSpec) *Builder {
	if !b.ready() {
		return b
	}
	for _, s := range sorts {
		if b.sorted[s.Path] {
			b.err = ir.NewDuplicateSortFieldError(s.Path)
			return b
		}
		b.sorted[s.Path] = true
		b.req.Sorts = append(b.req.Sorts, s)
	}
	return b
}

// AddDistinct requests the distinct values of a column.
func (b *Builder) AddDistinct(exprs ...AggregateExpression) *Builder {
	if !b.ready() {
		return b
	}
	b.req.Distinct = append(b.req.Distinct, exprs...)
	return b
}

// AddMeta requests aggregate values of a column.
func (b *Builder) AddMeta(exprs ...AggregateExpression) *Builder {
	if !b.ready() {
		return b
	}
	for _, e := range exprs {
		if e.Function == 0 {
			b.err = fmt.Errorf("meta column %q: aggregate function is required", e.ValuePath)
			return b
		}
	}
	b.req.Meta = append(b.req.Meta, exprs...)
	return b
}

// Search sets the free-text search.
func (b *Builder) Search(term string, paths ...string) *Builder {
	if !b.ready() {
		return b
	}
	b.req.Search = Search{Term: term, Paths: paths}
	return b
}

// Page selects a 1-based page. size 0 falls back to the configured
// default page size; with no default the request stays unpaginated.
func (b *Builder) Page(number, size int) *Builder {
	if !b.ready() {
		return b
	}
	if number < 0 || size < 0 {
		b.err = fmt.Errorf("page %d/size %d: must not be negative", number, size)
		return b
	}
	if size == 0 && number > 0 {
		size = b.cfg.DefaultPageSize
	}
	if b.cfg.MaxPageSize > 0 && size > b.cfg.MaxPageSize {
		size = b.cfg.MaxPageSize
	}
	if number == 0 && size > 0 {
		number = 1
	}
	b.req.PageNumber, b.req.PageSize = number, size
	return b
}

// Fetch adds relation paths whose columns are returned with each row.
func (b *Builder) Fetch(paths ...string) *Builder {
	if !b.ready() {
		return b
	}
	b.req.FetchPaths = append(b.req.FetchPaths, paths...)
	return b
}

// Graph adds fetch hints.
func (b *Builder) Graph(paths ...string) *Builder {
	if !b.ready() {
		return b
	}
	b.req.GraphPaths = append(b.req.GraphPaths, paths...)
	return b
}

// DistinctDataset forces duplicate removal on the primary query.
func (b *Builder) DistinctDataset() *Builder {
	if !b.ready() {
		return b
	}
	b.req.DistinctDataset = true
	return b
}

// ReadOnly overrides the configured read-only flag.
func (b *Builder) ReadOnly(readOnly bool) *Builder {
	if !b.ready() {
		return b
	}
	b.req.ReadOnly = readOnly
	return b
}

// Build returns the request, or the first error any step produced. The
// builder must be re-initialized before reuse.
func (b *Builder) Build() (*Request, error) {
	if !b.ready() {
		return nil, b.err
	}
	req := b.req
	b.req = nil
	return req, nil
}
