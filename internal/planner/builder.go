package planner

import (
	"fmt"
	"log/slog"

	"github.com/roach88/querykit/internal/filter"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/schema"
)

// Planner turns requests into plans. It holds only immutable state and is
// safe for concurrent use; every build gets its own join graph.
type Planner struct {
	resolver *schema.Resolver
	cfg      query.Config
	logger   *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger for planning warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// New creates a planner over the resolver's schema.
func New(resolver *schema.Resolver, cfg query.Config, opts ...Option) *Planner {
	p := &Planner{resolver: resolver, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolver returns the resolver plans are built against.
func (p *Planner) Resolver() *schema.Resolver {
	return p.resolver
}

// Plans are the queries for one request.
type Plans struct {
	Primary *queryir.Plan

	// Count is nil for unpaginated requests.
	Count *queryir.Plan

	Warnings []string
}

// Scope is a plan filtered by a request, together with the join graph that
// produced it, so further columns can be added with shared joins.
type Scope struct {
	plan  *queryir.Plan
	preds *predicates
}

// Base resolves and compiles the request's filter tree and search into a
// plan with joins and predicate but no projections.
func (p *Planner) Base(req *query.Request) (*Scope, error) {
	root, ok := p.resolver.Schema().Entity(req.Root)
	if !ok {
		return nil, ir.NewPathNotFoundError(req.Root, "", fmt.Sprintf("unknown root entity %q", req.Root))
	}

	preds := &predicates{
		resolver: p.resolver,
		graph:    NewJoinGraph(p.resolver.Schema(), root),
		root:     root.Name,
		deep:     req.AllowDeepDive,
		logger:   p.logger,
	}

	where, err := preds.compileTree(req.Filter)
	if err != nil {
		return nil, err
	}
	search, err := preds.search(req.Search.Term, req.Search.Paths)
	if err != nil {
		return nil, err
	}

	s := &Scope{
		plan: &queryir.Plan{
			Entity:   root.Name,
			Table:    root.Table,
			Alias:    queryir.RootAlias,
			Key:      root.Key,
			Where:    queryir.AndOf(where, search),
			ReadOnly: req.ReadOnly,
		},
		preds: preds,
	}
	return s, nil
}

// Root returns the scope's root entity.
func (s *Scope) Root() *schema.Entity {
	return s.preds.graph.Root().Entity
}

// Column resolves path to a scalar column, joining as needed.
func (s *Scope) Column(path string) (queryir.Column, *schema.Resolution, error) {
	res, err := s.preds.resolver.Resolve(s.preds.root, path, s.preds.deep)
	if err != nil {
		return queryir.Column{}, nil, err
	}
	if !res.Field.IsScalar() {
		return queryir.Column{}, nil, ir.NewUnsupportedOperatorError(path, "select", "path must end in a column")
	}
	node := s.preds.graph.FindOrCreate(res.Hops)
	return node.Column(res.Field.Column), res, nil
}

// AndFilters compiles filters and ANDs them into the predicate.
func (s *Scope) AndFilters(filters []filter.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	pred, err := s.preds.compileTree(filter.NewAnd(filters...))
	if err != nil {
		return err
	}
	s.plan.Where = queryir.AndOf(s.plan.Where, pred)
	return nil
}

// HasToMany reports whether the joins so far can multiply root rows.
func (s *Scope) HasToMany() bool {
	return s.preds.graph.HasToMany()
}

// Plan returns a snapshot of the scope's plan with the joins created so
// far. Later changes to the scope do not affect it.
func (s *Scope) Plan() *queryir.Plan {
	out := s.plan.Clone()
	out.Joins = s.preds.graph.Joins()
	out.Warnings = append([]string(nil), s.preds.warnings...)
	return out
}

// Build produces the primary plan and, for paginated requests, the count
// plan.
func (p *Planner) Build(req *query.Request) (*Plans, error) {
	scope, err := p.Base(req)
	if err != nil {
		return nil, err
	}
	root := scope.Root()

	// The count runs over the filter joins only.
	var count *queryir.Plan
	if req.Paginated() {
		count = scope.Plan()
		countDistinct := count.HasToManyJoin() || req.DistinctDataset
		count.Select = []queryir.Projection{{
			Expr:  queryir.Aggregate{Func: queryir.AggCount, Arg: countArg(countDistinct, root), Distinct: countDistinct},
			Label: "count",
		}}
	}

	fetch, err := p.fetchPaths(scope, req)
	if err != nil {
		return nil, err
	}

	type sortTerm struct {
		order queryir.Order
		node  *JoinNode
	}
	var sorts []sortTerm
	for _, s := range req.Sorts {
		res, err := scope.preds.resolver.Resolve(root.Name, s.Path, req.AllowDeepDive)
		if err != nil {
			if ir.IsPathError(err) && p.resolver.IsPermissive(root.Name, s.Path) {
				p.logger.Warn("skipping sort on unresolvable path", "path", s.Path, "error", err)
				continue
			}
			return nil, err
		}
		if !res.Field.IsScalar() {
			return nil, ir.NewUnsupportedOperatorError(s.Path, "sort", "path must end in a column")
		}
		if res.FirstToMany() >= 0 {
			return nil, ir.NewUnsupportedOperatorError(s.Path, "sort", "sort paths must follow single-valued relations")
		}
		node := scope.preds.graph.FindOrCreate(res.Hops)
		var expr queryir.Expr = node.Column(res.Field.Column)
		if s.Cast != "" {
			ct, err := queryir.ParseCastType(s.Cast)
			if err != nil {
				return nil, fmt.Errorf("sort %s: %w", s.Path, err)
			}
			expr = queryir.Cast{Expr: expr, Type: ct}
		}
		sorts = append(sorts, sortTerm{
			order: queryir.Order{Expr: expr, Desc: s.Direction == query.Desc},
			node:  node,
		})
	}

	distinct := scope.HasToMany() || req.DistinctDataset
	if distinct {
		// Deduplicated rows can only be ordered by selected columns.
		for _, st := range sorts {
			if st.node.Parent != nil && !fetch.has(st.node.Path) {
				fetch.add(st.node.Path, st.node)
			}
		}
	}

	plan := scope.Plan()
	plan.Select = projections(scope.preds.graph.Root(), "")
	for _, path := range fetch.order {
		plan.Select = append(plan.Select, projections(fetch.nodes[path], path)...)
	}
	for _, st := range sorts {
		plan.OrderBy = append(plan.OrderBy, st.order)
	}

	if distinct {
		if p.cfg.DistinctStrategy == query.StrategyGroupBy {
			for _, proj := range plan.Select {
				plan.GroupBy = append(plan.GroupBy, proj.Expr)
			}
		} else {
			plan.Distinct = true
			// SELECT DISTINCT orders only by selected expressions.
			for i, o := range plan.OrderBy {
				if _, ok := o.Expr.(queryir.Column); ok {
					continue
				}
				plan.Select = append(plan.Select, queryir.Projection{
					Expr:   o.Expr,
					Label:  fmt.Sprintf("_sort%d", i),
					Hidden: true,
				})
			}
		}
	}

	if req.Paginated() {
		plan.Limit = int64(req.PageSize)
		plan.Offset = int64(req.Offset())
	}

	if result := queryir.Validate(plan); !result.Valid {
		return nil, result.Err()
	}
	if count != nil {
		if result := queryir.Validate(count); !result.Valid {
			return nil, result.Err()
		}
	}

	return &Plans{Primary: plan, Count: count, Warnings: plan.Warnings}, nil
}

func countArg(distinct bool, root *schema.Entity) queryir.Expr {
	if !distinct {
		return nil
	}
	return queryir.Col(queryir.RootAlias, root.Key)
}

// fetchSet keeps fetched relation nodes in request order.
type fetchSet struct {
	order []string
	nodes map[string]*JoinNode
}

func (f *fetchSet) has(path string) bool {
	_, ok := f.nodes[path]
	return ok
}

func (f *fetchSet) add(path string, n *JoinNode) {
	if f.has(path) {
		return
	}
	f.order = append(f.order, path)
	f.nodes[path] = n
}

// fetchPaths joins the request's fetch paths, and its graph paths that only
// follow single-valued relations.
func (p *Planner) fetchPaths(scope *Scope, req *query.Request) (*fetchSet, error) {
	set := &fetchSet{nodes: map[string]*JoinNode{}}
	root := scope.Root().Name

	add := func(path string, graph bool) error {
		res, err := p.resolver.Resolve(root, path, req.AllowDeepDive)
		if err != nil {
			if ir.IsPathError(err) && p.resolver.IsPermissive(root, path) {
				p.logger.Warn("skipping fetch of unresolvable path", "path", path, "error", err)
				return nil
			}
			return err
		}
		if !res.Field.IsRelation() {
			return ir.NewUnsupportedOperatorError(path, "fetch", "path must end in a relation")
		}
		hops := append(append([]schema.Hop(nil), res.Hops...), schema.Hop{
			Path:  res.CanonicalPath,
			From:  res.Owner,
			Field: res.Field,
			To:    relationTarget(p.resolver.Schema(), res.Field),
		})
		for _, h := range hops {
			if h.Field.Relation.Kind.ToMany() {
				if graph {
					p.logger.Debug("ignoring graph path through a to-many relation", "path", path)
					return nil
				}
				return ir.NewUnsupportedOperatorError(path, "fetch", "fetch paths must follow single-valued relations")
			}
		}
		set.add(res.CanonicalPath, scope.preds.graph.FindOrCreate(hops))
		return nil
	}

	for _, path := range req.FetchPaths {
		if err := add(path, false); err != nil {
			return nil, err
		}
	}
	for _, path := range req.GraphPaths {
		if err := add(path, true); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func relationTarget(s *schema.Schema, f *schema.Field) *schema.Entity {
	e, _ := s.Entity(f.Relation.Target)
	return e
}

// projections selects every scalar column of n's entity, labelled by field
// name under prefix.
func projections(n *JoinNode, prefix string) []queryir.Projection {
	var out []queryir.Projection
	for _, f := range n.Entity.Columns() {
		label := f.Name
		if prefix != "" {
			label = prefix + "." + f.Name
		}
		out = append(out, queryir.Projection{Expr: n.Column(f.Column), Label: label})
	}
	return out
}
