package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/querykit/internal/aggregate"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/planner"
	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/queryir"
)

// Executor runs plans against a backing store. store.Store and
// store.PGStore implement it.
type Executor interface {
	// Execute returns one Row per result row keyed by projection label.
	Execute(ctx context.Context, p *queryir.Plan) ([]queryir.Row, error)

	// Count runs a single-projection plan and returns its scalar.
	Count(ctx context.Context, p *queryir.Plan) (int64, error)
}

// Engine turns requests into pages.
//
// Thread-safety model:
//   - Find(): safe from any goroutine
//   - the planner and its resolver cache are shared across requests
//   - concurrency of the executor is the executor's concern
type Engine struct {
	planner *planner.Planner
	exec    Executor
	ids     RequestIDGenerator
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; every Find logs under a "request" attribute.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics reports plans, executions and latency to m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRequestIDs replaces the UUIDv7 request id generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// New creates an Engine planning with p and executing through exec.
func New(p *planner.Planner, exec Executor, opts ...Option) *Engine {
	e := &Engine{
		planner: p,
		exec:    exec,
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Planner returns the planner requests are built with.
func (e *Engine) Planner() *planner.Planner {
	return e.planner
}

// Find plans and executes req.
//
// Planning errors (unknown paths, bad values on non-permissive paths,
// duplicate aggregate keys) are returned as is. Executor failures are
// wrapped in a StageError naming the failing sub-query.
//
// For paginated requests TotalItems comes from the count plan; otherwise
// it is the number of rows returned.
func (e *Engine) Find(ctx context.Context, req *query.Request) (*Page[queryir.Row], error) {
	id := e.ids.Generate()
	logger := e.logger.With("request", id, "root", req.Root)

	if fp, err := ir.Fingerprint(ir.DomainRequest, req.Describe()); err == nil {
		logger = logger.With("fingerprint", fp[:16])
	}

	plans, err := e.planner.Build(req)
	if err != nil {
		logger.Debug("planning failed", "error", err)
		return nil, err
	}
	distinct, err := aggregate.DistinctColumns(e.planner, req)
	if err != nil {
		logger.Debug("planning distinct columns failed", "error", err)
		return nil, err
	}
	meta, err := aggregate.MetaColumns(e.planner, req)
	if err != nil {
		logger.Debug("planning meta columns failed", "error", err)
		return nil, err
	}
	warnings := mergeWarnings(plans.Warnings, distinct, meta)
	e.planned(warnings)
	for _, w := range warnings {
		logger.Warn("filter value kept as text", "warning", w)
	}

	page := &Page[queryir.Row]{
		RequestID: id,
		Warnings:  warnings,
	}

	rows, err := observe(e, ctx, StagePrimary, func(ctx context.Context) ([]queryir.Row, error) {
		return e.exec.Execute(ctx, plans.Primary)
	})
	if err != nil {
		return nil, e.fail(logger, id, StagePrimary, "", err)
	}
	plans.Primary.StripHidden(rows)
	page.Content = rows

	if req.Paginated() {
		page.PageNumber = max(req.PageNumber, 1)
		page.PageSize = req.PageSize
		total, err := observe(e, ctx, StageCount, func(ctx context.Context) (int64, error) {
			return e.exec.Count(ctx, plans.Count)
		})
		if err != nil {
			return nil, e.fail(logger, id, StageCount, "", err)
		}
		page.TotalItems = total
		page.TotalPages = TotalPages(total, req.PageSize)
	} else {
		page.TotalItems = int64(len(rows))
	}

	if len(distinct) > 0 {
		page.DistinctValues = make(map[string]map[string]string, len(distinct))
	}
	for _, col := range distinct {
		rows, err := observe(e, ctx, StageDistinct, func(ctx context.Context) ([]queryir.Row, error) {
			return e.exec.Execute(ctx, col.Plan)
		})
		if err != nil {
			return nil, e.fail(logger, id, StageDistinct, col.Key, err)
		}
		page.DistinctValues[col.Key] = aggregate.FoldDistinct(rows)
	}

	if len(meta) > 0 {
		page.MetaValues = make(map[string]map[string]ir.Value, len(meta))
	}
	for _, col := range meta {
		rows, err := observe(e, ctx, StageMeta, func(ctx context.Context) ([]queryir.Row, error) {
			return e.exec.Execute(ctx, col.Plan)
		})
		if err != nil {
			return nil, e.fail(logger, id, StageMeta, col.Key, err)
		}
		merged, err := aggregate.MergeMeta(col.Expr.Function, rows)
		if err != nil {
			return nil, e.fail(logger, id, StageMeta, col.Key, err)
		}
		page.MetaValues[col.Key] = merged
	}

	logger.Debug("request complete",
		"rows", len(page.Content),
		"total", page.TotalItems,
		"distinct", len(distinct),
		"meta", len(meta),
	)
	return page, nil
}

// FindAs runs Find and maps each content row with fn.
func FindAs[T any](ctx context.Context, e *Engine, req *query.Request, fn func(queryir.Row) (T, error)) (*Page[T], error) {
	page, err := e.Find(ctx, req)
	if err != nil {
		return nil, err
	}
	return MapPage(page, fn)
}

// mergeWarnings collects primary and aggregate plan warnings in order.
// Aggregate plans repeat the request filters, so duplicates are dropped.
func mergeWarnings(primary []string, cols ...[]aggregate.Column) []string {
	out := append([]string(nil), primary...)
	seen := make(map[string]bool, len(primary))
	for _, w := range primary {
		seen[w] = true
	}
	for _, group := range cols {
		for _, col := range group {
			for _, w := range col.Plan.Warnings {
				if !seen[w] {
					seen[w] = true
					out = append(out, w)
				}
			}
		}
	}
	return out
}

func (e *Engine) planned(warnings []string) {
	if e.metrics == nil {
		return
	}
	e.metrics.Plans.Inc()
	e.metrics.Warnings.Add(float64(len(warnings)))
}

func (e *Engine) fail(logger *slog.Logger, id string, stage Stage, key string, err error) error {
	logger.Error("query failed", "stage", string(stage), "key", key, "error", err)
	if e.metrics != nil {
		e.metrics.Failures.WithLabelValues(string(stage)).Inc()
	}
	return &StageError{Stage: stage, Key: key, RequestID: id, Err: err}
}

// observe runs fn and records its latency under stage.
func observe[T any](e *Engine, ctx context.Context, stage Stage, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	if e.metrics != nil {
		e.metrics.Queries.WithLabelValues(string(stage)).Inc()
		e.metrics.Latency.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
	return out, err
}
