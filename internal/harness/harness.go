package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/querykit/internal/compiler"
	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/planner"
	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/schema"
	"github.com/roach88/querykit/internal/store"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the CUE schema
// 2. Create tables and seed rows
// 3. Run every request through the engine
// 4. Check each request's expectations
//
// An error is returned only when the scenario cannot be set up; request
// failures are recorded in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-provided context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	compiled, err := compiler.Load(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	cfg, err := scenario.Config.apply(query.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Suppress logs in scenario runs
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.ApplySchema(ctx, compiled.Schema); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	tables := make([]store.Table, len(scenario.Seed))
	for i, t := range scenario.Seed {
		tables[i] = store.Table{Name: t.Table, Rows: t.Rows}
	}
	if err := st.Seed(ctx, tables...); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	resolver := schema.NewResolver(compiled.Schema, compiled.Policies)
	p := planner.New(resolver, cfg, planner.WithLogger(logger))
	eng := engine.New(p, st,
		engine.WithLogger(logger),
		engine.WithRequestIDs(engine.NewFixedGenerator(requestIDs(scenario)...)),
	)

	result := NewResult()
	for i, step := range scenario.Requests {
		sr := StepResult{Name: step.Name}
		req, err := step.build(cfg)
		if err == nil {
			sr.Page, err = eng.Find(ctx, req)
		}
		sr.Err = err
		result.Steps = append(result.Steps, sr)

		for _, msg := range CheckStep(step, sr) {
			result.AddError(fmt.Sprintf("requests[%d] %s: %s", i, step.Name, msg))
		}
	}

	return result, nil
}

func requestIDs(s *Scenario) []string {
	ids := make([]string, len(s.Requests))
	for i, r := range s.Requests {
		ids[i] = s.Name + "/" + r.Name
	}
	return ids
}

func (c ConfigOverrides) apply(cfg query.Config) (query.Config, error) {
	if c.DefaultPageSize != nil {
		cfg.DefaultPageSize = *c.DefaultPageSize
	}
	if c.MaxPageSize != nil {
		cfg.MaxPageSize = *c.MaxPageSize
	}
	if c.DistinctStrategy != "" {
		cfg.DistinctStrategy = query.DistinctStrategy(strings.ToLower(c.DistinctStrategy))
	}
	if c.AllowDeepDive != nil {
		cfg.AllowDeepDive = *c.AllowDeepDive
	}
	return cfg, cfg.Validate()
}

// build assembles the step's request with the query Builder.
func (r RequestStep) build(cfg query.Config) (*query.Request, error) {
	b := query.New(cfg).Init(r.Root)
	if len(r.Filter) > 0 {
		b.AddAndFilter(r.Filter...)
	}
	if len(r.OrFilter) > 0 {
		b.AddOrFilter(r.OrFilter...)
	}
	if r.Search != "" {
		b.Search(r.Search, r.SearchPaths...)
	}
	for _, s := range r.Sort {
		spec, err := query.ParseSort(s)
		if err != nil {
			return nil, err
		}
		b.AddSorting(spec)
	}
	for _, d := range r.Distinct {
		expr, err := query.ParseAggregate(d)
		if err != nil {
			return nil, err
		}
		b.AddDistinct(expr)
	}
	for _, m := range r.Meta {
		expr, err := query.ParseAggregate(m)
		if err != nil {
			return nil, err
		}
		b.AddMeta(expr)
	}
	if r.Page > 0 || r.Size > 0 {
		b.Page(r.Page, r.Size)
	}
	if len(r.Fetch) > 0 {
		b.Fetch(r.Fetch...)
	}
	if r.DistinctDataset {
		b.DistinctDataset()
	}
	return b.Build()
}
