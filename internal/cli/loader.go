package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/querykit/internal/compiler"
	"github.com/roach88/querykit/internal/config"
	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/planner"
	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/schema"
	"github.com/roach88/querykit/internal/store"
)

// loadConfig reads the config file named by --config, or the working
// directory default, and applies the schema flag on top.
func loadConfig(opts *RootOptions, schemaDir string) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if schemaDir != "" {
		cfg.SchemaDir = schemaDir
	}
	if cfg.SchemaDir == "" {
		return config.Config{}, NewExitError(ExitCommandError, "no schema: pass --schema or set schema.dir")
	}
	return cfg, nil
}

// loadSchema compiles the CUE schema at path into a resolver.
func loadSchema(path string) (*compiler.Compiled, *schema.Resolver, error) {
	compiled, err := compiler.Load(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	return compiled, schema.NewResolver(compiled.Schema, compiled.Policies), nil
}

// schemaErrors flattens a compiler.Load error into validation errors.
// Load errors and CUE compile errors are reported with field "load" and
// "cue" respectively; validation errors pass through.
func schemaErrors(err error) []compiler.ValidationError {
	var out []compiler.ValidationError

	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return []compiler.ValidationError{{Field: "load", Message: loadErr.Message, Code: loadErr.Code}}
	}

	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}

		var verr compiler.ValidationError
		var cerr *compiler.CompileError
		switch {
		case errors.As(err, &verr):
			out = append(out, verr)
		case errors.As(err, &cerr):
			out = append(out, compiler.ValidationError{Field: cerr.Field, Message: cerr.Error(), Code: compiler.ErrCodeGeneric})
		default:
			out = append(out, compiler.ValidationError{Field: "schema", Message: err.Error(), Code: compiler.ErrCodeGeneric})
		}
	}
	walk(err)
	return out
}

// executor is a store the CLI can seed and query.
type executor interface {
	engine.Executor
	ApplySchema(ctx context.Context, sch *schema.Schema) error
	Seed(ctx context.Context, tables ...store.Table) error
	Close() error
}

// openStore opens the database selected by cfg.
func openStore(ctx context.Context, db config.Database, logger *slog.Logger) (executor, error) {
	switch db.Dialect {
	case querysql.Postgres:
		st, err := store.OpenPostgres(ctx, db.DSN, store.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	default:
		st, err := store.Open(db.Path, store.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	}
}

// session is everything a request-running command needs.
type session struct {
	cfg      config.Config
	compiled *compiler.Compiled
	planner  *planner.Planner
	store    executor
	engine   *engine.Engine
}

// openSession loads config and schema and opens the database. The caller
// must Close the session.
func openSession(ctx context.Context, cfg config.Config, opts ...engine.Option) (*session, error) {
	compiled, resolver, err := loadSchema(cfg.SchemaDir)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path == ":memory:" && cfg.Database.Dialect != querysql.Postgres {
		// A private database starts empty; give it the tables at least.
		if err := st.ApplySchema(ctx, compiled.Schema); err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to create tables", err)
		}
	}

	p := planner.New(resolver, cfg.Query, planner.WithLogger(logger))
	return &session{
		cfg:      cfg,
		compiled: compiled,
		planner:  p,
		store:    st,
		engine:   engine.New(p, st, append([]engine.Option{engine.WithLogger(logger)}, opts...)...),
	}, nil
}

func (s *session) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
