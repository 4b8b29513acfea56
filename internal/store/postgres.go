package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/schema"
)

// PGStore executes plans against PostgreSQL through a pgx pool.
type PGStore struct {
	pool     *pgxpool.Pool
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// OpenPostgres connects to the database at dsn and verifies the
// connection.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PGStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Minute * 30
	poolConfig.MaxConnIdleTime = time.Minute * 5
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Options are shared with the SQLite store; only the logger applies.
	cfg := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	return &PGStore{
		pool:     pool,
		compiler: querysql.NewCompiler(querysql.Postgres),
		logger:   cfg.logger,
	}, nil
}

// Close closes the pool.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Dialect reports the SQL dialect plans are compiled to.
func (s *PGStore) Dialect() querysql.Dialect {
	return querysql.Postgres
}

// ApplySchema creates the tables of sch if they do not exist.
func (s *PGStore) ApplySchema(ctx context.Context, sch *schema.Schema) error {
	stmts, err := DDL(sch, querysql.Postgres)
	if err != nil {
		return err
	}
	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

// Seed inserts tables in order inside one transaction.
func (s *PGStore) Seed(ctx context.Context, tables ...Table) error {
	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, t := range tables {
			for _, row := range t.Rows {
				query, args, err := insertStatement(t.Name, row, querysql.Postgres)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, query, args...); err != nil {
					return fmt.Errorf("seed %s: %w", t.Name, err)
				}
			}
		}
		return nil
	})
}

// Execute compiles and runs p.
func (s *PGStore) Execute(ctx context.Context, p *queryir.Plan) ([]queryir.Row, error) {
	query, args, err := s.compiler.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile plan: %w", err)
	}
	s.logger.Debug("executing statement", "sql", query, "args", len(args))

	opts := pgx.TxOptions{}
	if p.ReadOnly {
		opts.AccessMode = pgx.ReadOnly
	}

	out := []queryir.Row{}
	err = s.withTx(ctx, opts, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query %s: %w", p.Entity, err)
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		cols := make([]string, len(fields))
		for i, f := range fields {
			cols[i] = f.Name
		}

		for rows.Next() {
			raw, err := rows.Values()
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			for i, v := range raw {
				raw[i] = pgNative(v)
			}
			row, err := toRow(cols, raw)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count runs a count plan.
func (s *PGStore) Count(ctx context.Context, p *queryir.Plan) (int64, error) {
	rows, err := s.Execute(ctx, p)
	if err != nil {
		return 0, err
	}
	return singleCount(rows)
}

func (s *PGStore) withTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgNative converts pgx values without a plain Go counterpart. NUMERIC
// results of SUM and AVG become float64.
func pgNative(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
