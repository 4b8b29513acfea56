package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/schema"
)

// Store executes plans against a SQLite database.
type Store struct {
	db       *sql.DB
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for statement tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or opens a SQLite database at path. ":memory:" opens a
// private in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive and shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:       db,
		compiler: querysql.NewCompiler(querysql.SQLite),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect plans are compiled to.
func (s *Store) Dialect() querysql.Dialect {
	return querysql.SQLite
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// ApplySchema creates the tables of s if they do not exist.
func (s *Store) ApplySchema(ctx context.Context, sch *schema.Schema) error {
	stmts, err := DDL(sch, querysql.SQLite)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Seed inserts tables in order inside one transaction.
func (s *Store) Seed(ctx context.Context, tables ...Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		for _, row := range t.Rows {
			query, args, err := insertStatement(t.Name, row, querysql.SQLite)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("seed %s: %w", t.Name, err)
			}
		}
	}
	return tx.Commit()
}

// Execute compiles and runs p, returning one Row per result row keyed by
// projection label.
func (s *Store) Execute(ctx context.Context, p *queryir.Plan) ([]queryir.Row, error) {
	var out []queryir.Row
	err := s.read(ctx, p, func(rows *sql.Rows) error {
		var err error
		out, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count runs a count plan, which must yield exactly one row with one
// column.
func (s *Store) Count(ctx context.Context, p *queryir.Plan) (int64, error) {
	rows, err := s.Execute(ctx, p)
	if err != nil {
		return 0, err
	}
	return singleCount(rows)
}

// read runs p and hands the result set to fn. Read-only plans run in a
// read-only transaction.
func (s *Store) read(ctx context.Context, p *queryir.Plan, fn func(*sql.Rows) error) error {
	query, args, err := s.compiler.Compile(p)
	if err != nil {
		return fmt.Errorf("compile plan: %w", err)
	}
	s.logger.Debug("executing statement", "sql", query, "args", len(args))

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: p.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", p.Entity, err)
	}
	defer rows.Close()

	if err := fn(rows); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", p.Entity, err)
	}
	return tx.Commit()
}

func scanRows(rows *sql.Rows) ([]queryir.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []queryir.Row{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row, err := toRow(cols, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func toRow(cols []string, raw []any) (queryir.Row, error) {
	row := make(queryir.Row, len(cols))
	for i, col := range cols {
		v, err := ir.FromAny(raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		row[col] = v
	}
	return row, nil
}

func singleCount(rows []queryir.Row) (int64, error) {
	if len(rows) != 1 || len(rows[0]) != 1 {
		cols := 0
		if len(rows) > 0 {
			cols = len(rows[0])
		}
		return 0, ir.NewMultiDimensionalCountError(len(rows), cols)
	}
	for _, v := range rows[0] {
		switch n := v.(type) {
		case ir.Int:
			return int64(n), nil
		case ir.Float:
			return int64(n), nil
		case ir.Null:
			return 0, nil
		default:
			return 0, fmt.Errorf("count returned %s, want a number", v.Kind())
		}
	}
	return 0, nil
}
