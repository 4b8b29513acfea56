package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querykit/internal/harness"
	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Schema   string
	Database string
	DSN      string
}

// SeedResult counts inserted rows per table.
type SeedResult struct {
	Tables map[string]int `json:"tables"`
	Rows   int            `json:"rows"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <data.yaml>",
		Short: "Create tables and insert rows from a YAML file",
		Long: `Create the schema's tables if they do not exist and insert rows.

The data file lists tables in insertion order, in the same shape as a
scenario's seed section:

  - table: customers
    rows:
      - {id: 1, name: Alice}
  - table: orders
    rows:
      - {id: 1, customer_id: 1, total: 100}

All rows are inserted in one transaction.

Example:
  querykit seed --schema ./schema --db shop.db data.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema directory or file (default schema.dir from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string")
	cmd.MarkFlagsMutuallyExclusive("db", "dsn")

	return cmd
}

// LoadSeedFile reads a list of seed tables. Unknown keys are rejected.
func LoadSeedFile(path string) ([]harness.SeedTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var tables []harness.SeedTable
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&tables); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i, t := range tables {
		if t.Table == "" {
			return nil, fmt.Errorf("tables[%d]: table is required", i)
		}
	}
	return tables, nil
}

func runSeed(opts *SeedOptions, dataFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, opts.Schema)
	if err != nil {
		return err
	}
	switch {
	case opts.DSN != "":
		cfg.Database.Dialect = querysql.Postgres
		cfg.Database.DSN = opts.DSN
	case opts.Database != "":
		cfg.Database.Dialect = querysql.SQLite
		cfg.Database.Path = opts.Database
	}

	seed, err := LoadSeedFile(dataFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid seed file", err)
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.store.ApplySchema(ctx, sess.compiled.Schema); err != nil {
		return WrapExitError(ExitCommandError, "failed to create tables", err)
	}

	result := SeedResult{Tables: map[string]int{}}
	tables := make([]store.Table, len(seed))
	for i, t := range seed {
		tables[i] = store.Table{Name: t.Table, Rows: t.Rows}
		result.Tables[t.Table] += len(t.Rows)
		result.Rows += len(t.Rows)
	}
	if err := sess.store.Seed(ctx, tables...); err != nil {
		return WrapExitError(ExitCommandError, "failed to seed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s Seeded %d row(s) into %d table(s)\n", mark(true), result.Rows, len(result.Tables))
	return nil
}
