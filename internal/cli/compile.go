package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querykit/internal/compiler"
	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/store"
)

// ErrCodeWriteFailed reports an output file that could not be written.
const ErrCodeWriteFailed = "E007"

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // output file path
	Dialect string
}

// CompilationResult holds the generated DDL.
type CompilationResult struct {
	Dialect    string   `json:"dialect"`
	Tables     int      `json:"tables"`
	Statements []string `json:"statements"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema>",
		Short: "Compile a CUE schema to CREATE TABLE statements",
		Long: `Compile CUE entity declarations to DDL for SQLite or PostgreSQL.

Every entity table and every many-to-many join table is created with
IF NOT EXISTS. Foreign keys are plain columns without constraints.

Example:
  querykit compile ./schema
  querykit compile ./schema --dialect postgres -o schema.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", string(querysql.SQLite), "SQL dialect (sqlite|postgres)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dialect, err := querysql.ParseDialect(opts.Dialect)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeGeneric, err.Error())
	}

	compiled, err := compiler.Load(path)
	if err != nil {
		verr := schemaErrors(err)[0]
		return outputCompileError(formatter, verr.Code, verr.Message)
	}

	stmts, err := store.DDL(compiled.Schema, dialect)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeGeneric, err.Error())
	}
	formatter.VerboseLog("Generated %d statement(s) for %d entities", len(stmts), len(compiled.Schema.Entities()))

	sql := strings.Join(stmts, ";\n\n") + ";\n"
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(sql), 0644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("failed to write output: %v", err))
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if opts.Format == "json" {
		return formatter.Success(CompilationResult{
			Dialect:    string(dialect),
			Tables:     len(stmts),
			Statements: stmts,
		})
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "%s Compiled %d table(s) to %s\n", mark(true), len(stmts), opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, sql)
	return nil
}

func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
